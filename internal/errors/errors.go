// Package errors provides failure classification for omnihost executions.
package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"strings"
)

// Kind classifies the failure of a single attempt against a host.
type Kind int

const (
	// KindNone indicates the attempt did not fail.
	KindNone Kind = iota

	// KindConnection represents network or SSH transport failures.
	KindConnection

	// KindTimeout represents attempts that exceeded their time budget.
	KindTimeout

	// KindAuth represents rejected credentials.
	KindAuth

	// KindNonZeroExit represents commands that ran and returned failure.
	KindNonZeroExit

	// KindCancelled represents attempts aborted by external cancellation.
	KindCancelled

	// KindUnknown represents unclassified failures.
	KindUnknown
)

// String returns the wire-stable name of the failure kind.
func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindConnection:
		return "connection"
	case KindTimeout:
		return "timeout"
	case KindAuth:
		return "auth"
	case KindNonZeroExit:
		return "nonzero"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Retryable reports whether attempts failing with this kind may be retried.
// Connection and timeout failures are transient. A command that connected and
// returned a non-zero exit already ran; retrying it risks duplicate side
// effects, so it is never retried. Auth failures will not succeed on a second
// try with the same credentials, and cancelled attempts must stay cancelled.
func (k Kind) Retryable() bool {
	switch k {
	case KindConnection, KindTimeout:
		return true
	default:
		return false
	}
}

// AttemptError wraps an attempt failure with its classification.
type AttemptError struct {
	Kind     Kind
	Message  string
	Original error
}

// Error implements the error interface.
func (e *AttemptError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Original != nil {
		return e.Original.Error()
	}
	return "attempt failed"
}

// Unwrap returns the original error for error unwrapping.
func (e *AttemptError) Unwrap() error {
	return e.Original
}

// New creates a classified attempt error.
func New(kind Kind, message string, original error) *AttemptError {
	return &AttemptError{Kind: kind, Message: message, Original: original}
}

// Newf creates a classified attempt error with a formatted message.
func Newf(kind Kind, format string, args ...any) *AttemptError {
	return &AttemptError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the classification from err. Errors created by this package
// keep their explicit kind; everything else is classified heuristically.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}

	var ae *AttemptError
	if stderrors.As(err, &ae) {
		return ae.Kind
	}

	return Classify(err)
}

// Classify maps an arbitrary error onto the failure taxonomy. Context errors
// are checked first so timeouts are never mistaken for connection failures.
func Classify(err error) Kind {
	if err == nil {
		return KindNone
	}

	if stderrors.Is(err, context.Canceled) {
		return KindCancelled
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}

	errStr := strings.ToLower(err.Error())

	if isAuthError(errStr) {
		return KindAuth
	}
	if isTimeoutError(errStr) {
		return KindTimeout
	}
	if isConnectionError(errStr) {
		return KindConnection
	}

	var netErr net.Error
	if stderrors.As(err, &netErr) {
		if netErr.Timeout() {
			return KindTimeout
		}
		return KindConnection
	}

	return KindUnknown
}

// isAuthError checks if an error string indicates rejected credentials.
func isAuthError(errStr string) bool {
	authKeywords := []string{
		"authentication failed",
		"auth fail",
		"permission denied (publickey)",
		"no supported authentication methods",
		"unable to authenticate",
		"invalid user",
		"access denied",
		"login incorrect",
	}

	for _, keyword := range authKeywords {
		if strings.Contains(errStr, keyword) {
			return true
		}
	}

	return false
}

// isTimeoutError checks if an error string indicates a timeout.
func isTimeoutError(errStr string) bool {
	timeoutKeywords := []string{
		"timeout",
		"timed out",
		"deadline exceeded",
		"i/o timeout",
	}

	for _, keyword := range timeoutKeywords {
		if strings.Contains(errStr, keyword) {
			return true
		}
	}

	return false
}

// isConnectionError checks if an error string indicates a transport failure.
func isConnectionError(errStr string) bool {
	connectionKeywords := []string{
		"connection refused",
		"connection reset",
		"connection lost",
		"connection closed",
		"network unreachable",
		"no route to host",
		"host unreachable",
		"broken pipe",
		"connection aborted",
		"handshake failed",
		"protocol error",
		"unexpected eof",
		"no such host",
	}

	for _, keyword := range connectionKeywords {
		if strings.Contains(errStr, keyword) {
			return true
		}
	}

	return false
}
