package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/sagarmemane135/omnihost/internal/errors"
	"github.com/sagarmemane135/omnihost/internal/inventory"
)

// Exit codes for attempts that never produced a remote exit status.
const (
	exitCodeConnection = 255 // ssh convention for transport failure
	exitCodeTimeout    = 124 // standard timeout exit code
)

// runUnit drives the per-host state machine: attempt, classify, retry while
// the failure kind is retry-eligible and the budget allows, then emit one
// terminal result. It shares no state with other units.
func (e *Engine) runUnit(ctx context.Context, req Request, idx int, command string) HostResult {
	host := req.Targets[idx]
	unitStart := time.Now()

	maxAttempts := req.MaxRetries + 1
	var last Attempt

	for n := 1; n <= maxAttempts; n++ {
		if ctx.Err() != nil {
			last = Attempt{
				Number:    n,
				StartedAt: time.Now(),
				ExitCode:  exitCodeConnection,
				FailKind:  errors.KindCancelled,
				Message:   "cancelled before attempt started",
			}
			break
		}

		last = e.attempt(ctx, host, command, n, req.Timeout)
		if last.Succeeded() || !last.FailKind.Retryable() {
			break
		}
		if n < maxAttempts {
			// Retries are immediate; no backoff between attempts.
			e.logger.LogRetry(host.Name, n+1, last.FailKind.String())
		}
	}

	result := HostResult{
		Host:          host,
		Index:         idx,
		Succeeded:     last.Succeeded(),
		Final:         last,
		Attempts:      last.Number,
		TotalDuration: time.Since(unitStart),
	}
	e.logger.LogHostResult(host.Name, result.Succeeded, result.Attempts, result.TotalDuration)
	return result
}

// attempt runs the command once under the per-attempt timeout and classifies
// the outcome.
func (e *Engine) attempt(ctx context.Context, host inventory.Host, command string, number int, timeout time.Duration) Attempt {
	a := Attempt{Number: number, StartedAt: time.Now()}

	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	outcome, err := e.exec.Execute(attemptCtx, host, command)
	cancel()

	a.Duration = outcome.Duration
	if a.Duration == 0 {
		a.Duration = time.Since(a.StartedAt)
	}
	a.Stdout = outcome.Stdout
	a.Stderr = outcome.Stderr
	a.ExitCode = outcome.ExitCode

	switch {
	case err != nil:
		kind := errors.KindOf(err)
		// External cancellation wins over the attempt's own deadline.
		if ctx.Err() != nil {
			kind = errors.KindCancelled
		}
		a.FailKind = kind
		switch kind {
		case errors.KindTimeout:
			a.ExitCode = exitCodeTimeout
			a.Message = fmt.Sprintf("attempt timed out after %s", timeout)
		case errors.KindCancelled:
			a.ExitCode = exitCodeConnection
			a.Message = "cancelled"
		default:
			a.ExitCode = exitCodeConnection
			a.Message = err.Error()
		}

	case outcome.ExitCode != 0:
		a.FailKind = errors.KindNonZeroExit
		a.Message = fmt.Sprintf("command exited with status %d", outcome.ExitCode)

	default:
		a.FailKind = errors.KindNone
	}

	e.logger.LogAttempt(host.Name, a.Number, a.ExitCode, a.Duration, a.FailKind.String())
	return a
}
