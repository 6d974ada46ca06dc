// Package logging provides structured logging for omnihost.
package logging

import (
	"io"
	"log/slog"
	"os"
	"time"
)

// LogLevel represents the logging level
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelError LogLevel = "error"
)

// LogFormat represents the output format for logs
type LogFormat string

const (
	FormatJSON LogFormat = "json"
	FormatText LogFormat = "text"
)

// Config holds logging configuration
type Config struct {
	Level  LogLevel  // Minimum log level to output
	Format LogFormat // Output format (json or text)
	Output io.Writer // Output destination (defaults to stderr)
	Quiet  bool      // If true, suppress non-error output
}

// Logger wraps slog.Logger with fleet-execution helpers.
type Logger struct {
	logger *slog.Logger
	config Config
}

// NewLogger creates a new logger instance
func NewLogger(config Config) *Logger {
	if config.Output == nil {
		config.Output = os.Stderr
	}

	opts := &slog.HandlerOptions{
		Level: convertLogLevel(config.Level),
	}

	var handler slog.Handler
	switch config.Format {
	case FormatJSON:
		handler = slog.NewJSONHandler(config.Output, opts)
	default:
		handler = slog.NewTextHandler(config.Output, opts)
	}

	return &Logger{
		logger: slog.New(handler),
		config: config,
	}
}

// NewLoggerFromConfig creates a logger from string-typed application settings.
func NewLoggerFromConfig(logLevel, logFormat string, quiet bool) *Logger {
	var level LogLevel
	switch logLevel {
	case "debug":
		level = LevelDebug
	case "error":
		level = LevelError
	default:
		level = LevelInfo
	}

	var format LogFormat
	switch logFormat {
	case "json":
		format = FormatJSON
	default:
		format = FormatText
	}

	return NewLogger(Config{Level: level, Format: format, Quiet: quiet})
}

// convertLogLevel converts our LogLevel to slog.Level
func convertLogLevel(level LogLevel) slog.Level {
	switch level {
	case LevelDebug:
		return slog.LevelDebug
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Info logs an informational message
func (l *Logger) Info(msg string, args ...any) {
	if l.config.Quiet {
		return
	}
	l.logger.Info(msg, args...)
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, args ...any) {
	if l.config.Quiet {
		return
	}
	l.logger.Debug(msg, args...)
}

// Error logs an error message
func (l *Logger) Error(msg string, args ...any) {
	l.logger.Error(msg, args...)
}

// IsQuiet returns whether the logger is in quiet mode
func (l *Logger) IsQuiet() bool {
	return l.config.Quiet
}

// LogDispatchStart logs the start of a fleet dispatch.
func (l *Logger) LogDispatchStart(targetCount, parallelism, maxRetries int) {
	l.Info("dispatch started",
		"target_count", targetCount,
		"parallelism", parallelism,
		"max_retries", maxRetries,
	)
}

// LogDispatchComplete logs the completion of a fleet dispatch.
func (l *Logger) LogDispatchComplete(targetCount, succeeded, failed int, wallClock time.Duration) {
	l.Info("dispatch completed",
		"target_count", targetCount,
		"succeeded", succeeded,
		"failed", failed,
		"wall_clock_ms", wallClock.Milliseconds(),
	)
}

// LogAttempt logs the outcome of a single attempt against a host.
// The command itself is never logged; it may contain secrets.
func (l *Logger) LogAttempt(host string, attempt, exitCode int, duration time.Duration, failKind string) {
	if failKind == "none" {
		l.Info("attempt completed",
			"host", host,
			"attempt", attempt,
			"exit_code", exitCode,
			"duration_ms", duration.Milliseconds(),
		)
		return
	}
	l.Info("attempt failed",
		"host", host,
		"attempt", attempt,
		"exit_code", exitCode,
		"duration_ms", duration.Milliseconds(),
		"failure_kind", failKind,
	)
}

// LogRetry logs an immediate retry of a failed attempt.
func (l *Logger) LogRetry(host string, nextAttempt int, reason string) {
	l.Info("retrying host",
		"host", host,
		"attempt", nextAttempt,
		"reason", reason,
	)
}

// LogHostResult logs the terminal result for one host.
func (l *Logger) LogHostResult(host string, succeeded bool, attempts int, duration time.Duration) {
	l.Info("host finished",
		"host", host,
		"succeeded", succeeded,
		"attempts", attempts,
		"total_duration_ms", duration.Milliseconds(),
	)
}

// LogAuditError logs a failed audit hand-off. Audit failures never abort
// the run, so they surface only here.
func (l *Logger) LogAuditError(err error) {
	l.Error("audit record failed",
		"error", err.Error(),
	)
}

// LogResolve logs target selector resolution.
func (l *Logger) LogResolve(selector string, count int) {
	l.Info("targets resolved",
		"selector", selector,
		"count", count,
	)
}
