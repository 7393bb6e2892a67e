package log

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/felixgeelhaar/buildplan/internal/errors"
)

// Logger provides structured logging with slog
type Logger struct {
	slog *slog.Logger
}

// New creates a new Logger with the given configuration
func New(config Config) *Logger {
	opts := &slog.HandlerOptions{
		Level:     config.Level.ToSlogLevel(),
		AddSource: config.AddSource,
	}

	out := config.Output
	if out == nil {
		out = os.Stderr
	}

	var handler slog.Handler
	switch config.Format {
	case FormatJSON:
		handler = slog.NewJSONHandler(out, opts)
	default:
		handler = slog.NewTextHandler(out, opts)
	}

	return &Logger{slog: slog.New(handler)}
}

// Default creates a logger with default configuration
func Default() *Logger {
	return New(DefaultConfig())
}

// Discard creates a logger that drops everything. Useful in tests.
func Discard() *Logger {
	return New(Config{Level: LevelError, Output: io.Discard})
}

// With returns a new Logger with the given attributes added to all log entries
func (l *Logger) With(args ...any) *Logger {
	return &Logger{slog: l.slog.With(args...)}
}

// WithRun tags entries with the identifier of the current build.
func (l *Logger) WithRun(runID string) *Logger {
	return l.With("run_id", runID)
}

// WithTool tags entries with the external tool being run.
func (l *Logger) WithTool(tool string) *Logger {
	return l.With("tool", tool)
}

// WithStep tags entries with the plan key of the step being evaluated.
func (l *Logger) WithStep(key string) *Logger {
	return l.With("step", key)
}

// WithError adds error details to the logger
// If the error is a BuildError, it adds error_code and suggestions
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}

	var be *errors.BuildError
	if errors.As(err, &be) {
		args := []any{
			"error", be.Message,
			"error_code", string(be.Code),
		}

		if len(be.Suggestions) > 0 {
			args = append(args, "suggestions", be.Suggestions)
		}

		if be.Cause != nil {
			args = append(args, "cause", be.Cause.Error())
		}

		return l.With(args...)
	}

	return l.With("error", err.Error())
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, args ...any) {
	l.slog.Debug(msg, args...)
}

// Info logs an info message
func (l *Logger) Info(msg string, args ...any) {
	l.slog.Info(msg, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string, args ...any) {
	l.slog.Warn(msg, args...)
}

// Error logs an error message
func (l *Logger) Error(msg string, args ...any) {
	l.slog.Error(msg, args...)
}

// Enabled returns whether the logger is enabled for the given level
func (l *Logger) Enabled(ctx context.Context, level Level) bool {
	return l.slog.Enabled(ctx, level.ToSlogLevel())
}
