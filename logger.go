package geoclust

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with geoclust-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// WithWorker adds a worker field to the logger.
func (l *Logger) WithWorker(id int) *Logger {
	return &Logger{
		Logger: l.Logger.With("worker", id),
	}
}

// WithDataset adds a dataset field to the logger.
func (l *Logger) WithDataset(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("dataset", name),
	}
}

// LogCollect logs a collection run.
func (l *Logger) LogCollect(ctx context.Context, target, unique int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "collection failed",
			"target", target,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "collection completed",
			"target", target,
			"unique", unique,
		)
	}
}

// LogCluster logs a clustering run.
func (l *Logger) LogCluster(ctx context.Context, k, iterations int, converged bool, err error) {
	if err != nil {
		l.ErrorContext(ctx, "clustering failed",
			"k", k,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "clustering completed",
			"k", k,
			"iterations", iterations,
			"converged", converged,
		)
	}
}

// LogSnapshot logs a dataset save operation.
func (l *Logger) LogSnapshot(ctx context.Context, name string, records int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "snapshot failed",
			"dataset", name,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "snapshot saved",
			"dataset", name,
			"records", records,
		)
	}
}

// LogLoad logs a dataset load operation.
func (l *Logger) LogLoad(ctx context.Context, name string, records int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "load failed",
			"dataset", name,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "load completed",
			"dataset", name,
			"records", records,
		)
	}
}
