package diskgraph

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with diskgraph-specific helpers so embedders
// get consistent field names across write, open, and warmup events.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses a default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{Logger: slog.New(handler)}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
func NewJSONLogger(level slog.Level) *Logger {
	return &Logger{Logger: slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))}
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	}))}
}

// LogWrite logs the outcome of persisting an artifact.
func (l *Logger) LogWrite(ctx context.Context, path string, nodes int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "artifact write failed",
			"path", path,
			"nodes", nodes,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "artifact written",
			"path", path,
			"nodes", nodes,
		)
	}
}

// LogOpen logs the outcome of opening an artifact.
func (l *Logger) LogOpen(ctx context.Context, path string, version, nodes int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "artifact open failed",
			"path", path,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "artifact opened",
			"path", path,
			"version", version,
			"nodes", nodes,
		)
	}
}

// LogWarmup logs a cache warmup result.
func (l *Logger) LogWarmup(ctx context.Context, pinned int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "cache warmup failed",
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "cache warmup completed",
			"pinned", pinned,
		)
	}
}
