package hyperdex

import (
	"context"
	"errors"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with hyperdex-specific context.
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
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// WithShard adds the shard file path to the logger.
func (l *Logger) WithShard(path string) *Logger {
	return &Logger{
		Logger: l.Logger.With("shard", path),
	}
}

// WithKey adds a key field to the logger. Keys are logged as strings, so
// only use this for printable keys.
func (l *Logger) WithKey(key []byte) *Logger {
	return &Logger{
		Logger: l.Logger.With("key", string(key)),
	}
}

// WithCount adds a count field to the logger.
func (l *Logger) WithCount(count int) *Logger {
	return &Logger{
		Logger: l.Logger.With("count", count),
	}
}

// LogPut logs a put. Capacity errors are expected once a shard fills up and
// are logged as warnings.
func (l *Logger) LogPut(ctx context.Context, key []byte, version uint64, err error) {
	switch {
	case err == nil:
		l.DebugContext(ctx, "put completed",
			"key_len", len(key),
			"version", version,
		)
	case IsCapacity(err):
		l.WarnContext(ctx, "put rejected",
			"key_len", len(key),
			"version", version,
			"code", CodeOf(err),
		)
	default:
		l.ErrorContext(ctx, "put failed",
			"key_len", len(key),
			"version", version,
			"error", err,
		)
	}
}

// LogDelete logs a delete. Deleting a missing key is not an error.
func (l *Logger) LogDelete(ctx context.Context, key []byte, err error) {
	switch {
	case err == nil:
		l.DebugContext(ctx, "delete completed",
			"key_len", len(key),
		)
	case errors.Is(err, ErrNotFound):
		l.DebugContext(ctx, "delete of missing key",
			"key_len", len(key),
		)
	case IsCapacity(err):
		l.WarnContext(ctx, "delete rejected",
			"key_len", len(key),
			"code", CodeOf(err),
		)
	default:
		l.ErrorContext(ctx, "delete failed",
			"key_len", len(key),
			"error", err,
		)
	}
}

// LogSync logs a flush.
func (l *Logger) LogSync(ctx context.Context, wait bool, err error) {
	if err != nil {
		l.ErrorContext(ctx, "sync failed",
			"wait", wait,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "sync completed",
			"wait", wait,
		)
	}
}

// LogSpace logs the space accounting of a shard.
func (l *Logger) LogSpace(ctx context.Context, used, stale int) {
	l.InfoContext(ctx, "shard space",
		"used_pct", used,
		"stale_pct", stale,
	)
}
