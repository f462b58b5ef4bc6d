package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// level is shared by every logger NewLogger builds, so SetLevel applies to
// loggers created before the configuration was loaded.
var level = new(slog.LevelVar)

// NewLogger builds the process logger on stdout. LOG_FORMAT=text selects the
// text handler, anything else JSON. The initial level comes from LOG_LEVEL.
func NewLogger() *slog.Logger {
	SetLevel(os.Getenv("LOG_LEVEL"))
	return New(os.Stdout, level, os.Getenv("LOG_FORMAT"))
}

// New builds a logger writing to w. Source locations are added while the
// level is debug at construction time.
func New(w io.Writer, leveler slog.Leveler, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     leveler,
		AddSource: leveler.Level() <= slog.LevelDebug,
	}
	if strings.EqualFold(strings.TrimSpace(format), "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// SetLevel changes the level of loggers built by NewLogger.
func SetLevel(name string) {
	level.Set(ParseLevel(name))
}

// ParseLevel maps debug|info|warn|error (case-insensitive) to a slog level.
// Anything else is info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

type loggerKey struct{}

// WithLogger stores logger in ctx.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext returns the logger stored by WithLogger, or slog.Default.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

// WithRunID returns a context whose logger carries run_id, so every line of
// one scheduled run can be correlated.
func WithRunID(ctx context.Context, runID string) context.Context {
	return WithLogger(ctx, FromContext(ctx).With(slog.String("run_id", runID)))
}

// WithSource returns a context whose logger carries source.
func WithSource(ctx context.Context, source string) context.Context {
	return WithLogger(ctx, FromContext(ctx).With(slog.String("source", source)))
}
