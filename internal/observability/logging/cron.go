package logging

import (
	"log/slog"
)

// CronLogger adapts a slog.Logger to the robfig/cron Logger interface.
// Scheduler chatter goes to debug; errors (including recovered panics)
// go to error.
type CronLogger struct {
	logger *slog.Logger
}

// NewCronLogger wraps logger; nil means slog.Default().
func NewCronLogger(logger *slog.Logger) *CronLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &CronLogger{logger: logger.With(slog.String("component", "cron"))}
}

// Info logs routine scheduler events.
func (l *CronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

// Error logs scheduler failures.
func (l *CronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	args := append([]interface{}{slog.String("error", SanitizeError(err))}, keysAndValues...)
	l.logger.Error(msg, args...)
}
