package notifier

import (
	"context"
	"log/slog"
)

// LogNotifier writes messages to a structured logger instead of a chat.
// It stands in for Telegram when no bot token is configured.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier returns a LogNotifier; a nil logger means slog.Default().
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// Name returns "log".
func (n *LogNotifier) Name() string {
	return "log"
}

// Send logs the message and never fails.
func (n *LogNotifier) Send(ctx context.Context, destination, message string) error {
	n.logger.InfoContext(ctx, "notification (dry run)",
		slog.String("request_id", requestIDFrom(ctx)),
		slog.String("destination", destination),
		slog.String("message", message))
	return nil
}
