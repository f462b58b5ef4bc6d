// Package notifier delivers rendered messages to chat services.
//
// A Notifier receives a destination (for Telegram, the chat id) and an
// already rendered message; formatting lives in the notify use case so the
// same text can go to any channel. TelegramNotifier talks to the Bot API,
// LogNotifier writes to the structured log and is used for dry runs.
package notifier

import "context"

// Notifier sends one message to one destination.
type Notifier interface {
	// Name identifies the channel in logs, metrics, and breaker names.
	Name() string

	// Send delivers message to destination. Implementations apply their
	// own rate limiting and retries and respect ctx cancellation.
	Send(ctx context.Context, destination, message string) error
}
