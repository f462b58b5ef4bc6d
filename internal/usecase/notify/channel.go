package notify

import "context"

// Channel is a notification transport. Implementations live in
// internal/infra/notifier; TelegramNotifier and LogNotifier satisfy it.
type Channel interface {
	// Name returns the channel identifier used for logging, metrics
	// labels, and the circuit breaker name.
	Name() string

	// Send delivers an already rendered message to destination (for
	// Telegram, the chat id).
	Send(ctx context.Context, destination, message string) error
}
