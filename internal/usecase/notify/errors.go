package notify

import "errors"

// Sentinel errors for notify use case operations.
var (
	// ErrInvalidRecord indicates a nil record or one without an identifier.
	ErrInvalidRecord = errors.New("invalid record")

	// ErrCircuitBreakerOpen indicates the channel breaker rejected the send.
	// The breaker half-opens again after its timeout.
	ErrCircuitBreakerOpen = errors.New("circuit breaker is open for this channel")
)
