package notifier

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
	"unicode/utf8"
)

type requestIDKey struct{}

// WithRequestID attaches a request id that Send uses instead of generating one.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// RateLimitError is a 429 from the Bot API. RetryAfter comes from
// parameters.retry_after or the Retry-After header.
type RateLimitError struct {
	RetryAfter  time.Duration
	Description string
}

func (e *RateLimitError) Error() string {
	desc := e.Description
	if desc == "" {
		desc = http.StatusText(http.StatusTooManyRequests)
	}
	return fmt.Sprintf("telegram: %s (retry after %v)", desc, e.RetryAfter)
}

// ClientError is a rejected request: a 4xx other than 429, ok=false on a
// 2xx, or a notifier that was never configured. It is final.
type ClientError struct {
	StatusCode  int // zero when no request was made
	Description string
}

func (e *ClientError) Error() string {
	if e.StatusCode == 0 {
		return "telegram: " + e.Description
	}
	return fmt.Sprintf("telegram: client error %d: %s", e.StatusCode, e.Description)
}

// ServerError is a 5xx from the Bot API.
type ServerError struct {
	StatusCode  int
	Description string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("telegram: server error %d: %s", e.StatusCode, e.Description)
}

// retryDelay returns the server-requested wait when err is a rate limit.
func retryDelay(err error) (time.Duration, bool) {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl.RetryAfter, true
	}
	return 0, false
}

// retryable reports whether another attempt with backoff may succeed.
// Rate limits are not in this class; they wait for retryDelay instead.
func retryable(err error) bool {
	var (
		serverErr *ServerError
		clientErr *ClientError
		rl        *RateLimitError
	)
	switch {
	case errors.As(err, &serverErr):
		return true
	case errors.As(err, &clientErr), errors.As(err, &rl):
		return false
	}
	// transport errors, unless the run itself gave up
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// truncateRunes cuts text to at most limit runes, ending with suffix when cut.
func truncateRunes(text string, limit int, suffix string) string {
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	keep := max(limit-utf8.RuneCountInString(suffix), 0)
	for i := range text {
		if keep == 0 {
			return text[:i] + suffix
		}
		keep--
	}
	return text + suffix
}
