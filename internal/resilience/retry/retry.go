// Package retry re-runs transient upstream and store operations with
// exponential backoff. A run has a fixed budget (RUN_TIMEOUT), so every
// preset keeps its worst-case wait well inside it.
package retry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"strings"
	"syscall"
	"time"

	"permit-watch/internal/observability/logging"
)

// Config describes one backoff schedule.
type Config struct {
	MaxAttempts    int
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	Multiplier     float64
	JitterFraction float64 // 0..1, added on top of the delay
}

// MaxWait is the longest total sleep the schedule can produce, jitter
// included. It ignores the time spent in the attempts themselves.
func (c Config) MaxWait() time.Duration {
	var total time.Duration
	delay := c.InitialDelay
	for i := 1; i < c.MaxAttempts; i++ {
		total += delay + time.Duration(float64(delay)*clampFraction(c.JitterFraction))
		delay = c.next(delay)
	}
	return total
}

func (c Config) next(delay time.Duration) time.Duration {
	delay = time.Duration(float64(delay) * c.Multiplier)
	if delay > c.MaxDelay {
		delay = c.MaxDelay
	}
	return delay
}

// FeedConfig is used for the RSS feed GET.
func FeedConfig() Config {
	return Config{
		MaxAttempts:    3,
		InitialDelay:   1 * time.Second,
		MaxDelay:       4 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
	}
}

// ListingConfig is used for each listing window POST. Two windows share a
// run, so the per-window budget is smaller than the feed's.
func ListingConfig() Config {
	return Config{
		MaxAttempts:    3,
		InitialDelay:   500 * time.Millisecond,
		MaxDelay:       3 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
	}
}

// PortalConfig is used for the portal session. Each attempt replays the
// whole login, so attempts are few.
func PortalConfig() Config {
	return Config{
		MaxAttempts:    2,
		InitialDelay:   2 * time.Second,
		MaxDelay:       5 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
	}
}

// StoreConfig is used for InsertIfAbsent.
func StoreConfig() Config {
	return Config{
		MaxAttempts:    3,
		InitialDelay:   100 * time.Millisecond,
		MaxDelay:       1 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
	}
}

// WithBackoff calls fn until it succeeds, returns a non-retryable error,
// or runs out of attempts. An HTTPError carrying RetryAfter stretches the
// next delay up to MaxDelay. Retries are logged through the context logger.
func WithBackoff(ctx context.Context, cfg Config, fn func() error) error {
	logger := logging.FromContext(ctx)
	attempts := max(cfg.MaxAttempts, 1)
	delay := cfg.InitialDelay

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			if attempt > 1 {
				logger.Info("operation succeeded after retry", slog.Int("attempt", attempt))
			}
			return nil
		}
		if !IsRetryable(lastErr) {
			return lastErr
		}
		if attempt == attempts {
			break
		}

		wait := addJitter(delay, cfg.JitterFraction)
		var httpErr *HTTPError
		if errors.As(lastErr, &httpErr) && httpErr.RetryAfter > wait {
			wait = min(httpErr.RetryAfter, cfg.MaxDelay)
		}

		logger.Warn("operation failed, retrying",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", attempts),
			slog.Duration("delay", wait),
			slog.String("error", logging.SanitizeError(lastErr)))

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry aborted: %w", ctx.Err())
		}

		delay = cfg.next(delay)
	}

	return fmt.Errorf("max retry attempts (%d) exceeded: %w", attempts, lastErr)
}

// IsRetryable reports whether err looks transient: timeouts, refused or
// reset connections, truncated bodies, 408, 429 and 5xx responses.
// Context cancellation is never retried.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ETIMEDOUT) ||
		errors.Is(err, syscall.ENETUNREACH) ||
		errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		switch {
		case httpErr.StatusCode >= 500 && httpErr.StatusCode < 600:
			return true
		case httpErr.StatusCode == http.StatusTooManyRequests,
			httpErr.StatusCode == http.StatusRequestTimeout:
			return true
		}
	}
	return false
}

// HTTPError is a non-2xx upstream response.
type HTTPError struct {
	StatusCode int
	Message    string
	RetryAfter time.Duration // from the Retry-After header, zero if absent
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// ParseRetryAfter reads a Retry-After header value. Only the delta-seconds
// form is understood; HTTP dates and garbage yield zero.
func ParseRetryAfter(value string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func clampFraction(f float64) float64 {
	return min(max(f, 0), 1)
}

func addJitter(d time.Duration, fraction float64) time.Duration {
	fraction = clampFraction(fraction)
	if fraction == 0 {
		return d
	}
	// #nosec G404 -- jitter does not need a cryptographic source
	return d + time.Duration(rand.Float64()*float64(d)*fraction)
}
