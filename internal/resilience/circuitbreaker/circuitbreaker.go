// Package circuitbreaker stops calling an upstream, a chat channel or the
// store once it keeps failing. Breakers wrap sony/gobreaker; every state
// change is logged and exported as circuit_breaker_state.
package circuitbreaker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"permit-watch/internal/observability/metrics"
)

// Config describes one breaker.
type Config struct {
	Name         string
	MaxRequests  uint32        // probes let through while half-open
	Interval     time.Duration // closed-state counters reset period
	Timeout      time.Duration // open to half-open delay
	FailureRatio float64       // trip when failures/requests reaches this
	MinRequests  uint32        // no tripping below this many requests

	// Ignore marks errors that are returned to the caller but do not count
	// as failures. Context cancellation is always ignored.
	Ignore func(error) bool
}

// FeedConfig guards the RSS feed. One request per tick, so five failed
// ticks in a row open it for five minutes.
func FeedConfig() Config {
	return Config{
		Name:         "feed",
		MaxRequests:  1,
		Interval:     15 * time.Minute,
		Timeout:      5 * time.Minute,
		FailureRatio: 1.0,
		MinRequests:  5,
	}
}

// ListingConfig guards the listing POSTs (two per tick).
func ListingConfig() Config {
	return Config{
		Name:         "listing",
		MaxRequests:  2,
		Interval:     15 * time.Minute,
		Timeout:      5 * time.Minute,
		FailureRatio: 1.0,
		MinRequests:  6,
	}
}

// PortalConfig guards the portal session. It trips early and stays open
// longer so a rejected login is not replayed every minute.
func PortalConfig() Config {
	return Config{
		Name:         "portal",
		MaxRequests:  1,
		Interval:     30 * time.Minute,
		Timeout:      15 * time.Minute,
		FailureRatio: 1.0,
		MinRequests:  3,
	}
}

// NotifyConfig guards one notification channel.
func NotifyConfig(channel string) Config {
	return Config{
		Name:         "notify-" + channel,
		MaxRequests:  1,
		Interval:     5 * time.Minute,
		Timeout:      1 * time.Minute,
		FailureRatio: 0.8,
		MinRequests:  5,
	}
}

// CircuitBreaker is a named gobreaker instance.
type CircuitBreaker struct {
	breaker *gobreaker.CircuitBreaker
	name    string
}

// New creates a closed breaker from cfg.
func New(cfg Config) *CircuitBreaker {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
		IsSuccessful: func(err error) bool {
			if err == nil || errors.Is(err, context.Canceled) {
				return true
			}
			return cfg.Ignore != nil && cfg.Ignore(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			slog.Warn("circuit breaker state changed",
				slog.String("circuit", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	}

	metrics.CircuitBreakerState.WithLabelValues(cfg.Name).Set(float64(gobreaker.StateClosed))
	return &CircuitBreaker{
		breaker: gobreaker.NewCircuitBreaker(settings),
		name:    cfg.Name,
	}
}

// Call runs fn through cb. While the breaker is open fn is not called and
// the error satisfies IsRejected.
func Call[T any](cb *CircuitBreaker, fn func() (T, error)) (T, error) {
	out, err := cb.breaker.Execute(func() (interface{}, error) {
		return fn()
	})
	if out == nil {
		var zero T
		return zero, err
	}
	return out.(T), err
}

// IsRejected reports whether err came from an open or saturated breaker
// rather than from the protected call.
func IsRejected(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func (cb *CircuitBreaker) State() gobreaker.State { return cb.breaker.State() }

func (cb *CircuitBreaker) Name() string { return cb.name }

func (cb *CircuitBreaker) IsOpen() bool {
	return cb.breaker.State() == gobreaker.StateOpen
}
