package circuitbreaker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"permit-watch/internal/observability/metrics"
)

var errUpstream = errors.New("upstream down")

func tripAfter(name string, n uint32) Config {
	return Config{
		Name:         name,
		MaxRequests:  1,
		Interval:     time.Minute,
		Timeout:      50 * time.Millisecond,
		FailureRatio: 1.0,
		MinRequests:  n,
	}
}

func fail(cb *CircuitBreaker, err error) error {
	_, callErr := Call(cb, func() (int, error) { return 0, err })
	return callErr
}

func TestCall_ReturnsValueAndError(t *testing.T) {
	cb := New(tripAfter("call-value", 3))

	got, err := Call(cb, func() (string, error) { return "rss", nil })
	require.NoError(t, err)
	assert.Equal(t, "rss", got)

	got, err = Call(cb, func() (string, error) { return "", errUpstream })
	assert.ErrorIs(t, err, errUpstream)
	assert.Empty(t, got)
	assert.False(t, IsRejected(err))
}

func TestCall_NilInterfaceResult(t *testing.T) {
	cb := New(tripAfter("call-nil", 3))

	got, err := Call(cb, func() (sql.Result, error) { return nil, nil })
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCircuitBreaker_OpensAndRejects(t *testing.T) {
	cb := New(tripAfter("opens", 3))

	for range 3 {
		require.ErrorIs(t, fail(cb, errUpstream), errUpstream)
	}
	require.True(t, cb.IsOpen())

	called := false
	_, err := Call(cb, func() (int, error) {
		called = true
		return 1, nil
	})
	assert.True(t, IsRejected(err))
	assert.False(t, called, "open breaker must not call through")
	assert.Equal(t, float64(gobreaker.StateOpen), testutil.ToFloat64(metrics.CircuitBreakerState.WithLabelValues("opens")))
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	cb := New(tripAfter("recovers", 2))
	_ = fail(cb, errUpstream)
	_ = fail(cb, errUpstream)
	require.True(t, cb.IsOpen())

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, gobreaker.StateHalfOpen, cb.State())

	_, err := Call(cb, func() (int, error) { return 1, nil })
	require.NoError(t, err)
	assert.Equal(t, gobreaker.StateClosed, cb.State())
	assert.Equal(t, float64(gobreaker.StateClosed), testutil.ToFloat64(metrics.CircuitBreakerState.WithLabelValues("recovers")))
}

func TestCircuitBreaker_MinRequests(t *testing.T) {
	cfg := tripAfter("min-requests", 4)
	cfg.FailureRatio = 0.5
	cb := New(cfg)

	_ = fail(cb, errUpstream)
	_ = fail(cb, errUpstream)
	_ = fail(cb, errUpstream)
	assert.False(t, cb.IsOpen(), "below MinRequests the ratio is not evaluated")

	_ = fail(cb, errUpstream)
	assert.True(t, cb.IsOpen())
}

func TestCircuitBreaker_IgnoredErrorsDoNotTrip(t *testing.T) {
	errNotFound := errors.New("not found")
	cfg := tripAfter("ignored", 2)
	cfg.Ignore = func(err error) bool { return errors.Is(err, errNotFound) }
	cb := New(cfg)

	for range 5 {
		assert.ErrorIs(t, fail(cb, fmt.Errorf("lookup: %w", errNotFound)), errNotFound)
		assert.ErrorIs(t, fail(cb, context.Canceled), context.Canceled)
	}
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

func TestPresets(t *testing.T) {
	tests := []struct {
		cfg         Config
		name        string
		minRequests uint32
	}{
		{FeedConfig(), "feed", 5},
		{ListingConfig(), "listing", 6},
		{PortalConfig(), "portal", 3},
		{StoreConfig(), "store", 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, tt.cfg.Name)
			assert.Equal(t, tt.minRequests, tt.cfg.MinRequests)
			assert.Equal(t, 1.0, tt.cfg.FailureRatio, "source and store breakers trip on consecutive failures only")
			assert.GreaterOrEqual(t, tt.cfg.Timeout, 30*time.Second)
		})
	}

	notify := NotifyConfig("telegram")
	assert.Equal(t, "notify-telegram", notify.Name)
	assert.Equal(t, 0.8, notify.FailureRatio)
}

func TestNew_ExportsClosedState(t *testing.T) {
	cb := New(tripAfter("fresh", 1))

	assert.Equal(t, "fresh", cb.Name())
	assert.Equal(t, gobreaker.StateClosed, cb.State())
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.CircuitBreakerState.WithLabelValues("fresh")))
}
