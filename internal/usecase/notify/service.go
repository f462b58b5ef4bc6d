package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"permit-watch/internal/domain/entity"
	"permit-watch/internal/infra/notifier"
	"permit-watch/internal/observability/logging"
	"permit-watch/internal/resilience/circuitbreaker"

	"github.com/google/uuid"
)

// Service renders records and delivers them to every configured channel.
type Service interface {
	// Notify renders rec and sends it synchronously to every channel.
	// Each channel is attempted even if an earlier one failed; the
	// returned error wraps entity.ErrNotify and names every failed channel.
	Notify(ctx context.Context, rec entity.Record) error

	// GetChannelHealth returns the breaker state of every channel.
	GetChannelHealth() []ChannelHealthStatus
}

// ChannelHealthStatus represents the health status of a notification channel.
type ChannelHealthStatus struct {
	Name               string // Channel name (e.g., "telegram", "log")
	CircuitBreakerOpen bool   // Whether the breaker currently rejects sends
	State              string // gobreaker state name
}

type guardedChannel struct {
	channel Channel
	breaker *circuitbreaker.CircuitBreaker
}

type service struct {
	destination string
	channels    []guardedChannel
	timeout     time.Duration
}

// Option configures a Service.
type Option func(*service)

// WithSendTimeout bounds a single channel send (default 30s).
func WithSendTimeout(d time.Duration) Option {
	return func(s *service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithBreaker overrides the circuit breaker config used for every channel.
// The config name is suffixed with the channel name.
func WithBreaker(cfg circuitbreaker.Config) Option {
	return func(s *service) {
		for i := range s.channels {
			c := cfg
			c.Name = cfg.Name + "-" + s.channels[i].channel.Name()
			s.channels[i].breaker = circuitbreaker.New(c)
		}
	}
}

// NewService creates a notification service that sends to destination
// through channels, each guarded by circuitbreaker.NotifyConfig.
func NewService(destination string, channels []Channel, opts ...Option) Service {
	svc := &service{
		destination: destination,
		timeout:     30 * time.Second,
	}
	for _, ch := range channels {
		svc.channels = append(svc.channels, guardedChannel{
			channel: ch,
			breaker: circuitbreaker.New(circuitbreaker.NotifyConfig(ch.Name())),
		})
	}
	for _, opt := range opts {
		opt(svc)
	}

	channelsConfigured.Set(float64(len(svc.channels)))
	return svc
}

// Notify implements Service.Notify.
func (s *service) Notify(ctx context.Context, rec entity.Record) error {
	if rec == nil || rec.RecordID() == "" {
		return fmt.Errorf("%w: %w", entity.ErrNotify, ErrInvalidRecord)
	}
	if len(s.channels) == 0 {
		logging.FromContext(ctx).Debug("No notification channels configured",
			slog.String("record_id", rec.RecordID()))
		return nil
	}

	requestID := uuid.New().String()
	ctx = notifier.WithRequestID(ctx, requestID)
	message := FormatMessage(rec)

	var failed []string
	var errs []error
	for _, gc := range s.channels {
		if err := s.send(ctx, gc, requestID, rec, message); err != nil {
			failed = append(failed, gc.channel.Name())
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: channels %s: %w", entity.ErrNotify, strings.Join(failed, ","), errors.Join(errs...))
	}
	return nil
}

func (s *service) send(ctx context.Context, gc guardedChannel, requestID string, rec entity.Record, message string) error {
	name := gc.channel.Name()
	logger := logging.FromContext(ctx).With(
		slog.String("request_id", requestID),
		slog.String("channel", name),
		slog.String("record_id", rec.RecordID()))

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	wasOpen := gc.breaker.IsOpen()
	start := time.Now()
	_, err := circuitbreaker.Call(gc.breaker, func() (struct{}, error) {
		return struct{}{}, gc.channel.Send(ctx, s.destination, message)
	})
	elapsed := time.Since(start)

	if !wasOpen && gc.breaker.IsOpen() {
		breakerOpenTotal.WithLabelValues(name).Inc()
		logger.Error("Circuit breaker opened for channel")
	}

	var rateLimitErr *notifier.RateLimitError
	switch {
	case circuitbreaker.IsRejected(err):
		observeSend(name, rec.Kind(), resultRejected, 0)
		logger.Warn("Channel temporarily disabled by circuit breaker")
		return fmt.Errorf("%s: %w", name, ErrCircuitBreakerOpen)
	case errors.As(err, &rateLimitErr):
		observeSend(name, rec.Kind(), resultRateLimited, elapsed)
	case err != nil:
		observeSend(name, rec.Kind(), resultFailed, elapsed)
	default:
		observeSend(name, rec.Kind(), resultSent, elapsed)
		logger.Info("Channel notification sent",
			slog.String("kind", string(rec.Kind())),
			slog.Duration("send_duration", elapsed))
		return nil
	}

	logger.Warn("Channel notification failed",
		slog.Duration("send_duration", elapsed),
		slog.String("error", logging.SanitizeError(err)))
	return fmt.Errorf("%s: %w", name, err)
}

// GetChannelHealth implements Service.GetChannelHealth.
func (s *service) GetChannelHealth() []ChannelHealthStatus {
	statuses := make([]ChannelHealthStatus, 0, len(s.channels))
	for _, gc := range s.channels {
		statuses = append(statuses, ChannelHealthStatus{
			Name:               gc.channel.Name(),
			CircuitBreakerOpen: gc.breaker.IsOpen(),
			State:              gc.breaker.State().String(),
		})
	}
	return statuses
}
