package notify

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"permit-watch/internal/domain/entity"
)

// Send results.
const (
	resultSent        = "sent"
	resultFailed      = "failed"
	resultRateLimited = "rate_limited"
	resultRejected    = "rejected" // breaker open, channel not called
)

var (
	notificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Notifications per channel, record kind and result",
		},
		[]string{"channel", "kind", "result"},
	)

	notificationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notification_duration_seconds",
			Help:    "Time spent in a channel send, retries included",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"channel"},
	)

	breakerOpenTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_circuit_breaker_open_total",
			Help: "Times a channel's circuit breaker opened",
		},
		[]string{"channel"},
	)

	channelsConfigured = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "notification_channels_configured",
			Help: "Number of notification channels the service sends to",
		},
	)
)

// observeSend records one channel send. Rejected sends never reached the
// channel, so they carry no duration.
func observeSend(channel string, kind entity.RecordKind, result string, d time.Duration) {
	notificationsTotal.WithLabelValues(channel, string(kind), result).Inc()
	if result != resultRejected {
		notificationDuration.WithLabelValues(channel).Observe(d.Seconds())
	}
}
