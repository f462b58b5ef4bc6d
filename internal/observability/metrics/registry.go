// Package metrics provides centralized Prometheus metrics for the application.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline metrics track what each source produced per run
var (
	// RecordsExtractedTotal counts candidates returned by an extractor
	RecordsExtractedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "records_extracted_total",
			Help: "Total number of candidate records extracted per source",
		},
		[]string{"source"},
	)

	// RecordsInsertedTotal counts records persisted for the first time
	RecordsInsertedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "records_inserted_total",
			Help: "Total number of new records stored per source",
		},
		[]string{"source"},
	)

	// RecordsDuplicateTotal counts candidates that were already stored
	RecordsDuplicateTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "records_duplicate_total",
			Help: "Total number of candidates skipped as already stored",
		},
		[]string{"source"},
	)

	// RecordsNotifiedTotal counts records delivered to chat
	RecordsNotifiedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "records_notified_total",
			Help: "Total number of new records notified per source",
		},
		[]string{"source"},
	)

	// StageFailuresTotal counts per-record failures by pipeline stage
	StageFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_stage_failures_total",
			Help: "Total number of per-record failures by source and stage",
		},
		[]string{"source", "stage"},
	)

	// SourceRunsTotal counts source pipeline runs by status
	SourceRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "source_runs_total",
			Help: "Total number of source pipeline runs by status",
		},
		[]string{"source", "status"}, // status: success|failure|panic
	)

	// SourceRunDuration measures one source pipeline run
	SourceRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "source_run_duration_seconds",
			Help:    "Time taken by one source pipeline run",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 60},
		},
		[]string{"source"},
	)
)

// Upstream metrics track outbound HTTP to the scraped sites
var (
	// UpstreamRequestsTotal counts outbound requests by host, method and status
	UpstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_requests_total",
			Help: "Total number of outbound HTTP requests to scraped sources",
		},
		[]string{"host", "method", "status"},
	)

	// UpstreamRequestDuration measures outbound request latency
	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_request_duration_seconds",
			Help:    "Outbound HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"host", "method"},
	)
)

// CircuitBreakerState exposes each breaker's gobreaker state
// (0 closed, 1 half-open, 2 open).
var CircuitBreakerState = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "circuit_breaker_state",
		Help: "Current circuit breaker state (0 closed, 1 half-open, 2 open)",
	},
	[]string{"name"},
)

// Database metrics track database performance
var (
	// DBQueryDuration measures database query duration
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 10),
		},
		[]string{"operation"},
	)
)

// RecordOperationDuration records the duration of a named operation
func RecordOperationDuration(operation string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}
