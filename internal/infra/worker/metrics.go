package worker

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"permit-watch/internal/pkg/config"
)

// Run statuses recorded by RecordRun.
const (
	StatusSuccess = "success" // every source completed
	StatusPartial = "partial" // at least one source failed
	StatusSkipped = "skipped" // previous run still in progress
)

// WorkerMetrics holds the worker_* metrics and embeds the worker_config_*
// set. Metrics register with the default registry on creation, so build
// one instance per process.
type WorkerMetrics struct {
	*config.ConfigMetrics

	// CronJobRunsTotal counts ticks by status.
	CronJobRunsTotal *prometheus.CounterVec

	// CronJobDurationSeconds buckets are sized for a one-minute cadence.
	CronJobDurationSeconds prometheus.Histogram

	CronJobFailedSourcesTotal   prometheus.Counter
	CronJobRecordsNotifiedTotal prometheus.Counter
	CronJobLastSuccessTimestamp prometheus.Gauge
}

func NewWorkerMetrics() *WorkerMetrics {
	return &WorkerMetrics{
		ConfigMetrics: config.NewConfigMetrics("worker"),

		CronJobRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_cron_job_runs_total",
			Help: "Total number of cron job runs by status (success/partial/skipped)",
		}, []string{"status"}),

		CronJobDurationSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "worker_cron_job_duration_seconds",
			Help:    "Duration of cron job execution in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 45, 60},
		}),

		CronJobFailedSourcesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "worker_cron_job_failed_sources_total",
			Help: "Total number of source runs that failed as a whole",
		}),

		CronJobRecordsNotifiedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "worker_cron_job_records_notified_total",
			Help: "Total number of records notified across all cron job runs",
		}),

		CronJobLastSuccessTimestamp: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "worker_cron_job_last_success_timestamp",
			Help: "Unix timestamp of the last cron job run in which every source completed",
		}),
	}
}

// RecordRun records one finished run. The last-success gauge moves only
// when no source failed.
func (m *WorkerMetrics) RecordRun(duration time.Duration, failedSources, notified int) {
	status := StatusSuccess
	if failedSources > 0 {
		status = StatusPartial
	}
	m.CronJobRunsTotal.WithLabelValues(status).Inc()
	m.CronJobDurationSeconds.Observe(duration.Seconds())
	m.CronJobFailedSourcesTotal.Add(float64(failedSources))
	m.CronJobRecordsNotifiedTotal.Add(float64(notified))
	if failedSources == 0 {
		m.CronJobLastSuccessTimestamp.SetToCurrentTime()
	}
}

// RecordSkipped counts a tick dropped by the overlap guard.
func (m *WorkerMetrics) RecordSkipped() {
	m.CronJobRunsTotal.WithLabelValues(StatusSkipped).Inc()
}
