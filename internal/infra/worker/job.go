package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"permit-watch/internal/observability/slo"
	"permit-watch/internal/usecase/pipeline"
)

// Runner is satisfied by *pipeline.Runner.
type Runner interface {
	RunOnce(ctx context.Context) (*pipeline.RunStats, error)
}

// Job is the body of one cron tick: it runs every source and publishes the
// outcome to metrics, the SLO tracker and /health/run.
type Job struct {
	runner  Runner
	metrics *WorkerMetrics
	health  *HealthServer
	slo     *slo.Tracker
	logger  *slog.Logger
	now     func() time.Time
}

// NewJob wires a Job. health and tracker may be nil.
func NewJob(runner Runner, metrics *WorkerMetrics, health *HealthServer, tracker *slo.Tracker, logger *slog.Logger) *Job {
	if logger == nil {
		logger = slog.Default()
	}
	return &Job{
		runner:  runner,
		metrics: metrics,
		health:  health,
		slo:     tracker,
		logger:  logger,
		now:     time.Now,
	}
}

// Run executes one tick. A tick dropped by the overlap guard is counted as
// skipped and returns pipeline.ErrRunInProgress.
func (j *Job) Run(ctx context.Context) (*pipeline.RunStats, error) {
	stats, err := j.runner.RunOnce(ctx)
	if err != nil {
		if errors.Is(err, pipeline.ErrRunInProgress) && j.metrics != nil {
			j.metrics.RecordSkipped()
		}
		return nil, err
	}

	totals := stats.Totals()
	finished := j.now()
	if j.metrics != nil {
		j.metrics.RecordRun(stats.Duration, len(stats.FailedSources), totals.Notified)
	}
	if j.slo != nil {
		j.slo.Observe(stats.OK(), stats.Duration, finished)
	}
	if j.health != nil {
		j.health.ObserveRun(RunStatus{
			RunID:         stats.RunID,
			OK:            stats.OK(),
			Sources:       stats.SourceCount,
			FailedSources: stats.FailedSources,
			Notified:      totals.Notified,
			FinishedAt:    finished,
			DurationMS:    stats.Duration.Milliseconds(),
		})
	}
	return stats, nil
}
