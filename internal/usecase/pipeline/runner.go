package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"permit-watch/internal/domain/entity"
	"permit-watch/internal/observability/logging"
	"permit-watch/internal/observability/metrics"
	"permit-watch/internal/observability/tracing"
)

// ErrRunInProgress is returned by RunOnce when the previous run has not
// finished yet. The caller should skip the tick.
var ErrRunInProgress = errors.New("run already in progress")

// RunStats contains statistics about one scheduled run over all sources.
type RunStats struct {
	RunID         string
	SourceCount   int            // sources attempted, failed ones included
	Sources       []*SourceStats // per-source stats, failed sources included
	FailedSources []string
	Duration      time.Duration
}

// Totals sums the per-source counters.
func (s *RunStats) Totals() SourceStats {
	var t SourceStats
	for _, st := range s.Sources {
		t.Extracted += st.Extracted
		t.Duplicates += st.Duplicates
		t.Inserted += st.Inserted
		t.Notified += st.Notified
		t.CheckFailures += st.CheckFailures
		t.StoreFailures += st.StoreFailures
		t.NotifyFailures += st.NotifyFailures
	}
	return t
}

// OK reports whether every source completed its run.
func (s *RunStats) OK() bool {
	return len(s.FailedSources) == 0
}

// Runner executes every registered source once per call.
type Runner struct {
	sources []Source
	timeout time.Duration
	tracer  trace.Tracer

	mu sync.Mutex
}

// NewRunner creates a Runner. A positive timeout bounds each RunOnce.
func NewRunner(timeout time.Duration, sources ...Source) *Runner {
	return &Runner{sources: sources, timeout: timeout}
}

// WithTracer overrides the global tracer.
func (r *Runner) WithTracer(t trace.Tracer) *Runner {
	r.tracer = t
	return r
}

// Sources returns the names of the registered sources in run order.
func (r *Runner) Sources() []string {
	names := make([]string, 0, len(r.sources))
	for _, s := range r.sources {
		names = append(names, s.Name())
	}
	return names
}

// RunOnce runs every source sequentially. A source that fails or panics
// is logged and counted and the next source still runs, so the returned
// error is only ErrRunInProgress (when another run holds the guard) or nil.
func (r *Runner) RunOnce(ctx context.Context) (*RunStats, error) {
	if !r.mu.TryLock() {
		logging.FromContext(ctx).Warn("previous run still in progress, skipping tick")
		return nil, ErrRunInProgress
	}
	defer r.mu.Unlock()

	start := time.Now()
	stats := &RunStats{RunID: uuid.NewString(), SourceCount: len(r.sources)}
	ctx = logging.WithRunID(ctx, stats.RunID)

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	tracer := r.tracer
	if tracer == nil {
		tracer = tracing.GetTracer()
	}
	ctx, span := tracer.Start(ctx, "run",
		trace.WithAttributes(attribute.String("run.id", stats.RunID)))
	defer span.End()

	logger := logging.FromContext(ctx)
	logger.Info("run started", slog.Int("sources", len(r.sources)))

	for _, src := range r.sources {
		st, err := r.runSource(ctx, src)
		if st != nil {
			stats.Sources = append(stats.Sources, st)
		}
		if err != nil {
			stats.FailedSources = append(stats.FailedSources, src.Name())
			logger.Error("source failed",
				slog.String("source", src.Name()),
				slog.String("error", logging.SanitizeError(err)))
		}
	}

	stats.Duration = time.Since(start)
	totals := stats.Totals()
	span.SetAttributes(
		attribute.Int("records.inserted", totals.Inserted),
		attribute.Int("sources.failed", len(stats.FailedSources)),
	)
	if !stats.OK() {
		tracing.Fail(span, fmt.Errorf("%d of %d sources failed", len(stats.FailedSources), len(r.sources)))
	}

	logger.Info("run completed",
		slog.Int("extracted", totals.Extracted),
		slog.Int("duplicates", totals.Duplicates),
		slog.Int("inserted", totals.Inserted),
		slog.Int("notified", totals.Notified),
		slog.Int("record_failures", totals.Failures()),
		slog.Any("failed_sources", stats.FailedSources),
		slog.Duration("duration", stats.Duration))

	return stats, nil
}

// runSource runs one source and converts a panic into an error.
func (r *Runner) runSource(ctx context.Context, src Source) (st *SourceStats, err error) {
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			logging.FromContext(ctx).Error("panic in source pipeline",
				slog.String("source", src.Name()),
				slog.Any("panic", rec),
				slog.String("stack", string(debug.Stack())))
			metrics.RecordSourceRun(src.Name(), "panic", time.Since(start), metrics.SourceRun{})
			st = &SourceStats{Source: src.Name(), Duration: time.Since(start)}
			err = &entity.StageError{Source: src.Name(), Stage: "run", Err: fmt.Errorf("panic: %v", rec)}
		}
	}()

	return src.Run(ctx)
}
