package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"permit-watch/internal/domain/entity"
	"permit-watch/internal/observability/logging"
	"permit-watch/internal/observability/metrics"
	"permit-watch/internal/observability/tracing"
	"permit-watch/internal/repository"
	"permit-watch/internal/resilience/retry"
)

// Stage names used in logs, metrics and StageError.
const (
	StageExtract = "extract"
	StageCheck   = "check"
	StageStore   = "store"
	StageNotify  = "notify"
)

// Extractor fetches the current candidates of one source.
type Extractor[T entity.Record] interface {
	Name() string
	Extract(ctx context.Context) ([]T, error)
}

// Notifier delivers one persisted record. notify.Service satisfies it.
type Notifier interface {
	Notify(ctx context.Context, rec entity.Record) error
}

// Source is a runnable pipeline with its type parameter erased, so the
// Runner can hold pipelines of different record kinds.
type Source interface {
	Name() string
	Run(ctx context.Context) (*SourceStats, error)
}

// SourceStats contains statistics about one source pipeline run.
type SourceStats struct {
	Source         string
	Extracted      int
	Duplicates     int
	Inserted       int
	Notified       int
	CheckFailures  int
	StoreFailures  int
	NotifyFailures int
	Duration       time.Duration
}

// Failures is the number of per-record failures across all stages.
func (s *SourceStats) Failures() int {
	return s.CheckFailures + s.StoreFailures + s.NotifyFailures
}

// Options tunes a Pipeline. Zero values select the defaults.
type Options struct {
	// Parallelism bounds concurrent candidates within a stage (default 1).
	Parallelism int
	// StoreRetry is the backoff for InsertIfAbsent (default retry.StoreConfig()).
	StoreRetry retry.Config
	// Tracer overrides the global tracer.
	Tracer trace.Tracer
}

// Pipeline processes the candidates of one source.
type Pipeline[T entity.Record] struct {
	extractor Extractor[T]
	store     repository.RecordStore[T]
	notifier  Notifier
	opts      Options
}

// New builds a Pipeline for one source.
func New[T entity.Record](extractor Extractor[T], store repository.RecordStore[T], notifier Notifier, opts Options) *Pipeline[T] {
	if opts.Parallelism < 1 {
		opts.Parallelism = 1
	}
	if opts.StoreRetry.MaxAttempts < 1 {
		opts.StoreRetry = retry.StoreConfig()
	}
	return &Pipeline[T]{
		extractor: extractor,
		store:     store,
		notifier:  notifier,
		opts:      opts,
	}
}

// Name returns the extractor name.
func (p *Pipeline[T]) Name() string {
	return p.extractor.Name()
}

func (p *Pipeline[T]) tracer() trace.Tracer {
	if p.opts.Tracer != nil {
		return p.opts.Tracer
	}
	return tracing.GetTracer()
}

// Run extracts candidates, keeps the ones not stored yet, persists them
// with insert-if-absent and notifies every record this run inserted.
//
// Only an extraction failure fails the run; per-record failures are logged
// with source, stage and record id, counted in the stats and skipped.
// A record that fails to notify stays stored and is not retried.
func (p *Pipeline[T]) Run(ctx context.Context) (*SourceStats, error) {
	name := p.Name()
	start := time.Now()
	stats := &SourceStats{Source: name}

	ctx, span := p.tracer().Start(ctx, "pipeline."+name)
	defer span.End()

	ctx = logging.WithSource(ctx, name)
	logger := logging.FromContext(ctx)

	candidates, err := p.extract(ctx)
	if err != nil {
		stats.Duration = time.Since(start)
		serr := &entity.StageError{Source: name, Stage: StageExtract, Err: err}
		tracing.Fail(span, serr)
		metrics.RecordSourceRun(name, "failure", stats.Duration, metrics.SourceRun{})
		return stats, serr
	}
	stats.Extracted = len(candidates)

	checked := p.stage(ctx, StageCheck, candidates, p.check)
	_, dropped, failed := checked.Counts()
	stats.Duplicates += dropped
	stats.CheckFailures = failed

	stored := p.stage(ctx, StageStore, checked.Kept(), p.insert)
	inserted, dropped, failed := stored.Counts()
	stats.Inserted = inserted
	stats.Duplicates += dropped
	stats.StoreFailures = failed

	notified := p.stage(ctx, StageNotify, stored.Kept(), p.notify)
	stats.Notified, _, stats.NotifyFailures = notified.Counts()

	stats.Duration = time.Since(start)
	span.SetAttributes(
		attribute.Int("records.extracted", stats.Extracted),
		attribute.Int("records.inserted", stats.Inserted),
		attribute.Int("records.failed", stats.Failures()),
	)
	metrics.RecordSourceRun(name, "success", stats.Duration, metrics.SourceRun{
		Extracted:  stats.Extracted,
		Inserted:   stats.Inserted,
		Duplicates: stats.Duplicates,
		Notified:   stats.Notified,
	})

	logger.Info("source run completed",
		slog.Int("extracted", stats.Extracted),
		slog.Int("duplicates", stats.Duplicates),
		slog.Int("inserted", stats.Inserted),
		slog.Int("notified", stats.Notified),
		slog.Int("failures", stats.Failures()),
		slog.Duration("duration", stats.Duration))

	return stats, nil
}

func (p *Pipeline[T]) extract(ctx context.Context) ([]T, error) {
	ctx, span := p.tracer().Start(ctx, "stage."+StageExtract)
	defer span.End()

	candidates, err := p.extractor.Extract(ctx)
	if err != nil {
		tracing.Fail(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("records", len(candidates)))
	return candidates, nil
}

// stage runs fn over items and logs every failure as a StageError.
func (p *Pipeline[T]) stage(ctx context.Context, stage string, items []T, fn StageFunc[T]) Batch[T] {
	if len(items) == 0 {
		return nil
	}

	ctx, span := p.tracer().Start(ctx, "stage."+stage,
		trace.WithAttributes(attribute.Int("records", len(items))))
	defer span.End()

	batch := RunStage(ctx, items, p.opts.Parallelism, fn)

	logger := logging.FromContext(ctx)
	for _, r := range batch.Errors() {
		serr := &entity.StageError{
			Source:   p.Name(),
			Stage:    stage,
			RecordID: r.Value.RecordID(),
			Err:      r.Err,
		}
		metrics.RecordStageFailure(p.Name(), stage)
		logger.Warn("record failed",
			slog.String("stage", stage),
			slog.String("record_id", serr.RecordID),
			slog.String("error", logging.SanitizeError(serr)))
	}

	if _, _, failed := batch.Counts(); failed > 0 {
		span.SetAttributes(attribute.Int("records.failed", failed))
	}
	return batch
}

// check keeps well-formed candidates that are not stored yet.
func (p *Pipeline[T]) check(ctx context.Context, rec T) (bool, error) {
	if err := entity.ValidateRecord(rec); err != nil {
		return false, err
	}

	start := time.Now()
	isNew, err := IsNew(ctx, rec, p.store)
	metrics.RecordOperationDuration("find_by_id", time.Since(start))
	return isNew, err
}

// insert keeps records this call inserted. A record another writer
// inserted first is dropped as a duplicate, not reported as an error.
func (p *Pipeline[T]) insert(ctx context.Context, rec T) (bool, error) {
	var inserted bool
	start := time.Now()
	err := retry.WithBackoff(ctx, p.opts.StoreRetry, func() error {
		var err error
		inserted, err = p.store.InsertIfAbsent(ctx, rec)
		return err
	})
	metrics.RecordOperationDuration("insert_if_absent", time.Since(start))

	if err != nil {
		if errors.Is(err, entity.ErrStore) {
			return false, err
		}
		return false, fmt.Errorf("%w: %w", entity.ErrStore, err)
	}
	if !inserted {
		logging.FromContext(ctx).Debug("record inserted concurrently, skipping",
			slog.String("record_id", rec.RecordID()))
	}
	return inserted, nil
}

func (p *Pipeline[T]) notify(ctx context.Context, rec T) (bool, error) {
	if err := p.notifier.Notify(ctx, rec); err != nil {
		if errors.Is(err, entity.ErrNotify) {
			return false, err
		}
		return false, fmt.Errorf("%w: %w", entity.ErrNotify, err)
	}
	return true, nil
}
