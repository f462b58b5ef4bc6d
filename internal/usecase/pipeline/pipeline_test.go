package pipeline

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"permit-watch/internal/domain/entity"
	"permit-watch/internal/resilience/retry"
)

/* ─── 1. Happy path and dedup ─── */

func TestPipeline_Run_NotifiesOnlyNewRecords(t *testing.T) {
	// Arrange
	store := newMemStore[*entity.ListingRecord]()
	require.NoError(t, store.Save(context.Background(), &entity.ListingRecord{ID: "2"}))
	notifier := &recordingNotifier{}
	p := New[*entity.ListingRecord](
		&staticExtractor[*entity.ListingRecord]{name: "listing", items: listing("1", "2", "3")},
		store, notifier, Options{Parallelism: 3},
	)

	// Act
	stats, err := p.Run(context.Background())

	// Assert
	require.NoError(t, err)
	want := &SourceStats{Source: "listing", Extracted: 3, Duplicates: 1, Inserted: 2, Notified: 2}
	if diff := cmp.Diff(want, stats, cmpIgnoreDuration); diff != "" {
		t.Errorf("stats mismatch (-want +got):\n%s", diff)
	}
	assert.ElementsMatch(t, []string{"1", "3"}, notifier.notified())
}

func TestPipeline_Run_IsIdempotent(t *testing.T) {
	store := newMemStore[*entity.ListingRecord]()
	notifier := &recordingNotifier{}
	p := New[*entity.ListingRecord](
		&staticExtractor[*entity.ListingRecord]{name: "listing", items: listing("a", "b")},
		store, notifier, Options{},
	)

	first, err := p.Run(context.Background())
	require.NoError(t, err)
	second, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, first.Notified)
	assert.Equal(t, 0, second.Notified, "a second run over the same candidates notifies nothing")
	assert.Equal(t, 2, second.Duplicates)
	assert.Len(t, notifier.notified(), 2)
	assert.Equal(t, 2, store.inserts)
}

func TestPipeline_Run_DuplicateCandidatesInOneBatch(t *testing.T) {
	store := newMemStore[*entity.FeedRecord]()
	notifier := &recordingNotifier{}
	id := entity.FeedRecordID("http://example.org/a/1")
	items := []*entity.FeedRecord{
		{ID: id, Title: "first"},
		{ID: id, Title: "again"},
	}
	p := New[*entity.FeedRecord](&staticExtractor[*entity.FeedRecord]{name: "feed", items: items}, store, notifier, Options{Parallelism: 2})

	stats, err := p.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, stats.Inserted)
	assert.Equal(t, 1, stats.Duplicates)
	assert.Equal(t, []string{id}, notifier.notified())
}

func TestPipeline_Run_LostRaceIsDuplicate(t *testing.T) {
	store := newMemStore[*entity.ListingRecord]()
	store.lostRace["9"] = true
	notifier := &recordingNotifier{}
	p := New[*entity.ListingRecord](&staticExtractor[*entity.ListingRecord]{name: "listing", items: listing("9")}, store, notifier, Options{})

	stats, err := p.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 0, stats.Inserted)
	assert.Equal(t, 1, stats.Duplicates)
	assert.Zero(t, stats.StoreFailures)
	assert.Empty(t, notifier.notified())
}

/* ─── 2. Failure isolation ─── */

func TestPipeline_Run_ExtractFailure(t *testing.T) {
	cause := fmt.Errorf("%w: HTTP 502", entity.ErrFetch)
	notifier := &recordingNotifier{}
	p := New[*entity.FeedRecord](&staticExtractor[*entity.FeedRecord]{name: "feed", err: cause}, newMemStore[*entity.FeedRecord](), notifier, Options{})

	stats, err := p.Run(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, entity.ErrFetch)
	var serr *entity.StageError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "feed", serr.Source)
	assert.Equal(t, StageExtract, serr.Stage)
	assert.Zero(t, stats.Extracted)
	assert.Empty(t, notifier.notified())
}

func TestPipeline_Run_PerRecordFailuresDoNotAbortSiblings(t *testing.T) {
	// Arrange
	store := newMemStore[*entity.ListingRecord]()
	store.findErr["check-fails"] = errors.New("lookup timeout")
	store.insertErr["store-fails"] = errors.New("disk full")
	notifier := &recordingNotifier{failFor: map[string]bool{"notify-fails": true}}

	items := listing("ok-1", "check-fails", "store-fails", "notify-fails", "ok-2")
	items = append(items, &entity.ListingRecord{ID: ""})
	p := New[*entity.ListingRecord](&staticExtractor[*entity.ListingRecord]{name: "listing", items: items}, store, notifier, Options{Parallelism: 2})

	// Act
	stats, err := p.Run(context.Background())

	// Assert
	require.NoError(t, err)
	want := &SourceStats{
		Source:         "listing",
		Extracted:      6,
		Inserted:       3,
		Notified:       2,
		CheckFailures:  2,
		StoreFailures:  1,
		NotifyFailures: 1,
	}
	if diff := cmp.Diff(want, stats, cmpIgnoreDuration); diff != "" {
		t.Errorf("stats mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 4, stats.Failures())
	assert.ElementsMatch(t, []string{"ok-1", "ok-2"}, notifier.notified())
	assert.True(t, store.has("notify-fails"), "a failed notification does not undo the insert")
	assert.False(t, store.has("store-fails"))
}

func TestPipeline_Run_RetriesTransientStoreErrors(t *testing.T) {
	store := &flakyStore{memStore: newMemStore[*entity.ListingRecord](), failures: 1}
	notifier := &recordingNotifier{}
	p := New[*entity.ListingRecord](
		&staticExtractor[*entity.ListingRecord]{name: "listing", items: listing("1")},
		store, notifier,
		Options{StoreRetry: retry.Config{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}},
	)

	stats, err := p.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, stats.Inserted)
	assert.Equal(t, 2, store.attempts)
}

/* ─── 3. Tracing ─── */

func TestPipeline_Run_EmitsSpans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	p := New[*entity.ListingRecord](
		&staticExtractor[*entity.ListingRecord]{name: "listing", items: listing("1")},
		newMemStore[*entity.ListingRecord](), &recordingNotifier{},
		Options{Tracer: tp.Tracer("test")},
	)

	_, err := p.Run(context.Background())
	require.NoError(t, err)

	var names []string
	for _, s := range exporter.GetSpans() {
		names = append(names, s.Name)
	}
	assert.ElementsMatch(t, []string{"stage.extract", "stage.check", "stage.store", "stage.notify", "pipeline.listing"}, names)
}

var cmpIgnoreDuration = cmp.FilterPath(func(p cmp.Path) bool {
	return p.Last().String() == ".Duration"
}, cmp.Ignore())

// flakyStore fails InsertIfAbsent with a retryable error a fixed number of times.
type flakyStore struct {
	*memStore[*entity.ListingRecord]
	failures int
	attempts int
}

func (s *flakyStore) InsertIfAbsent(ctx context.Context, rec *entity.ListingRecord) (bool, error) {
	s.attempts++
	if s.attempts <= s.failures {
		return false, fmt.Errorf("write: %w", syscall.ECONNRESET)
	}
	return s.memStore.InsertIfAbsent(ctx, rec)
}
