package pipeline

import (
	"context"
	"errors"
	"sync"

	"permit-watch/internal/domain/entity"
)

// memStore is an in-memory RecordStore with injectable failures.
type memStore[T entity.Record] struct {
	mu        sync.Mutex
	records   map[string]T
	findErr   map[string]error
	insertErr map[string]error
	// lostRace ids are reported absent by FindByID but taken by InsertIfAbsent
	lostRace map[string]bool
	inserts  int
}

func newMemStore[T entity.Record]() *memStore[T] {
	return &memStore[T]{
		records:   map[string]T{},
		findErr:   map[string]error{},
		insertErr: map[string]error{},
		lostRace:  map[string]bool{},
	}
}

func (s *memStore[T]) FindByID(_ context.Context, id string) (T, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var zero T
	if err := s.findErr[id]; err != nil {
		return zero, false, err
	}
	rec, ok := s.records[id]
	return rec, ok, nil
}

func (s *memStore[T]) Save(_ context.Context, rec T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.RecordID()] = rec
	return nil
}

func (s *memStore[T]) InsertIfAbsent(_ context.Context, rec T) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := rec.RecordID()
	if err := s.insertErr[id]; err != nil {
		return false, err
	}
	if s.lostRace[id] {
		return false, nil
	}
	if _, ok := s.records[id]; ok {
		return false, nil
	}
	s.records[id] = rec
	s.inserts++
	return true, nil
}

func (s *memStore[T]) has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.records[id]
	return ok
}

// staticExtractor returns a fixed candidate list or error.
type staticExtractor[T entity.Record] struct {
	name  string
	items []T
	err   error
}

func (e *staticExtractor[T]) Name() string { return e.name }

func (e *staticExtractor[T]) Extract(context.Context) ([]T, error) {
	if e.err != nil {
		return nil, e.err
	}
	return e.items, nil
}

// recordingNotifier remembers notified ids and fails for selected ones.
type recordingNotifier struct {
	mu      sync.Mutex
	ids     []string
	failFor map[string]bool
}

func (n *recordingNotifier) Notify(_ context.Context, rec entity.Record) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failFor[rec.RecordID()] {
		return errors.New("chat unavailable")
	}
	n.ids = append(n.ids, rec.RecordID())
	return nil
}

func (n *recordingNotifier) notified() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.ids...)
}

func listing(ids ...string) []*entity.ListingRecord {
	out := make([]*entity.ListingRecord, 0, len(ids))
	for _, id := range ids {
		out = append(out, &entity.ListingRecord{ID: id, Object: "object " + id})
	}
	return out
}
