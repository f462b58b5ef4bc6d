package repository

import (
	"context"

	"permit-watch/internal/domain/entity"
)

// RecordStore persists records of one kind, keyed by RecordID.
// Implementations must be safe for concurrent use.
type RecordStore[T entity.Record] interface {
	// FindByID returns the stored record and true, or the zero value and
	// false when no record with that id exists. Not found is not an error.
	FindByID(ctx context.Context, id string) (T, bool, error)
	// Save inserts the record unconditionally.
	Save(ctx context.Context, record T) error
	// InsertIfAbsent atomically inserts the record unless one with the same
	// id already exists. It reports whether this call inserted it.
	InsertIfAbsent(ctx context.Context, record T) (bool, error)
}
