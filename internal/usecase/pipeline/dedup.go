package pipeline

import (
	"context"
	"fmt"

	"permit-watch/internal/domain/entity"
)

// Finder is the read side of a record store.
type Finder[T entity.Record] interface {
	FindByID(ctx context.Context, id string) (T, bool, error)
}

// IsNew reports whether no record with candidate's id is stored yet.
// Found and not found are both successful outcomes; a failed lookup is
// wrapped in entity.ErrDedupCheck. Nothing is written.
func IsNew[T entity.Record](ctx context.Context, candidate T, lookup Finder[T]) (bool, error) {
	_, found, err := lookup.FindByID(ctx, candidate.RecordID())
	if err != nil {
		return false, fmt.Errorf("%w: lookup %s: %w", entity.ErrDedupCheck, candidate.RecordID(), err)
	}
	return !found, nil
}
