package entity

import (
	"fmt"
	"strings"
)

// maxRecordIDLength bounds identifiers coming from upstream markup.
const maxRecordIDLength = 256

// ValidateRecord checks the identifier of an extracted candidate.
// A record without a usable identifier cannot be deduplicated.
func ValidateRecord(rec Record) error {
	if rec == nil {
		return fmt.Errorf("%w: nil record", ErrInvalidInput)
	}
	id := rec.RecordID()
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidInput,
			&ValidationError{Field: "id", Message: "record id is required"})
	}
	if len(id) > maxRecordIDLength {
		return fmt.Errorf("%w: %w", ErrInvalidInput, &ValidationError{
			Field:   "id",
			Message: fmt.Sprintf("record id must not exceed %d characters", maxRecordIDLength),
		})
	}
	return nil
}
