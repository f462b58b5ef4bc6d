package entity

import (
	"errors"
	"fmt"
)

// Sentinel errors for pipeline stages. Every failure surfaced by an
// extractor, the store or a notifier wraps exactly one of these.
var (
	// ErrFetch indicates the upstream was unreachable or answered with a non-success status
	ErrFetch = errors.New("fetch failed")

	// ErrParse indicates the upstream payload did not have the expected shape
	ErrParse = errors.New("parse failed")

	// ErrAuth indicates the portal session could not be established
	ErrAuth = errors.New("authentication failed")

	// ErrDedupCheck indicates the store lookup for a candidate failed
	ErrDedupCheck = errors.New("dedup check failed")

	// ErrStore indicates a new record could not be persisted
	ErrStore = errors.New("store failed")

	// ErrNotify indicates a persisted record could not be delivered
	ErrNotify = errors.New("notify failed")

	// ErrInvalidInput indicates that the provided input is invalid
	ErrInvalidInput = errors.New("invalid input")
)

// ValidationError represents a validation error with detailed field information.
type ValidationError struct {
	Field   string
	Message string
}

// Error returns a formatted error message for the validation error.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// StageError ties a failure to the source, stage and record it happened on.
// RecordID is empty for source-level failures such as a failed extraction.
type StageError struct {
	Source   string
	Stage    string
	RecordID string
	Err      error
}

func (e *StageError) Error() string {
	if e.RecordID == "" {
		return fmt.Sprintf("%s/%s: %v", e.Source, e.Stage, e.Err)
	}
	return fmt.Sprintf("%s/%s [%s]: %v", e.Source, e.Stage, e.RecordID, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
