package application

import (
	"errors"
	"fmt"

	"github.com/example/opsboard/internal/timegrid"
)

var (
	// ErrUnauthorized is returned when the acting identity may not perform an operation.
	ErrUnauthorized = errors.New("application: unauthorized")
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrSeriesDeleteFailed marks a series replacement whose new instances were
	// created but whose old series could not be deleted. Non-fatal: both series
	// coexist and the caller may retry the deletion.
	ErrSeriesDeleteFailed = errors.New("application: old series deletion failed")
	// ErrSaveBatchFailed marks a selection save in which a subset of the
	// create/delete batch failed. Already-applied changes are not rolled back;
	// a retried save recomputes the diff against current state and converges.
	ErrSaveBatchFailed = errors.New("application: selection batch partially failed")
)

// ValidationError captures field-level validation issues that callers can
// surface to users. Local validation runs before any store call and mutates
// no state.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	return "validation failed"
}

// HasErrors reports whether any field-level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field-level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// SeriesDeleteError reports a series replacement that created the new series
// but failed to delete the old one.
type SeriesDeleteError struct {
	Series int64
	Cause  error
}

// Error implements the error interface.
func (e *SeriesDeleteError) Error() string {
	return fmt.Sprintf("application: series %d replaced but old series deletion failed: %v", e.Series, e.Cause)
}

// Unwrap exposes the underlying store error.
func (e *SeriesDeleteError) Unwrap() error {
	return e.Cause
}

// Is matches the ErrSeriesDeleteFailed sentinel.
func (e *SeriesDeleteError) Is(target error) bool {
	return target == ErrSeriesDeleteFailed
}

// BatchFailure is one failed call inside a selection save batch.
type BatchFailure struct {
	Op       string
	Cell     timegrid.CellID
	RecordID string
	Err      error
}

// SaveBatchError aggregates the failures of one selection save. The engine
// performs no automatic retry; callers re-invoke the save and rely on diff
// idempotence to skip already-applied changes.
type SaveBatchError struct {
	Failures []BatchFailure
}

// Error implements the error interface.
func (e *SaveBatchError) Error() string {
	return fmt.Sprintf("application: %d of the selection batch calls failed", len(e.Failures))
}

// Unwrap exposes the underlying call errors.
func (e *SaveBatchError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, failure := range e.Failures {
		errs = append(errs, failure.Err)
	}
	return errs
}

// Is matches the ErrSaveBatchFailed sentinel.
func (e *SaveBatchError) Is(target error) bool {
	return target == ErrSaveBatchFailed
}
