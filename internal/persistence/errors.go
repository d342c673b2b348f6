package persistence

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrDuplicate is returned when a record with the same id already exists.
	ErrDuplicate = errors.New("persistence: duplicate record")
	// ErrVersionConflict is returned by optimistic updates when the stored
	// patch number no longer matches the expected one. Services pass it
	// through unmodified so collaborators can surface the conflict.
	ErrVersionConflict = errors.New("persistence: version conflict")
)
