package persistence

import (
	"context"
	"time"
)

// AvailabilityRepository stores availability records.
type AvailabilityRepository interface {
	CreateAvailability(ctx context.Context, record AvailabilityRecord) (AvailabilityRecord, error)
	ListAvailabilityWithinWeek(ctx context.Context, weekStart, weekEnd time.Time) ([]AvailabilityRecord, error)
	DeleteAvailability(ctx context.Context, id string) error
	// DeleteAvailabilityBefore removes records older than cutoff and reports
	// how many were removed. Used by the retention janitor.
	DeleteAvailabilityBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// UpdateOptions selects the write discipline of an entry update. A nil
// ExpectedPatch means last-write-wins; a non-nil value enforces optimistic
// locking and fails with ErrVersionConflict on a stale patch number.
type UpdateOptions struct {
	ExpectedPatch *int64
}

// ScheduleRepository stores schedule entries.
type ScheduleRepository interface {
	// CreateEntries inserts the batch atomically; either every entry is
	// stored or none is.
	CreateEntries(ctx context.Context, entries []ScheduleEntry) ([]ScheduleEntry, error)
	GetEntry(ctx context.Context, id string) (ScheduleEntry, error)
	UpdateEntry(ctx context.Context, entry ScheduleEntry, opts UpdateOptions) (ScheduleEntry, error)
	DeleteEntry(ctx context.Context, id string) error
	// ListEntriesBySeries returns every entry sharing the series id, ordered
	// by start then id.
	ListEntriesBySeries(ctx context.Context, series int64) ([]ScheduleEntry, error)
	// DeleteEntriesBySeries removes every entry sharing the series id.
	DeleteEntriesBySeries(ctx context.Context, series int64) error
	ListEntriesWithinWeek(ctx context.Context, weekStart, weekEnd time.Time) ([]ScheduleEntry, error)
}
