package testfixtures

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/example/opsboard/internal/application"
	"github.com/example/opsboard/internal/persistence"
)

// AvailabilityStore is an in-memory application.AvailabilityRepository with
// per-call failure hooks for partial-failure tests.
type AvailabilityStore struct {
	mu      sync.Mutex
	records map[string]application.AvailabilityRecord

	// CreateErr and DeleteErr, when set, are consulted before each call and
	// may inject a failure.
	CreateErr func(record application.AvailabilityRecord) error
	DeleteErr func(id string) error
}

// NewAvailabilityStore returns an empty in-memory availability store.
func NewAvailabilityStore() *AvailabilityStore {
	return &AvailabilityStore{records: make(map[string]application.AvailabilityRecord)}
}

// CreateAvailability stores the record.
func (s *AvailabilityStore) CreateAvailability(_ context.Context, record application.AvailabilityRecord) (application.AvailabilityRecord, error) {
	if s.CreateErr != nil {
		if err := s.CreateErr(record); err != nil {
			return application.AvailabilityRecord{}, err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[record.ID]; exists {
		return application.AvailabilityRecord{}, persistence.ErrDuplicate
	}
	s.records[record.ID] = record
	return record, nil
}

// ListAvailabilityWithinWeek returns the stored records inside the window,
// ordered by timestamp then id.
func (s *AvailabilityStore) ListAvailabilityWithinWeek(_ context.Context, weekStart, weekEnd time.Time) ([]application.AvailabilityRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]application.AvailabilityRecord, 0, len(s.records))
	for _, record := range s.records {
		if record.Timestamp.Before(weekStart) || !record.Timestamp.Before(weekEnd) {
			continue
		}
		out = append(out, record)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].ID < out[j].ID
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

// DeleteAvailability removes one record by id.
func (s *AvailabilityStore) DeleteAvailability(_ context.Context, id string) error {
	if s.DeleteErr != nil {
		if err := s.DeleteErr(id); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[id]; !exists {
		return persistence.ErrNotFound
	}
	delete(s.records, id)
	return nil
}

// Len reports the number of stored records.
func (s *AvailabilityStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// ScheduleStore is an in-memory application.ScheduleRepository with failure
// hooks for reconciliation tests.
type ScheduleStore struct {
	mu      sync.Mutex
	entries map[string]application.ScheduleEntry

	CreateBatchErr  func(entries []application.ScheduleEntry) error
	DeleteSeriesErr func(series int64) error
}

// NewScheduleStore returns an empty in-memory schedule store.
func NewScheduleStore() *ScheduleStore {
	return &ScheduleStore{entries: make(map[string]application.ScheduleEntry)}
}

// CreateEntries stores the batch atomically.
func (s *ScheduleStore) CreateEntries(_ context.Context, entries []application.ScheduleEntry) ([]application.ScheduleEntry, error) {
	if s.CreateBatchErr != nil {
		if err := s.CreateBatchErr(entries); err != nil {
			return nil, err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, entry := range entries {
		if _, exists := s.entries[entry.ID]; exists {
			return nil, persistence.ErrDuplicate
		}
	}
	stored := make([]application.ScheduleEntry, 0, len(entries))
	for _, entry := range entries {
		s.entries[entry.ID] = entry
		stored = append(stored, entry)
	}
	return stored, nil
}

// GetEntry returns one entry by id.
func (s *ScheduleStore) GetEntry(_ context.Context, id string) (application.ScheduleEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, exists := s.entries[id]
	if !exists {
		return application.ScheduleEntry{}, persistence.ErrNotFound
	}
	return entry, nil
}

// UpdateEntry overwrites one entry, honoring the optimistic-lock option.
func (s *ScheduleStore) UpdateEntry(_ context.Context, entry application.ScheduleEntry, opts application.UpdateOptions) (application.ScheduleEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, exists := s.entries[entry.ID]
	if !exists {
		return application.ScheduleEntry{}, persistence.ErrNotFound
	}
	if opts.ExpectedPatch != nil && current.Patch != *opts.ExpectedPatch {
		return application.ScheduleEntry{}, persistence.ErrVersionConflict
	}
	entry.Patch = current.Patch + 1
	s.entries[entry.ID] = entry
	return entry, nil
}

// DeleteEntry removes one entry by id.
func (s *ScheduleStore) DeleteEntry(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[id]; !exists {
		return persistence.ErrNotFound
	}
	delete(s.entries, id)
	return nil
}

// ListEntriesBySeries returns every entry sharing the series id, ordered by
// start then id.
func (s *ScheduleStore) ListEntriesBySeries(_ context.Context, series int64) ([]application.ScheduleEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]application.ScheduleEntry, 0)
	for _, entry := range s.entries {
		if entry.RepeatSeries == series {
			out = append(out, entry)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Start.Equal(out[j].Start) {
			return out[i].ID < out[j].ID
		}
		return out[i].Start.Before(out[j].Start)
	})
	return out, nil
}

// DeleteEntriesBySeries removes every entry sharing the series id.
func (s *ScheduleStore) DeleteEntriesBySeries(_ context.Context, series int64) error {
	if s.DeleteSeriesErr != nil {
		if err := s.DeleteSeriesErr(series); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, entry := range s.entries {
		if entry.RepeatSeries == series {
			delete(s.entries, id)
		}
	}
	return nil
}

// ListEntriesWithinWeek returns entries starting inside the window.
func (s *ScheduleStore) ListEntriesWithinWeek(_ context.Context, weekStart, weekEnd time.Time) ([]application.ScheduleEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]application.ScheduleEntry, 0, len(s.entries))
	for _, entry := range s.entries {
		if entry.Start.Before(weekStart) || !entry.Start.Before(weekEnd) {
			continue
		}
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Start.Equal(out[j].Start) {
			return out[i].ID < out[j].ID
		}
		return out[i].Start.Before(out[j].Start)
	})
	return out, nil
}

// All returns every stored entry, ordered by start then id.
func (s *ScheduleStore) All() []application.ScheduleEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]application.ScheduleEntry, 0, len(s.entries))
	for _, entry := range s.entries {
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Start.Equal(out[j].Start) {
			return out[i].ID < out[j].ID
		}
		return out[i].Start.Before(out[j].Start)
	})
	return out
}
