package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/example/opsboard/internal/availability"
	"github.com/example/opsboard/internal/persistence"
	"github.com/example/opsboard/internal/timegrid"
)

// AvailabilityRepository captures the store interactions of the availability
// engine.
type AvailabilityRepository interface {
	CreateAvailability(ctx context.Context, record AvailabilityRecord) (AvailabilityRecord, error)
	ListAvailabilityWithinWeek(ctx context.Context, weekStart, weekEnd time.Time) ([]AvailabilityRecord, error)
	DeleteAvailability(ctx context.Context, id string) error
}

// AvailabilityService aggregates availability into week grids and applies
// selection edits through minimal create/delete diffs.
type AvailabilityService struct {
	records     AvailabilityRepository
	identity    IdentityProvider
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewAvailabilityService wires dependencies for availability operations.
func NewAvailabilityService(records AvailabilityRepository, identity IdentityProvider, idGenerator func() string, now func() time.Time) *AvailabilityService {
	return NewAvailabilityServiceWithLogger(records, identity, idGenerator, now, nil)
}

// NewAvailabilityServiceWithLogger wires dependencies including a base logger.
func NewAvailabilityServiceWithLogger(records AvailabilityRepository, identity IdentityProvider, idGenerator func() string, now func() time.Time, logger *slog.Logger) *AvailabilityService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &AvailabilityService{
		records:     records,
		identity:    identity,
		idGenerator: idGenerator,
		now:         now,
		logger:      logger,
	}
}

// WeekGrid loads the window's records and folds them into the viewer's grid:
// a per-cell heatmap across all users plus the viewer's owned cells.
func (s *AvailabilityService) WeekGrid(ctx context.Context, window timegrid.WeekWindow) (WeekGrid, error) {
	if s == nil || s.records == nil {
		return WeekGrid{}, fmt.Errorf("availability repository not configured")
	}

	viewer, err := s.currentIdentity(ctx)
	if err != nil {
		return WeekGrid{}, err
	}

	records, err := s.records.ListAvailabilityWithinWeek(ctx, window.Start, window.End)
	if err != nil {
		return WeekGrid{}, mapRepoError(err)
	}

	heatmap, ownedCells, err := availability.Aggregate(toGridRecords(records), viewer.UserID, viewer.Location(), window)
	if err != nil {
		return WeekGrid{}, err
	}

	byID := make(map[string]AvailabilityRecord, len(records))
	for _, record := range records {
		byID[record.ID] = record
	}
	owned := make(map[timegrid.CellID]AvailabilityRecord, len(ownedCells))
	for cell, record := range ownedCells {
		owned[cell] = byID[record.ID]
	}

	return WeekGrid{Window: window, Heatmap: heatmap, Owned: owned}, nil
}

// SaveSelection reconciles the viewer's stored records with the requested
// selection. Creates and deletes are dispatched concurrently and joined; a
// failed call does not roll back its already-succeeded siblings. On partial
// failure the aggregate SaveBatchError is returned and a retried save
// converges, because the recomputed diff omits already-applied changes.
func (s *AvailabilityService) SaveSelection(ctx context.Context, window timegrid.WeekWindow, selected map[timegrid.CellID]struct{}) (SaveSelectionResult, error) {
	if s == nil || s.records == nil {
		return SaveSelectionResult{}, fmt.Errorf("availability repository not configured")
	}

	viewer, err := s.currentIdentity(ctx)
	if err != nil {
		return SaveSelectionResult{}, err
	}
	loc := viewer.Location()

	records, err := s.records.ListAvailabilityWithinWeek(ctx, window.Start, window.End)
	if err != nil {
		return SaveSelectionResult{}, mapRepoError(err)
	}

	_, owned, err := availability.Aggregate(toGridRecords(records), viewer.UserID, loc, window)
	if err != nil {
		return SaveSelectionResult{}, err
	}

	toCreate, toDelete := availability.Diff(owned, selected)

	logger := serviceLogger(ctx, s.logger, "availability", "save_selection",
		"user_id", viewer.UserID, "creates", len(toCreate), "deletes", len(toDelete))

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		result   SaveSelectionResult
		failures []BatchFailure
	)

	for _, cell := range toCreate {
		record := AvailabilityRecord{
			ID:        s.idGenerator(),
			UserID:    viewer.UserID,
			Username:  viewer.Username,
			Nickname:  viewer.Nickname,
			Timestamp: timegrid.ToInstant(cell, loc, window.Start),
		}
		wg.Add(1)
		go func(cell timegrid.CellID, record AvailabilityRecord) {
			defer wg.Done()
			_, err := s.records.CreateAvailability(ctx, record)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures = append(failures, BatchFailure{Op: "create", Cell: cell, RecordID: record.ID, Err: err})
				return
			}
			result.Created++
		}(cell, record)
	}

	for _, stored := range toDelete {
		wg.Add(1)
		go func(stored availability.Record) {
			defer wg.Done()
			err := s.records.DeleteAvailability(ctx, stored.ID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil && !errors.Is(err, persistence.ErrNotFound) {
				failures = append(failures, BatchFailure{Op: "delete", RecordID: stored.ID, Err: err})
				return
			}
			result.Deleted++
		}(stored)
	}

	wg.Wait()

	if len(failures) > 0 {
		logger.WarnContext(ctx, "selection batch partially failed",
			"failed", len(failures), "created", result.Created, "deleted", result.Deleted)
		return result, &SaveBatchError{Failures: failures}
	}

	logger.InfoContext(ctx, "selection saved", "created", result.Created, "deleted", result.Deleted)
	return result, nil
}

func (s *AvailabilityService) currentIdentity(ctx context.Context) (Identity, error) {
	if s.identity == nil {
		return Identity{}, ErrUnauthorized
	}
	viewer, err := s.identity.Current(ctx)
	if err != nil {
		return Identity{}, err
	}
	if viewer.UserID == "" {
		return Identity{}, ErrUnauthorized
	}
	return viewer, nil
}

func toGridRecords(records []AvailabilityRecord) []availability.Record {
	out := make([]availability.Record, 0, len(records))
	for _, record := range records {
		out = append(out, availability.Record{
			ID:        record.ID,
			UserID:    record.UserID,
			Timestamp: record.Timestamp,
		})
	}
	return out
}

func mapRepoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, persistence.ErrNotFound) {
		return ErrNotFound
	}
	// Version conflicts from collaborators pass through unmodified.
	return err
}
