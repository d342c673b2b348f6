package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/example/opsboard/internal/persistence"
)

// AvailabilityRepository implements persistence.AvailabilityRepository on PostgreSQL.
type AvailabilityRepository struct {
	store *Store
}

// NewAvailabilityRepository builds a repository over the shared store.
func NewAvailabilityRepository(store *Store) *AvailabilityRepository {
	return &AvailabilityRepository{store: store}
}

type availabilityRow struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	Username  string    `db:"username"`
	Nickname  string    `db:"nickname"`
	Timestamp time.Time `db:"ts"`
}

// CreateAvailability inserts one record.
func (r *AvailabilityRepository) CreateAvailability(ctx context.Context, record persistence.AvailabilityRecord) (persistence.AvailabilityRecord, error) {
	const query = `
		INSERT INTO availability_records (id, user_id, username, nickname, ts)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.store.db.ExecContext(ctx, query,
		record.ID, record.UserID, record.Username, record.Nickname, record.Timestamp,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return persistence.AvailabilityRecord{}, persistence.ErrDuplicate
		}
		return persistence.AvailabilityRecord{}, fmt.Errorf("postgres: create availability: %w", err)
	}
	return record, nil
}

// ListAvailabilityWithinWeek returns records with weekStart <= ts < weekEnd,
// ordered by timestamp then id.
func (r *AvailabilityRepository) ListAvailabilityWithinWeek(ctx context.Context, weekStart, weekEnd time.Time) ([]persistence.AvailabilityRecord, error) {
	const query = `
		SELECT id, user_id, username, nickname, ts
		FROM availability_records
		WHERE ts >= $1 AND ts < $2
		ORDER BY ts, id
	`
	var rows []availabilityRow
	if err := r.store.db.SelectContext(ctx, &rows, query, weekStart, weekEnd); err != nil {
		return nil, fmt.Errorf("postgres: list availability: %w", err)
	}

	records := make([]persistence.AvailabilityRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, persistence.AvailabilityRecord{
			ID:        row.ID,
			UserID:    row.UserID,
			Username:  row.Username,
			Nickname:  row.Nickname,
			Timestamp: row.Timestamp,
		})
	}
	return records, nil
}

// DeleteAvailability removes one record by id.
func (r *AvailabilityRepository) DeleteAvailability(ctx context.Context, id string) error {
	result, err := r.store.db.ExecContext(ctx, `DELETE FROM availability_records WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: delete availability: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("postgres: delete availability: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// DeleteAvailabilityBefore removes records older than cutoff.
func (r *AvailabilityRepository) DeleteAvailabilityBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.store.db.ExecContext(ctx, `DELETE FROM availability_records WHERE ts < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("postgres: purge availability: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("postgres: purge availability: %w", err)
	}
	return affected, nil
}
