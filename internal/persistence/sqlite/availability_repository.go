package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/opsboard/internal/persistence"
)

// AvailabilityRepository implements persistence.AvailabilityRepository on SQLite.
type AvailabilityRepository struct {
	store *Store
}

// NewAvailabilityRepository builds a repository over the shared store.
func NewAvailabilityRepository(store *Store) *AvailabilityRepository {
	return &AvailabilityRepository{store: store}
}

// CreateAvailability inserts one record.
func (r *AvailabilityRepository) CreateAvailability(ctx context.Context, record persistence.AvailabilityRecord) (persistence.AvailabilityRecord, error) {
	const query = `
		INSERT INTO availability_records (id, user_id, username, nickname, ts)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := r.store.db.ExecContext(ctx, query,
		record.ID,
		record.UserID,
		record.Username,
		record.Nickname,
		formatTime(record.Timestamp),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return persistence.AvailabilityRecord{}, persistence.ErrDuplicate
		}
		return persistence.AvailabilityRecord{}, fmt.Errorf("sqlite: create availability: %w", err)
	}
	return record, nil
}

// ListAvailabilityWithinWeek returns records with weekStart <= ts < weekEnd,
// ordered by timestamp then id.
func (r *AvailabilityRepository) ListAvailabilityWithinWeek(ctx context.Context, weekStart, weekEnd time.Time) ([]persistence.AvailabilityRecord, error) {
	const query = `
		SELECT id, user_id, username, nickname, ts
		FROM availability_records
		WHERE ts >= ? AND ts < ?
		ORDER BY ts, id
	`
	rows, err := r.store.db.QueryContext(ctx, query, formatTime(weekStart.UTC()), formatTime(weekEnd.UTC()))
	if err != nil {
		return nil, fmt.Errorf("sqlite: list availability: %w", err)
	}
	defer rows.Close()

	records := make([]persistence.AvailabilityRecord, 0)
	for rows.Next() {
		var (
			record persistence.AvailabilityRecord
			ts     string
		)
		if err := rows.Scan(&record.ID, &record.UserID, &record.Username, &record.Nickname, &ts); err != nil {
			return nil, fmt.Errorf("sqlite: scan availability: %w", err)
		}
		if record.Timestamp, err = parseTime(ts); err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// DeleteAvailability removes one record by id.
func (r *AvailabilityRepository) DeleteAvailability(ctx context.Context, id string) error {
	result, err := r.store.db.ExecContext(ctx, `DELETE FROM availability_records WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: delete availability: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: delete availability: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// DeleteAvailabilityBefore removes records older than cutoff.
func (r *AvailabilityRepository) DeleteAvailabilityBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.store.db.ExecContext(ctx, `DELETE FROM availability_records WHERE ts < ?`, formatTime(cutoff.UTC()))
	if err != nil {
		return 0, fmt.Errorf("sqlite: purge availability: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("sqlite: purge availability: %w", err)
	}
	return affected, nil
}
