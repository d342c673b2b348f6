package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/example/opsboard/internal/persistence"
)

// ScheduleRepository implements persistence.ScheduleRepository on SQLite.
type ScheduleRepository struct {
	store *Store
}

// NewScheduleRepository builds a repository over the shared store.
func NewScheduleRepository(store *Store) *ScheduleRepository {
	return &ScheduleRepository{store: store}
}

const entryColumns = `id, author_id, entry_type, title, description, start_time, end_time,
	repeat, repeat_frequency, repeat_end_date, repeat_series,
	rsvp_options, members, attendees, fleets, channel, active, patch, created_at, updated_at`

// CreateEntries inserts the batch inside one transaction; a failed insert
// rolls the whole batch back.
func (r *ScheduleRepository) CreateEntries(ctx context.Context, entries []persistence.ScheduleEntry) ([]persistence.ScheduleEntry, error) {
	if len(entries) == 0 {
		return nil, nil
	}

	const query = `
		INSERT INTO schedule_entries (` + entryColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	err := r.store.withTransaction(ctx, func(tx *sql.Tx) error {
		for _, entry := range entries {
			args, err := entryArgs(entry)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				if strings.Contains(err.Error(), "UNIQUE constraint failed") {
					return persistence.ErrDuplicate
				}
				return fmt.Errorf("sqlite: create entry %s: %w", entry.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// GetEntry returns one entry by id.
func (r *ScheduleRepository) GetEntry(ctx context.Context, id string) (persistence.ScheduleEntry, error) {
	row := r.store.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM schedule_entries WHERE id = ?`, id)
	entry, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return persistence.ScheduleEntry{}, persistence.ErrNotFound
	}
	return entry, err
}

// UpdateEntry overwrites one entry. With a nil ExpectedPatch the update is
// last-write-wins; otherwise the stored patch must match or the update fails
// with ErrVersionConflict. Every successful update increments patch.
func (r *ScheduleRepository) UpdateEntry(ctx context.Context, entry persistence.ScheduleEntry, opts persistence.UpdateOptions) (persistence.ScheduleEntry, error) {
	query := `
		UPDATE schedule_entries SET
			author_id = ?, entry_type = ?, title = ?, description = ?,
			start_time = ?, end_time = ?, repeat = ?, repeat_frequency = ?,
			repeat_end_date = ?, repeat_series = ?, rsvp_options = ?, members = ?,
			attendees = ?, fleets = ?, channel = ?, active = ?,
			patch = patch + 1, updated_at = ?
		WHERE id = ?
	`
	args, err := entryArgs(entry)
	if err != nil {
		return persistence.ScheduleEntry{}, err
	}
	// entryArgs yields the insert ordering; rearrange for the update statement:
	// drop id/patch/created_at from the set list and append the where id.
	update := []any{
		args[1], args[2], args[3], args[4], // author, type, title, description
		args[5], args[6], args[7], args[8], // start, end, repeat, frequency
		args[9], args[10], args[11], args[12], // end date, series, options, members
		args[13], args[14], args[15], args[16], // attendees, fleets, channel, active
		args[19], // updated_at
		entry.ID, // where
	}
	if opts.ExpectedPatch != nil {
		query = strings.Replace(query, "WHERE id = ?", "WHERE id = ? AND patch = ?", 1)
		update = append(update, *opts.ExpectedPatch)
	}

	result, err := r.store.db.ExecContext(ctx, query, update...)
	if err != nil {
		return persistence.ScheduleEntry{}, fmt.Errorf("sqlite: update entry %s: %w", entry.ID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.ScheduleEntry{}, fmt.Errorf("sqlite: update entry %s: %w", entry.ID, err)
	}
	if affected == 0 {
		// Distinguish a missing row from a stale patch.
		if _, err := r.GetEntry(ctx, entry.ID); err != nil {
			return persistence.ScheduleEntry{}, err
		}
		return persistence.ScheduleEntry{}, persistence.ErrVersionConflict
	}

	return r.GetEntry(ctx, entry.ID)
}

// DeleteEntry removes one entry by id.
func (r *ScheduleRepository) DeleteEntry(ctx context.Context, id string) error {
	result, err := r.store.db.ExecContext(ctx, `DELETE FROM schedule_entries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: delete entry: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: delete entry: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// ListEntriesBySeries returns every entry sharing the series id, ordered by
// start then id.
func (r *ScheduleRepository) ListEntriesBySeries(ctx context.Context, series int64) ([]persistence.ScheduleEntry, error) {
	const query = `
		SELECT ` + entryColumns + `
		FROM schedule_entries
		WHERE repeat_series = ?
		ORDER BY start_time, id
	`
	rows, err := r.store.db.QueryContext(ctx, query, series)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list series %d: %w", series, err)
	}
	defer rows.Close()

	entries := make([]persistence.ScheduleEntry, 0)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// DeleteEntriesBySeries removes every entry sharing the series id.
func (r *ScheduleRepository) DeleteEntriesBySeries(ctx context.Context, series int64) error {
	if _, err := r.store.db.ExecContext(ctx, `DELETE FROM schedule_entries WHERE repeat_series = ?`, series); err != nil {
		return fmt.Errorf("sqlite: delete series %d: %w", series, err)
	}
	return nil
}

// ListEntriesWithinWeek returns entries starting inside the window, ordered by
// start then id.
func (r *ScheduleRepository) ListEntriesWithinWeek(ctx context.Context, weekStart, weekEnd time.Time) ([]persistence.ScheduleEntry, error) {
	const query = `
		SELECT ` + entryColumns + `
		FROM schedule_entries
		WHERE start_time >= ? AND start_time < ?
		ORDER BY start_time, id
	`
	rows, err := r.store.db.QueryContext(ctx, query, formatTime(weekStart), formatTime(weekEnd))
	if err != nil {
		return nil, fmt.Errorf("sqlite: list entries: %w", err)
	}
	defer rows.Close()

	entries := make([]persistence.ScheduleEntry, 0)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func entryArgs(entry persistence.ScheduleEntry) ([]any, error) {
	options, err := marshalJSON(entry.RSVPOptions)
	if err != nil {
		return nil, err
	}
	members, err := marshalJSON(entry.Members)
	if err != nil {
		return nil, err
	}
	attendees, err := marshalJSON(entry.Attendees)
	if err != nil {
		return nil, err
	}
	fleets, err := marshalJSON(entry.FleetIDs)
	if err != nil {
		return nil, err
	}

	var endDate sql.NullString
	if entry.RepeatEndDate != nil {
		endDate = sql.NullString{String: formatTime(*entry.RepeatEndDate), Valid: true}
	}

	return []any{
		entry.ID,
		entry.AuthorID,
		entry.Type,
		entry.Title,
		entry.Description,
		formatTime(entry.Start),
		formatTime(entry.End),
		boolToInt(entry.Repeat),
		entry.RepeatFrequency,
		endDate,
		entry.RepeatSeries,
		options,
		members,
		attendees,
		fleets,
		entry.Channel,
		boolToInt(entry.Active),
		entry.Patch,
		formatTime(entry.CreatedAt),
		formatTime(entry.UpdatedAt),
	}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (persistence.ScheduleEntry, error) {
	var (
		entry     persistence.ScheduleEntry
		start     string
		end       string
		repeat    int
		endDate   sql.NullString
		options   string
		members   string
		attendees string
		fleets    string
		active    int
		createdAt string
		updatedAt string
	)

	err := row.Scan(
		&entry.ID,
		&entry.AuthorID,
		&entry.Type,
		&entry.Title,
		&entry.Description,
		&start,
		&end,
		&repeat,
		&entry.RepeatFrequency,
		&endDate,
		&entry.RepeatSeries,
		&options,
		&members,
		&attendees,
		&fleets,
		&entry.Channel,
		&active,
		&entry.Patch,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return persistence.ScheduleEntry{}, err
	}

	if entry.Start, err = parseTime(start); err != nil {
		return persistence.ScheduleEntry{}, err
	}
	if entry.End, err = parseTime(end); err != nil {
		return persistence.ScheduleEntry{}, err
	}
	if entry.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.ScheduleEntry{}, err
	}
	if entry.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.ScheduleEntry{}, err
	}
	if endDate.Valid {
		parsed, err := parseTime(endDate.String)
		if err != nil {
			return persistence.ScheduleEntry{}, err
		}
		entry.RepeatEndDate = &parsed
	}

	entry.Repeat = repeat != 0
	entry.Active = active != 0

	if err := unmarshalJSON(options, &entry.RSVPOptions); err != nil {
		return persistence.ScheduleEntry{}, err
	}
	if err := unmarshalJSON(members, &entry.Members); err != nil {
		return persistence.ScheduleEntry{}, err
	}
	if err := unmarshalJSON(attendees, &entry.Attendees); err != nil {
		return persistence.ScheduleEntry{}, err
	}
	if err := unmarshalJSON(fleets, &entry.FleetIDs); err != nil {
		return persistence.ScheduleEntry{}, err
	}

	return entry, nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
