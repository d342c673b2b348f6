package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/example/opsboard/internal/persistence"
)

// ScheduleRepository implements persistence.ScheduleRepository on PostgreSQL.
type ScheduleRepository struct {
	store *Store
}

// NewScheduleRepository builds a repository over the shared store.
func NewScheduleRepository(store *Store) *ScheduleRepository {
	return &ScheduleRepository{store: store}
}

type entryRow struct {
	ID              string       `db:"id"`
	AuthorID        string       `db:"author_id"`
	Type            string       `db:"entry_type"`
	Title           string       `db:"title"`
	Description     string       `db:"description"`
	Start           time.Time    `db:"start_time"`
	End             time.Time    `db:"end_time"`
	Repeat          bool         `db:"repeat"`
	RepeatFrequency string       `db:"repeat_frequency"`
	RepeatEndDate   sql.NullTime `db:"repeat_end_date"`
	RepeatSeries    int64        `db:"repeat_series"`
	RSVPOptions     []byte       `db:"rsvp_options"`
	Members         []byte       `db:"members"`
	Attendees       []byte       `db:"attendees"`
	Fleets          []byte       `db:"fleets"`
	Channel         string       `db:"channel"`
	Active          bool         `db:"active"`
	Patch           int64        `db:"patch"`
	CreatedAt       time.Time    `db:"created_at"`
	UpdatedAt       time.Time    `db:"updated_at"`
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
		VALUES (:id, :author_id, :entry_type, :title, :description, :start_time, :end_time,
			:repeat, :repeat_frequency, :repeat_end_date, :repeat_series,
			:rsvp_options, :members, :attendees, :fleets, :channel, :active, :patch,
			:created_at, :updated_at)
	`

	tx, err := r.store.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("postgres: begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, entry := range entries {
		row, err := toEntryRow(entry)
		if err != nil {
			return nil, err
		}
		if _, err := tx.NamedExecContext(ctx, query, row); err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
				return nil, persistence.ErrDuplicate
			}
			return nil, fmt.Errorf("postgres: create entry %s: %w", entry.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("postgres: commit entries: %w", err)
	}
	return entries, nil
}

// GetEntry returns one entry by id.
func (r *ScheduleRepository) GetEntry(ctx context.Context, id string) (persistence.ScheduleEntry, error) {
	var row entryRow
	err := r.store.db.GetContext(ctx, &row, `SELECT `+entryColumns+` FROM schedule_entries WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return persistence.ScheduleEntry{}, persistence.ErrNotFound
	}
	if err != nil {
		return persistence.ScheduleEntry{}, fmt.Errorf("postgres: get entry %s: %w", id, err)
	}
	return fromEntryRow(row)
}

// UpdateEntry overwrites one entry. With a nil ExpectedPatch the update is
// last-write-wins; otherwise the stored patch must match or the update fails
// with ErrVersionConflict. Every successful update increments patch.
func (r *ScheduleRepository) UpdateEntry(ctx context.Context, entry persistence.ScheduleEntry, opts persistence.UpdateOptions) (persistence.ScheduleEntry, error) {
	query := `
		UPDATE schedule_entries SET
			author_id = $2, entry_type = $3, title = $4, description = $5,
			start_time = $6, end_time = $7, repeat = $8, repeat_frequency = $9,
			repeat_end_date = $10, repeat_series = $11, rsvp_options = $12, members = $13,
			attendees = $14, fleets = $15, channel = $16, active = $17,
			patch = patch + 1, updated_at = $18
		WHERE id = $1
	`
	row, err := toEntryRow(entry)
	if err != nil {
		return persistence.ScheduleEntry{}, err
	}
	args := []any{
		row.ID,
		row.AuthorID, row.Type, row.Title, row.Description,
		row.Start, row.End, row.Repeat, row.RepeatFrequency,
		row.RepeatEndDate, row.RepeatSeries, row.RSVPOptions, row.Members,
		row.Attendees, row.Fleets, row.Channel, row.Active,
		row.UpdatedAt,
	}
	if opts.ExpectedPatch != nil {
		query += ` AND patch = $19`
		args = append(args, *opts.ExpectedPatch)
	}

	result, err := r.store.db.ExecContext(ctx, query, args...)
	if err != nil {
		return persistence.ScheduleEntry{}, fmt.Errorf("postgres: update entry %s: %w", entry.ID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.ScheduleEntry{}, fmt.Errorf("postgres: update entry %s: %w", entry.ID, err)
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
	result, err := r.store.db.ExecContext(ctx, `DELETE FROM schedule_entries WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: delete entry: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("postgres: delete entry: %w", err)
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
		WHERE repeat_series = $1
		ORDER BY start_time, id
	`
	var rows []entryRow
	if err := r.store.db.SelectContext(ctx, &rows, query, series); err != nil {
		return nil, fmt.Errorf("postgres: list series %d: %w", series, err)
	}

	entries := make([]persistence.ScheduleEntry, 0, len(rows))
	for _, row := range rows {
		entry, err := fromEntryRow(row)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// DeleteEntriesBySeries removes every entry sharing the series id.
func (r *ScheduleRepository) DeleteEntriesBySeries(ctx context.Context, series int64) error {
	if _, err := r.store.db.ExecContext(ctx, `DELETE FROM schedule_entries WHERE repeat_series = $1`, series); err != nil {
		return fmt.Errorf("postgres: delete series %d: %w", series, err)
	}
	return nil
}

// ListEntriesWithinWeek returns entries starting inside the window, ordered by
// start then id.
func (r *ScheduleRepository) ListEntriesWithinWeek(ctx context.Context, weekStart, weekEnd time.Time) ([]persistence.ScheduleEntry, error) {
	const query = `
		SELECT ` + entryColumns + `
		FROM schedule_entries
		WHERE start_time >= $1 AND start_time < $2
		ORDER BY start_time, id
	`
	var rows []entryRow
	if err := r.store.db.SelectContext(ctx, &rows, query, weekStart, weekEnd); err != nil {
		return nil, fmt.Errorf("postgres: list entries: %w", err)
	}

	entries := make([]persistence.ScheduleEntry, 0, len(rows))
	for _, row := range rows {
		entry, err := fromEntryRow(row)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func toEntryRow(entry persistence.ScheduleEntry) (entryRow, error) {
	options, err := marshalJSON(entry.RSVPOptions)
	if err != nil {
		return entryRow{}, err
	}
	members, err := marshalJSON(entry.Members)
	if err != nil {
		return entryRow{}, err
	}
	attendees, err := marshalJSON(entry.Attendees)
	if err != nil {
		return entryRow{}, err
	}
	fleets, err := marshalJSON(entry.FleetIDs)
	if err != nil {
		return entryRow{}, err
	}

	var endDate sql.NullTime
	if entry.RepeatEndDate != nil {
		endDate = sql.NullTime{Time: *entry.RepeatEndDate, Valid: true}
	}

	return entryRow{
		ID:              entry.ID,
		AuthorID:        entry.AuthorID,
		Type:            entry.Type,
		Title:           entry.Title,
		Description:     entry.Description,
		Start:           entry.Start,
		End:             entry.End,
		Repeat:          entry.Repeat,
		RepeatFrequency: entry.RepeatFrequency,
		RepeatEndDate:   endDate,
		RepeatSeries:    entry.RepeatSeries,
		RSVPOptions:     options,
		Members:         members,
		Attendees:       attendees,
		Fleets:          fleets,
		Channel:         entry.Channel,
		Active:          entry.Active,
		Patch:           entry.Patch,
		CreatedAt:       entry.CreatedAt,
		UpdatedAt:       entry.UpdatedAt,
	}, nil
}

func fromEntryRow(row entryRow) (persistence.ScheduleEntry, error) {
	entry := persistence.ScheduleEntry{
		ID:              row.ID,
		AuthorID:        row.AuthorID,
		Type:            row.Type,
		Title:           row.Title,
		Description:     row.Description,
		Start:           row.Start,
		End:             row.End,
		Repeat:          row.Repeat,
		RepeatFrequency: row.RepeatFrequency,
		RepeatSeries:    row.RepeatSeries,
		Channel:         row.Channel,
		Active:          row.Active,
		Patch:           row.Patch,
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
	}
	if row.RepeatEndDate.Valid {
		endDate := row.RepeatEndDate.Time
		entry.RepeatEndDate = &endDate
	}
	if err := unmarshalJSON(row.RSVPOptions, &entry.RSVPOptions); err != nil {
		return persistence.ScheduleEntry{}, err
	}
	if err := unmarshalJSON(row.Members, &entry.Members); err != nil {
		return persistence.ScheduleEntry{}, err
	}
	if err := unmarshalJSON(row.Attendees, &entry.Attendees); err != nil {
		return persistence.ScheduleEntry{}, err
	}
	if err := unmarshalJSON(row.Fleets, &entry.FleetIDs); err != nil {
		return persistence.ScheduleEntry{}, err
	}
	return entry, nil
}
