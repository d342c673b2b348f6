// Package sqlite implements the persistence contracts on SQLite via the
// CGO-free modernc driver.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS availability_records (
	id        TEXT PRIMARY KEY,
	user_id   TEXT NOT NULL,
	username  TEXT NOT NULL,
	nickname  TEXT NOT NULL,
	ts        TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_availability_ts ON availability_records (ts);
CREATE INDEX IF NOT EXISTS idx_availability_user ON availability_records (user_id);

CREATE TABLE IF NOT EXISTS schedule_entries (
	id               TEXT PRIMARY KEY,
	author_id        TEXT NOT NULL,
	entry_type       TEXT NOT NULL,
	title            TEXT NOT NULL,
	description      TEXT NOT NULL DEFAULT '',
	start_time       TEXT NOT NULL,
	end_time         TEXT NOT NULL,
	repeat           INTEGER NOT NULL DEFAULT 0,
	repeat_frequency TEXT NOT NULL DEFAULT '',
	repeat_end_date  TEXT,
	repeat_series    INTEGER NOT NULL DEFAULT 0,
	rsvp_options     TEXT NOT NULL DEFAULT '[]',
	members          TEXT NOT NULL DEFAULT '[]',
	attendees        TEXT NOT NULL DEFAULT '[]',
	fleets           TEXT NOT NULL DEFAULT '[]',
	channel          TEXT NOT NULL DEFAULT '',
	active           INTEGER NOT NULL DEFAULT 1,
	patch            INTEGER NOT NULL DEFAULT 0,
	created_at       TEXT NOT NULL,
	updated_at       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_entries_series ON schedule_entries (repeat_series);
CREATE INDEX IF NOT EXISTS idx_entries_start ON schedule_entries (start_time);
`

// Store wraps the SQLite connection shared by the repositories.
type Store struct {
	db *sql.DB
}

// Open connects to the SQLite database at dsn.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	// SQLite handles one writer at a time; a single connection avoids
	// SQLITE_BUSY churn under the concurrent selection batches.
	db.SetMaxOpenConns(1)
	return &Store{db: db}, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// EnsureSchema applies the fixed schema. Idempotent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("sqlite: ensure schema: %w", err)
	}
	return nil
}

// DB exposes the raw handle for the repositories.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) withTransaction(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}
	return nil
}

// Timestamps are stored as RFC 3339 strings normalized to UTC so that string
// comparison orders them correctly in range queries.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("sqlite: parse timestamp %q: %w", value, err)
	}
	return t, nil
}

func marshalJSON(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("sqlite: encode column: %w", err)
	}
	return string(raw), nil
}

func unmarshalJSON(raw string, v any) error {
	if raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("sqlite: decode column: %w", err)
	}
	return nil
}
