// Package postgres implements the persistence contracts on PostgreSQL via sqlx.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS availability_records (
	id        TEXT PRIMARY KEY,
	user_id   TEXT NOT NULL,
	username  TEXT NOT NULL,
	nickname  TEXT NOT NULL,
	ts        TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_availability_ts ON availability_records (ts);
CREATE INDEX IF NOT EXISTS idx_availability_user ON availability_records (user_id);

CREATE TABLE IF NOT EXISTS schedule_entries (
	id               TEXT PRIMARY KEY,
	author_id        TEXT NOT NULL,
	entry_type       TEXT NOT NULL,
	title            TEXT NOT NULL,
	description      TEXT NOT NULL DEFAULT '',
	start_time       TIMESTAMPTZ NOT NULL,
	end_time         TIMESTAMPTZ NOT NULL,
	repeat           BOOLEAN NOT NULL DEFAULT FALSE,
	repeat_frequency TEXT NOT NULL DEFAULT '',
	repeat_end_date  TIMESTAMPTZ,
	repeat_series    BIGINT NOT NULL DEFAULT 0,
	rsvp_options     JSONB NOT NULL DEFAULT '[]',
	members          JSONB NOT NULL DEFAULT '[]',
	attendees        JSONB NOT NULL DEFAULT '[]',
	fleets           JSONB NOT NULL DEFAULT '[]',
	channel          TEXT NOT NULL DEFAULT '',
	active           BOOLEAN NOT NULL DEFAULT TRUE,
	patch            BIGINT NOT NULL DEFAULT 0,
	created_at       TIMESTAMPTZ NOT NULL,
	updated_at       TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_entries_series ON schedule_entries (repeat_series);
CREATE INDEX IF NOT EXISTS idx_entries_start ON schedule_entries (start_time);
`

// Store wraps the Postgres connection shared by the repositories.
type Store struct {
	db *sqlx.DB
}

// Open connects to the PostgreSQL database described by dsn.
func Open(dsn string) (*Store, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// EnsureSchema applies the fixed schema. Idempotent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("postgres: ensure schema: %w", err)
	}
	return nil
}

// DB exposes the raw handle for the repositories.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

func marshalJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("postgres: encode column: %w", err)
	}
	return raw, nil
}

func unmarshalJSON(raw []byte, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("postgres: decode column: %w", err)
	}
	return nil
}
