// Package sqlite implements the call store contract on SQLite. SQLite's
// single-statement atomicity carries the conditional insert and delete the
// registry depends on; the generation floor table is maintained in the same
// transaction as each insert.
package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps a SQLite database connection.
type DB struct {
	*sql.DB
}

// New opens a SQLite database at the given path (":memory:" for tests).
func New(dataSourceName string) (*DB, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Serialized writes; the conditional statements rely on it.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return &DB{db}, nil
}

// Migrate creates the schema if it does not exist yet.
func (db *DB) Migrate() error {
	schema := `
CREATE TABLE IF NOT EXISTS calls (
    call_id TEXT PRIMARY KEY,
    backend_id TEXT NOT NULL,
    backend_address TEXT NOT NULL,
    generation INTEGER NOT NULL,
    created_at TIMESTAMP NOT NULL,
    last_active_at TIMESTAMP NOT NULL,
    participants INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_calls_last_active ON calls(last_active_at);

-- Highest generation ever issued per call ID. Survives record removal so
-- recreated calls never reuse a generation.
CREATE TABLE IF NOT EXISTS call_generations (
    call_id TEXT PRIMARY KEY,
    last_generation INTEGER NOT NULL
);
`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
