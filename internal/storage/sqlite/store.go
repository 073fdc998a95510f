package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hallpass-io/hallpass/internal/domain/call"
)

// Store implements call.Store on SQLite.
type Store struct {
	db *DB
}

// NewStore creates a call store over the given database.
func NewStore(db *DB) *Store {
	return &Store{db: db}
}

// PutIfAbsent atomically inserts rec when no record exists for its call ID
// and its generation is above the recorded floor. The floor is advanced in
// the same transaction so a crash between the two writes cannot observe a
// record without its floor.
func (s *Store) PutIfAbsent(ctx context.Context, rec *call.Record) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO calls (call_id, backend_id, backend_address, generation, created_at, last_active_at, participants)
		SELECT ?1, ?2, ?3, ?4, ?5, ?6, ?7
		WHERE NOT EXISTS (SELECT 1 FROM calls WHERE call_id = ?1)
		  AND ?4 > COALESCE((SELECT last_generation FROM call_generations WHERE call_id = ?1), 0)
	`,
		rec.CallID,
		rec.BackendID,
		rec.BackendAddress,
		rec.Generation,
		rec.CreatedAt,
		rec.LastActiveAt,
		rec.Participants,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert call: %w", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read insert result: %w", err)
	}
	if inserted == 0 {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO call_generations (call_id, last_generation) VALUES (?, ?)
		ON CONFLICT(call_id) DO UPDATE SET last_generation = excluded.last_generation
	`, rec.CallID, rec.Generation); err != nil {
		return false, fmt.Errorf("failed to advance generation floor: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit call insert: %w", err)
	}
	return true, nil
}

// Get returns the current record or call.ErrNotFound.
func (s *Store) Get(ctx context.Context, callID string) (*call.Record, error) {
	var rec call.Record
	err := s.db.QueryRowContext(ctx, `
		SELECT call_id, backend_id, backend_address, generation, created_at, last_active_at, participants
		FROM calls
		WHERE call_id = ?
	`, callID).Scan(
		&rec.CallID,
		&rec.BackendID,
		&rec.BackendAddress,
		&rec.Generation,
		&rec.CreatedAt,
		&rec.LastActiveAt,
		&rec.Participants,
	)
	if err == sql.ErrNoRows {
		return nil, call.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get call: %w", err)
	}
	return &rec, nil
}

// DeleteIfGeneration removes the record only when its stored generation
// still equals the expected value.
func (s *Store) DeleteIfGeneration(ctx context.Context, callID string, generation int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM calls WHERE call_id = ? AND generation = ?
	`, callID, generation)
	if err != nil {
		return false, fmt.Errorf("failed to delete call: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read delete result: %w", err)
	}
	return deleted > 0, nil
}

// Touch refreshes activity and adjusts the participant estimate; a missing
// record is a no-op.
func (s *Store) Touch(ctx context.Context, callID string, at time.Time, participantDelta int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE calls
		SET last_active_at = ?, participants = MAX(0, participants + ?)
		WHERE call_id = ?
	`, at, participantDelta, callID)
	if err != nil {
		return fmt.Errorf("failed to touch call: %w", err)
	}
	return nil
}

// ListInactiveBefore returns up to limit records whose last activity
// predates the cutoff, oldest first.
func (s *Store) ListInactiveBefore(ctx context.Context, cutoff time.Time, limit int) ([]call.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT call_id, backend_id, backend_address, generation, created_at, last_active_at, participants
		FROM calls
		WHERE last_active_at < ?
		ORDER BY last_active_at
		LIMIT ?
	`, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list inactive calls: %w", err)
	}
	defer rows.Close()

	var out []call.Record
	for rows.Next() {
		var rec call.Record
		if err := rows.Scan(
			&rec.CallID,
			&rec.BackendID,
			&rec.BackendAddress,
			&rec.Generation,
			&rec.CreatedAt,
			&rec.LastActiveAt,
			&rec.Participants,
		); err != nil {
			return nil, fmt.Errorf("failed to scan call: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate inactive calls: %w", err)
	}
	return out, nil
}

// LastGeneration returns the highest generation ever stored for the call
// ID, or zero when the ID has never been used.
func (s *Store) LastGeneration(ctx context.Context, callID string) (int64, error) {
	var gen int64
	err := s.db.QueryRowContext(ctx, `
		SELECT last_generation FROM call_generations WHERE call_id = ?
	`, callID).Scan(&gen)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get generation floor: %w", err)
	}
	return gen, nil
}
