package call

import (
	"context"
	"time"
)

// Store is the capability set the registry needs from a strongly-consistent
// store. Registry correctness rests entirely on PutIfAbsent, Get, and
// DeleteIfGeneration being atomic; the remaining operations are best-effort
// reads and maintenance.
type Store interface {
	// PutIfAbsent inserts rec only if no record exists for rec.CallID and
	// rec.Generation is above the highest generation ever stored for that
	// ID. Returns false without error when the condition fails.
	PutIfAbsent(ctx context.Context, rec *Record) (bool, error)

	// Get returns the current record or ErrNotFound.
	Get(ctx context.Context, callID string) (*Record, error)

	// DeleteIfGeneration removes the record only if its generation still
	// equals the expected value. Returns false when the record is absent
	// or was already superseded.
	DeleteIfGeneration(ctx context.Context, callID string, generation int64) (bool, error)

	// Touch extends the record's activity timestamp and adjusts the
	// participant estimate. Missing records are not an error.
	Touch(ctx context.Context, callID string, at time.Time, participantDelta int64) error

	// ListInactiveBefore returns up to limit records whose last activity
	// predates the cutoff.
	ListInactiveBefore(ctx context.Context, cutoff time.Time, limit int) ([]Record, error)

	// LastGeneration returns the highest generation ever stored for the
	// call ID, or zero if the ID has never been used.
	LastGeneration(ctx context.Context, callID string) (int64, error)
}
