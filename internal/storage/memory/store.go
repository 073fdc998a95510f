// Package memory provides an in-process implementation of the call store
// contract with the same conditional-operation semantics as the durable
// backends. It backs tests and single-node development runs.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hallpass-io/hallpass/internal/domain/call"
)

// Store is a mutex-guarded map store. All conditional checks happen under
// the lock, so its operations are atomic with respect to each other.
type Store struct {
	mu      sync.Mutex
	records map[string]*call.Record
	floors  map[string]int64
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		records: make(map[string]*call.Record),
		floors:  make(map[string]int64),
	}
}

// PutIfAbsent inserts rec only if no record exists for its call ID and its
// generation is above the highest generation ever stored for that ID.
func (s *Store) PutIfAbsent(_ context.Context, rec *call.Record) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[rec.CallID]; exists {
		return false, nil
	}
	if rec.Generation <= s.floors[rec.CallID] {
		return false, nil
	}

	stored := *rec
	s.records[rec.CallID] = &stored
	s.floors[rec.CallID] = rec.Generation
	return true, nil
}

// Get returns a copy of the current record or call.ErrNotFound.
func (s *Store) Get(_ context.Context, callID string) (*call.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists := s.records[callID]
	if !exists {
		return nil, call.ErrNotFound
	}
	out := *rec
	return &out, nil
}

// DeleteIfGeneration removes the record only if its generation still
// matches.
func (s *Store) DeleteIfGeneration(_ context.Context, callID string, generation int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists := s.records[callID]
	if !exists || rec.Generation != generation {
		return false, nil
	}
	delete(s.records, callID)
	return true, nil
}

// Touch refreshes activity and adjusts the participant estimate. A missing
// record is not an error.
func (s *Store) Touch(_ context.Context, callID string, at time.Time, participantDelta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists := s.records[callID]
	if !exists {
		return nil
	}
	rec.LastActiveAt = at
	rec.Participants += participantDelta
	if rec.Participants < 0 {
		rec.Participants = 0
	}
	return nil
}

// ListInactiveBefore returns up to limit records whose last activity
// predates the cutoff, oldest first.
func (s *Store) ListInactiveBefore(_ context.Context, cutoff time.Time, limit int) ([]call.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []call.Record
	for _, rec := range s.records {
		if rec.LastActiveAt.Before(cutoff) {
			out = append(out, *rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastActiveAt.Before(out[j].LastActiveAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// LastGeneration returns the highest generation ever stored for the call
// ID, or zero.
func (s *Store) LastGeneration(_ context.Context, callID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.floors[callID], nil
}
