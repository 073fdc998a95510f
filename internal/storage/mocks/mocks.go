// Package mocks provides testify mocks for the storage contract.
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/hallpass-io/hallpass/internal/domain/call"
)

// CallStore is a mock for call.Store.
type CallStore struct {
	mock.Mock
}

func (m *CallStore) PutIfAbsent(ctx context.Context, rec *call.Record) (bool, error) {
	args := m.Called(ctx, rec)
	return args.Bool(0), args.Error(1)
}

func (m *CallStore) Get(ctx context.Context, callID string) (*call.Record, error) {
	args := m.Called(ctx, callID)
	if rec, ok := args.Get(0).(*call.Record); ok {
		return rec, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *CallStore) DeleteIfGeneration(ctx context.Context, callID string, generation int64) (bool, error) {
	args := m.Called(ctx, callID, generation)
	return args.Bool(0), args.Error(1)
}

func (m *CallStore) Touch(ctx context.Context, callID string, at time.Time, participantDelta int64) error {
	args := m.Called(ctx, callID, at, participantDelta)
	return args.Error(0)
}

func (m *CallStore) ListInactiveBefore(ctx context.Context, cutoff time.Time, limit int) ([]call.Record, error) {
	args := m.Called(ctx, cutoff, limit)
	if recs, ok := args.Get(0).([]call.Record); ok {
		return recs, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *CallStore) LastGeneration(ctx context.Context, callID string) (int64, error) {
	args := m.Called(ctx, callID)
	return args.Get(0).(int64), args.Error(1)
}
