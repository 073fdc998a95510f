package control_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hallpass-io/hallpass/internal/domain/auth"
	"github.com/hallpass-io/hallpass/internal/domain/backend"
	"github.com/hallpass-io/hallpass/internal/domain/call"
	"github.com/hallpass-io/hallpass/internal/domain/control"
	"github.com/hallpass-io/hallpass/internal/storage/memory"
)

type fixture struct {
	svc      *control.Service
	registry *call.Registry
	dir      *backend.Directory
	engine   *auth.Engine
	now      *time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	f := &fixture{now: &now}

	clock := func() time.Time { return *f.now }
	f.registry = call.NewRegistry(memory.NewStore(),
		call.RetryPolicy{Attempts: 3, BaseBackoff: time.Millisecond},
		nil, nil, call.WithClock(clock))
	f.dir = backend.NewDirectory(30*time.Second, nil, nil, backend.WithDirectoryClock(clock))

	engine, err := auth.NewEngine([]byte("0123456789abcdef0123456789abcdef"),
		auth.WithEngineClock(clock))
	require.NoError(t, err)
	f.engine = engine

	f.svc = control.NewService(f.registry, f.dir, engine, time.Hour, nil, nil)
	return f
}

func (f *fixture) heartbeat(t *testing.T, id string, capacity int, status backend.Status) {
	t.Helper()
	require.NoError(t, f.svc.IngestHeartbeat(backend.Heartbeat{
		BackendID:     id,
		Address:       id + ":443",
		CapacityScore: capacity,
		Status:        status,
	}))
}

func TestJoinOrCreateCall_CreatesAndMints(t *testing.T) {
	f := newFixture(t)
	f.heartbeat(t, "relay-a", 0, backend.StatusActive)
	f.heartbeat(t, "relay-b", 5, backend.StatusActive)

	result, err := f.svc.JoinOrCreateCall(context.Background(), control.JoinRequest{
		CallID:      "room-42",
		UserID:      "user-1",
		Permissions: auth.PermJoin,
	})
	require.NoError(t, err)
	require.Equal(t, "relay-a:443", result.BackendAddress)
	require.Equal(t, int64(1), result.Generation)
	require.NoError(t, f.engine.Verify(result.Credential, 1))

	rec, err := f.svc.GetCall(context.Background(), "room-42")
	require.NoError(t, err)
	require.Equal(t, int64(1), rec.Participants)
}

func TestJoinOrCreateCall_IdempotentWhileGenerationLives(t *testing.T) {
	f := newFixture(t)
	f.heartbeat(t, "relay-a", 0, backend.StatusActive)

	first, err := f.svc.JoinOrCreateCall(context.Background(), control.JoinRequest{
		CallID: "room-42", UserID: "user-1", Permissions: auth.PermJoin,
	})
	require.NoError(t, err)

	// Capacity shifting later must not move an existing call.
	f.heartbeat(t, "relay-z", -10, backend.StatusActive)

	second, err := f.svc.JoinOrCreateCall(context.Background(), control.JoinRequest{
		CallID: "room-42", UserID: "user-2", Permissions: auth.PermJoin,
	})
	require.NoError(t, err)
	require.Equal(t, first.BackendAddress, second.BackendAddress)
	require.Equal(t, first.Generation, second.Generation)
}

func TestJoinOrCreateCall_WithCredential(t *testing.T) {
	f := newFixture(t)
	f.heartbeat(t, "relay-a", 0, backend.StatusActive)

	created, err := f.svc.JoinOrCreateCall(context.Background(), control.JoinRequest{
		CallID: "room-42", UserID: "user-1", Permissions: auth.PermJoin,
	})
	require.NoError(t, err)

	rejoined, err := f.svc.JoinOrCreateCall(context.Background(), control.JoinRequest{
		CallID: "room-42",
		UserID: "user-1",
		Token:  created.Credential.Token(),
	})
	require.NoError(t, err)
	require.Equal(t, created.BackendAddress, rejoined.BackendAddress)
	require.Equal(t, created.Generation, rejoined.Generation)
}

func TestJoinOrCreateCall_StaleCredentialAfterRecreation(t *testing.T) {
	f := newFixture(t)
	f.heartbeat(t, "relay-a", 0, backend.StatusActive)

	created, err := f.svc.JoinOrCreateCall(context.Background(), control.JoinRequest{
		CallID: "room-42", UserID: "user-1", Permissions: auth.PermJoin,
	})
	require.NoError(t, err)

	removed, err := f.registry.Remove(context.Background(), "room-42", created.Generation)
	require.NoError(t, err)
	require.True(t, removed)

	recreated, err := f.svc.JoinOrCreateCall(context.Background(), control.JoinRequest{
		CallID: "room-42", UserID: "user-2", Permissions: auth.PermJoin,
	})
	require.NoError(t, err)
	require.Equal(t, int64(2), recreated.Generation)

	// The generation-1 credential is void the instant generation 2 exists.
	_, err = f.svc.JoinOrCreateCall(context.Background(), control.JoinRequest{
		CallID: "room-42",
		UserID: "user-1",
		Token:  created.Credential.Token(),
	})
	require.ErrorIs(t, err, auth.ErrGenerationMismatch)
}

func TestJoinOrCreateCall_CredentialForRemovedCall(t *testing.T) {
	f := newFixture(t)
	f.heartbeat(t, "relay-a", 0, backend.StatusActive)

	created, err := f.svc.JoinOrCreateCall(context.Background(), control.JoinRequest{
		CallID: "room-42", UserID: "user-1", Permissions: auth.PermJoin,
	})
	require.NoError(t, err)

	removed, err := f.registry.Remove(context.Background(), "room-42", created.Generation)
	require.NoError(t, err)
	require.True(t, removed)

	_, err = f.svc.JoinOrCreateCall(context.Background(), control.JoinRequest{
		CallID: "room-42",
		UserID: "user-1",
		Token:  created.Credential.Token(),
	})
	require.ErrorIs(t, err, call.ErrNotFound)
}

func TestJoinOrCreateCall_CredentialBoundToRequester(t *testing.T) {
	f := newFixture(t)
	f.heartbeat(t, "relay-a", 0, backend.StatusActive)

	created, err := f.svc.JoinOrCreateCall(context.Background(), control.JoinRequest{
		CallID: "room-42", UserID: "user-1", Permissions: auth.PermJoin,
	})
	require.NoError(t, err)

	_, err = f.svc.JoinOrCreateCall(context.Background(), control.JoinRequest{
		CallID: "room-42",
		UserID: "user-9",
		Token:  created.Credential.Token(),
	})
	require.ErrorIs(t, err, auth.ErrSignatureMismatch)
}

func TestJoinOrCreateCall_NoCapacity(t *testing.T) {
	f := newFixture(t)
	f.heartbeat(t, "relay-a", 0, backend.StatusDraining)

	_, err := f.svc.JoinOrCreateCall(context.Background(), control.JoinRequest{
		CallID: "room-42", UserID: "user-1", Permissions: auth.PermJoin,
	})
	require.ErrorIs(t, err, backend.ErrNoCapacity)
}

func TestJoinOrCreateCall_ExistingCallSurvivesNoCapacity(t *testing.T) {
	f := newFixture(t)
	f.heartbeat(t, "relay-a", 0, backend.StatusActive)

	created, err := f.svc.JoinOrCreateCall(context.Background(), control.JoinRequest{
		CallID: "room-42", UserID: "user-1", Permissions: auth.PermJoin,
	})
	require.NoError(t, err)

	// Fleet drains; joining the existing call needs no selection.
	f.heartbeat(t, "relay-a", 0, backend.StatusDraining)

	joined, err := f.svc.JoinOrCreateCall(context.Background(), control.JoinRequest{
		CallID: "room-42", UserID: "user-2", Permissions: auth.PermJoin,
	})
	require.NoError(t, err)
	require.Equal(t, created.BackendAddress, joined.BackendAddress)
}

func TestJoinOrCreateCall_Validation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.JoinOrCreateCall(context.Background(), control.JoinRequest{
		CallID: "room 42", UserID: "user-1",
	})
	require.ErrorIs(t, err, control.ErrInvalidCallID)

	_, err = f.svc.JoinOrCreateCall(context.Background(), control.JoinRequest{
		CallID: "room-42", UserID: "user/1",
	})
	require.ErrorIs(t, err, control.ErrInvalidUserID)

	_, err = f.svc.GetCall(context.Background(), "")
	require.ErrorIs(t, err, control.ErrInvalidCallID)
}

func TestGetCall_NotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.GetCall(context.Background(), "room-42")
	require.ErrorIs(t, err, call.ErrNotFound)
}
