package control

import (
	"context"
	"time"

	"github.com/hallpass-io/hallpass/internal/domain/auth"
	"github.com/hallpass-io/hallpass/internal/domain/backend"
	"github.com/hallpass-io/hallpass/internal/domain/call"
)

// CallRegistry provides call record lifecycle operations.
type CallRegistry interface {
	GetOrCreate(ctx context.Context, callID string, candidate call.Candidate) (*call.Record, bool, error)
	Get(ctx context.Context, callID string) (*call.Record, error)
	Touch(ctx context.Context, callID string, joined bool)
}

// BackendDirectory provides the fleet view for selection and heartbeat
// ingestion.
type BackendDirectory interface {
	Ingest(hb backend.Heartbeat) error
	Snapshot() []backend.Info
}

// CredentialEngine mints and verifies generation-bound credentials.
type CredentialEngine interface {
	Derive(callID string, generation int64, userID string, perms auth.Permissions, ttl time.Duration) auth.Credential
	Verify(cred auth.Credential, currentGeneration int64) error
}
