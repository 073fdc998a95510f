package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hallpass-io/hallpass/internal/domain/auth"
	"github.com/hallpass-io/hallpass/internal/domain/backend"
	"github.com/hallpass-io/hallpass/internal/domain/call"
	"github.com/hallpass-io/hallpass/internal/metrics"
)

// Service is the control orchestrator: it composes the registry, directory,
// and credential engine to answer join/create, lookup, and heartbeat
// requests. It holds no per-call state of its own; cross-request races are
// resolved by the registry's conditional store operations.
type Service struct {
	registry  CallRegistry
	directory BackendDirectory
	engine    CredentialEngine
	ttl       time.Duration
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// NewService creates a control service minting credentials valid for ttl.
func NewService(
	registry CallRegistry,
	directory BackendDirectory,
	engine CredentialEngine,
	ttl time.Duration,
	logger *slog.Logger,
	m *metrics.Metrics,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		registry:  registry,
		directory: directory,
		engine:    engine,
		ttl:       ttl,
		logger:    logger,
		metrics:   m,
	}
}

// JoinRequest describes a join-or-create request.
type JoinRequest struct {
	CallID      string
	UserID      string
	Permissions auth.Permissions
	// Token optionally carries a previously issued credential. When set,
	// the request is verified against the call's current generation
	// instead of minting a fresh credential.
	Token string
}

// JoinResult carries everything a client needs to reach its relay node.
type JoinResult struct {
	BackendAddress string
	Generation     int64
	Credential     auth.Credential
}

// JoinOrCreateCall resolves a call to its relay backend, creating the call
// if it does not exist, and returns a credential bound to the record's
// generation. Repeated calls while a generation lives always resolve to the
// same backend; only removal plus recreation changes the assignment.
func (s *Service) JoinOrCreateCall(ctx context.Context, req JoinRequest) (*JoinResult, error) {
	if !validID(req.CallID) {
		return nil, ErrInvalidCallID
	}
	if !validID(req.UserID) {
		return nil, ErrInvalidUserID
	}

	if req.Token != "" {
		return s.joinWithCredential(ctx, req)
	}

	rec, err := s.registry.Get(ctx, req.CallID)
	if errors.Is(err, call.ErrNotFound) {
		rec, err = s.createCall(ctx, req.CallID)
	}
	if err != nil {
		return nil, err
	}

	cred := s.engine.Derive(rec.CallID, rec.Generation, req.UserID, req.Permissions, s.ttl)
	s.registry.Touch(ctx, rec.CallID, true)

	return &JoinResult{
		BackendAddress: rec.BackendAddress,
		Generation:     rec.Generation,
		Credential:     cred,
	}, nil
}

// GetCall returns the current record for callID.
func (s *Service) GetCall(ctx context.Context, callID string) (*call.Record, error) {
	if !validID(callID) {
		return nil, ErrInvalidCallID
	}
	return s.registry.Get(ctx, callID)
}

// IngestHeartbeat feeds one relay node report into the directory.
func (s *Service) IngestHeartbeat(hb backend.Heartbeat) error {
	return s.directory.Ingest(hb)
}

func (s *Service) joinWithCredential(ctx context.Context, req JoinRequest) (*JoinResult, error) {
	cred, err := auth.ParseToken(req.Token)
	if err != nil {
		s.metrics.AuthFailure()
		return nil, err
	}
	if cred.CallID != req.CallID || cred.UserID != req.UserID {
		s.metrics.AuthFailure()
		return nil, auth.ErrSignatureMismatch
	}

	rec, err := s.registry.Get(ctx, req.CallID)
	if err != nil {
		// An absent record means every credential for it is void.
		return nil, err
	}

	if err := s.engine.Verify(cred, rec.Generation); err != nil {
		s.metrics.AuthFailure()
		s.logger.Info("credential rejected",
			"call_id", req.CallID,
			"user_id", req.UserID,
			"reason", err)
		return nil, err
	}

	s.registry.Touch(ctx, rec.CallID, false)
	return &JoinResult{
		BackendAddress: rec.BackendAddress,
		Generation:     rec.Generation,
		Credential:     cred,
	}, nil
}

func (s *Service) createCall(ctx context.Context, callID string) (*call.Record, error) {
	candidate, err := backend.Select(s.directory.Snapshot())
	if err != nil {
		s.metrics.SelectionFailure()
		return nil, fmt.Errorf("selecting backend for %s: %w", callID, err)
	}

	rec, _, err := s.registry.GetOrCreate(ctx, callID, call.Candidate{
		BackendID:      candidate.ID,
		BackendAddress: candidate.Address,
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}
