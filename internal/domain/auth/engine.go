package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"hash"
	"time"
)

const minSecretLen = 16

// Engine mints and verifies generation-bound call credentials using an
// HMAC-SHA256 over a canonical encoding of the credential fields. The
// secret is process-wide and provisioned at startup.
type Engine struct {
	secret []byte
	now    func() time.Time
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithEngineClock overrides the engine's time source.
func WithEngineClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates a credential engine. The secret must be at least 16
// bytes; shorter secrets are rejected rather than silently accepted.
func NewEngine(secret []byte, opts ...EngineOption) (*Engine, error) {
	if len(secret) < minSecretLen {
		return nil, ErrWeakSecret
	}
	e := &Engine{
		secret: append([]byte(nil), secret...),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Derive mints a credential for userID on the given incarnation of callID,
// valid for ttl from now.
func (e *Engine) Derive(callID string, generation int64, userID string, perms Permissions, ttl time.Duration) Credential {
	cred := Credential{
		CallID:      callID,
		Generation:  generation,
		UserID:      userID,
		Permissions: perms,
		ExpiresAt:   e.now().UTC().Add(ttl).Truncate(time.Second),
	}
	cred.Signature = e.sign(cred)
	return cred
}

// Verify checks cred against the call's current generation. The generation
// check runs first and fires independently of signature validity, so stale
// credentials are rejected even when perfectly formed. Signature comparison
// is constant-time.
func (e *Engine) Verify(cred Credential, currentGeneration int64) error {
	if cred.Generation != currentGeneration {
		return ErrGenerationMismatch
	}
	if !hmac.Equal(cred.Signature, e.sign(cred)) {
		return ErrSignatureMismatch
	}
	if e.now().After(cred.ExpiresAt) {
		return ErrExpired
	}
	return nil
}

// sign computes the MAC over the canonical byte sequence of every field
// except the signature itself. Variable-length fields are length-prefixed
// so no two distinct credentials share an encoding.
func (e *Engine) sign(cred Credential) []byte {
	mac := hmac.New(sha256.New, e.secret)
	writeString(mac, cred.CallID)
	writeInt64(mac, cred.Generation)
	writeString(mac, cred.UserID)
	writeInt64(mac, int64(cred.Permissions))
	writeInt64(mac, cred.ExpiresAt.Unix())
	return mac.Sum(nil)
}

func writeString(mac hash.Hash, s string) {
	writeInt64(mac, int64(len(s)))
	mac.Write([]byte(s))
}

func writeInt64(mac hash.Hash, v int64) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(v))
	mac.Write(buf[:])
}
