package auth

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Token wire format: dot-separated segments, safe for URLs and headers.
//
//	v1.<callID b64url>.<generation>.<userID b64url>.<permissions>.<expiry unix>.<mac b64url>
const tokenVersion = "v1"

var b64 = base64.RawURLEncoding

// Token serializes the credential to its compact wire form.
func (c Credential) Token() string {
	return strings.Join([]string{
		tokenVersion,
		b64.EncodeToString([]byte(c.CallID)),
		strconv.FormatInt(c.Generation, 10),
		b64.EncodeToString([]byte(c.UserID)),
		strconv.FormatUint(uint64(c.Permissions), 10),
		strconv.FormatInt(c.ExpiresAt.Unix(), 10),
		b64.EncodeToString(c.Signature),
	}, ".")
}

// ParseToken decodes a compact token back into a credential. It validates
// structure only; cryptographic and generation checks belong to
// Engine.Verify.
func ParseToken(token string) (Credential, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 7 || parts[0] != tokenVersion {
		return Credential{}, ErrMalformedToken
	}

	callID, err := b64.DecodeString(parts[1])
	if err != nil {
		return Credential{}, fmt.Errorf("%w: call id: %w", ErrMalformedToken, err)
	}
	generation, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return Credential{}, fmt.Errorf("%w: generation: %w", ErrMalformedToken, err)
	}
	userID, err := b64.DecodeString(parts[3])
	if err != nil {
		return Credential{}, fmt.Errorf("%w: user id: %w", ErrMalformedToken, err)
	}
	perms, err := strconv.ParseUint(parts[4], 10, 32)
	if err != nil {
		return Credential{}, fmt.Errorf("%w: permissions: %w", ErrMalformedToken, err)
	}
	expiry, err := strconv.ParseInt(parts[5], 10, 64)
	if err != nil {
		return Credential{}, fmt.Errorf("%w: expiry: %w", ErrMalformedToken, err)
	}
	sig, err := b64.DecodeString(parts[6])
	if err != nil {
		return Credential{}, fmt.Errorf("%w: signature: %w", ErrMalformedToken, err)
	}

	return Credential{
		CallID:      string(callID),
		Generation:  generation,
		UserID:      string(userID),
		Permissions: Permissions(perms),
		ExpiresAt:   time.Unix(expiry, 0).UTC(),
		Signature:   sig,
	}, nil
}
