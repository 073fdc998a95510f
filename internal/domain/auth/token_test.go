package auth_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hallpass-io/hallpass/internal/domain/auth"
)

func TestToken_RoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	engine := newTestEngine(t, &now)

	cred := engine.Derive("room-42", 3, "user-1", auth.PermJoin|auth.PermPublish, time.Hour)

	parsed, err := auth.ParseToken(cred.Token())
	require.NoError(t, err)
	require.Equal(t, cred.CallID, parsed.CallID)
	require.Equal(t, cred.Generation, parsed.Generation)
	require.Equal(t, cred.UserID, parsed.UserID)
	require.Equal(t, cred.Permissions, parsed.Permissions)
	require.True(t, parsed.ExpiresAt.Equal(cred.ExpiresAt))
	require.Equal(t, cred.Signature, parsed.Signature)
	require.NoError(t, engine.Verify(parsed, 3))
}

func TestParseToken_Malformed(t *testing.T) {
	cases := []string{
		"",
		"v1",
		"v2.a.1.b.1.1.c",
		"v1.!!!.1.dXNlcg.1.1700000000.c2ln",
		"v1.cm9vbQ.notanumber.dXNlcg.1.1700000000.c2ln",
		"v1.cm9vbQ.1.dXNlcg.1.notanumber.c2ln",
		"v1.cm9vbQ.1.dXNlcg.1.1700000000.!!!",
	}
	for _, tc := range cases {
		_, err := auth.ParseToken(tc)
		require.ErrorIs(t, err, auth.ErrMalformedToken, "token %q", tc)
	}
}
