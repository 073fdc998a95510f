package transport_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hallpass-io/hallpass/internal/domain/auth"
	"github.com/hallpass-io/hallpass/internal/domain/backend"
	"github.com/hallpass-io/hallpass/internal/domain/call"
	"github.com/hallpass-io/hallpass/internal/domain/control"
	"github.com/hallpass-io/hallpass/internal/transport"
)

type stubControl struct {
	joinResult *control.JoinResult
	joinErr    error
	getResult  *call.Record
	getErr     error
	hbErr      error

	lastJoin control.JoinRequest
	lastHB   backend.Heartbeat
}

func (s *stubControl) JoinOrCreateCall(_ context.Context, req control.JoinRequest) (*control.JoinResult, error) {
	s.lastJoin = req
	return s.joinResult, s.joinErr
}

func (s *stubControl) GetCall(_ context.Context, _ string) (*call.Record, error) {
	return s.getResult, s.getErr
}

func (s *stubControl) IngestHeartbeat(hb backend.Heartbeat) error {
	s.lastHB = hb
	return s.hbErr
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHandleJoin_Success(t *testing.T) {
	cred := auth.Credential{
		CallID:     "room-42",
		Generation: 1,
		UserID:     "user-1",
		ExpiresAt:  time.Now().Add(time.Hour).Truncate(time.Second).UTC(),
		Signature:  []byte("sig"),
	}
	stub := &stubControl{joinResult: &control.JoinResult{
		BackendAddress: "relay-a:443",
		Generation:     1,
		Credential:     cred,
	}}
	router := transport.NewRouter(stub, nil, nil)

	rec := doJSON(t, router, http.MethodPost, "/v1/calls/room-42/join", map[string]any{
		"user_id":     "user-1",
		"permissions": []string{"join", "publish"},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "room-42", stub.lastJoin.CallID)
	require.True(t, stub.lastJoin.Permissions.Has(auth.PermJoin|auth.PermPublish))

	var resp struct {
		BackendAddress string `json:"backend_address"`
		Generation     int64  `json:"generation"`
		Credential     string `json:"credential"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "relay-a:443", resp.BackendAddress)
	require.Equal(t, int64(1), resp.Generation)
	require.Equal(t, cred.Token(), resp.Credential)
	require.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestHandleJoin_DefaultsToJoinPermission(t *testing.T) {
	stub := &stubControl{joinResult: &control.JoinResult{}}
	router := transport.NewRouter(stub, nil, nil)

	rec := doJSON(t, router, http.MethodPost, "/v1/calls/room-42/join", map[string]any{
		"user_id": "user-1",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, auth.PermJoin, stub.lastJoin.Permissions)
}

func TestHandleJoin_BadBody(t *testing.T) {
	router := transport.NewRouter(&stubControl{}, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/calls/room-42/join", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleJoin_ErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"invalid call id", control.ErrInvalidCallID, http.StatusBadRequest},
		{"malformed token", auth.ErrMalformedToken, http.StatusBadRequest},
		{"expired", auth.ErrExpired, http.StatusUnauthorized},
		{"signature mismatch", auth.ErrSignatureMismatch, http.StatusUnauthorized},
		{"generation mismatch", auth.ErrGenerationMismatch, http.StatusForbidden},
		{"not found", call.ErrNotFound, http.StatusNotFound},
		{"no capacity", backend.ErrNoCapacity, http.StatusServiceUnavailable},
		{"store unavailable", call.ErrStoreUnavailable, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := transport.NewRouter(&stubControl{joinErr: tc.err}, nil, nil)
			rec := doJSON(t, router, http.MethodPost, "/v1/calls/room-42/join", map[string]any{
				"user_id": "user-1",
			})
			require.Equal(t, tc.status, rec.Code)
		})
	}
}

func TestHandleGetCall(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	stub := &stubControl{getResult: &call.Record{
		CallID:         "room-42",
		BackendID:      "relay-a",
		BackendAddress: "relay-a:443",
		Generation:     2,
		CreatedAt:      now,
		LastActiveAt:   now,
	}}
	router := transport.NewRouter(stub, nil, nil)

	rec := doJSON(t, router, http.MethodGet, "/v1/calls/room-42", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got call.Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, "relay-a:443", got.BackendAddress)
	require.Equal(t, int64(2), got.Generation)
}

func TestHandleGetCall_NotFound(t *testing.T) {
	router := transport.NewRouter(&stubControl{getErr: call.ErrNotFound}, nil, nil)
	rec := doJSON(t, router, http.MethodGet, "/v1/calls/room-42", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleHeartbeat(t *testing.T) {
	stub := &stubControl{}
	router := transport.NewRouter(stub, nil, nil)

	rec := doJSON(t, router, http.MethodPut, "/v1/backends/relay-a/heartbeat", map[string]any{
		"address":        "relay-a:443",
		"capacity_score": 3,
		"status":         "active",
	})
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, backend.Heartbeat{
		BackendID:     "relay-a",
		Address:       "relay-a:443",
		CapacityScore: 3,
		Status:        backend.StatusActive,
	}, stub.lastHB)
}

func TestHandleHeartbeat_Invalid(t *testing.T) {
	router := transport.NewRouter(&stubControl{hbErr: backend.ErrInvalidHeartbeat}, nil, nil)
	rec := doJSON(t, router, http.MethodPut, "/v1/backends/relay-a/heartbeat", map[string]any{
		"status": "bogus",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleHealth(t *testing.T) {
	router := transport.NewRouter(&stubControl{}, nil, nil)
	rec := doJSON(t, router, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}
