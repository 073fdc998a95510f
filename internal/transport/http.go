package transport

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hallpass-io/hallpass/internal/domain/auth"
	"github.com/hallpass-io/hallpass/internal/domain/backend"
	"github.com/hallpass-io/hallpass/internal/domain/call"
	"github.com/hallpass-io/hallpass/internal/domain/control"
)

// ControlService is the orchestrator surface the HTTP layer exposes.
type ControlService interface {
	JoinOrCreateCall(ctx context.Context, req control.JoinRequest) (*control.JoinResult, error)
	GetCall(ctx context.Context, callID string) (*call.Record, error)
	IngestHeartbeat(hb backend.Heartbeat) error
}

// Server wires HTTP handlers to the control service.
type Server struct {
	control ControlService
	logger  *slog.Logger
}

// NewRouter builds the control-plane router. metricsHandler serves
// /metrics; pass promhttp.Handler() in production.
func NewRouter(svc ControlService, logger *slog.Logger, metricsHandler http.Handler) *chi.Mux {
	if logger == nil {
		logger = slog.Default()
	}
	srv := &Server{control: svc, logger: logger}

	r := chi.NewRouter()
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))

	r.Post("/v1/calls/{callID}/join", srv.handleJoin)
	r.Get("/v1/calls/{callID}", srv.handleGetCall)
	r.Put("/v1/backends/{backendID}/heartbeat", srv.handleHeartbeat)
	r.Get("/health", srv.handleHealth)
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	return r
}

type joinRequest struct {
	UserID      string   `json:"user_id"`
	Permissions []string `json:"permissions"`
	Credential  string   `json:"credential,omitempty"`
}

type joinResponse struct {
	BackendAddress string    `json:"backend_address"`
	Generation     int64     `json:"generation"`
	Credential     string    `json:"credential"`
	ExpiresAt      time.Time `json:"expires_at"`
}

type heartbeatRequest struct {
	Address       string `json:"address"`
	CapacityScore int    `json:"capacity_score"`
	Status        string `json:"status"`
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	var body joinRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "validation", "invalid request body")
		return
	}

	perms, err := auth.ParsePermissions(body.Permissions)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "validation", err.Error())
		return
	}
	if perms == 0 {
		perms = auth.PermJoin
	}

	result, err := s.control.JoinOrCreateCall(r.Context(), control.JoinRequest{
		CallID:      chi.URLParam(r, "callID"),
		UserID:      body.UserID,
		Permissions: perms,
		Token:       body.Credential,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, joinResponse{
		BackendAddress: result.BackendAddress,
		Generation:     result.Generation,
		Credential:     result.Credential.Token(),
		ExpiresAt:      result.Credential.ExpiresAt,
	})
}

func (s *Server) handleGetCall(w http.ResponseWriter, r *http.Request) {
	rec, err := s.control.GetCall(r.Context(), chi.URLParam(r, "callID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	var body heartbeatRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "validation", "invalid request body")
		return
	}

	err := s.control.IngestHeartbeat(backend.Heartbeat{
		BackendID:     chi.URLParam(r, "backendID"),
		Address:       body.Address,
		CapacityScore: body.CapacityScore,
		Status:        backend.Status(body.Status),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// writeError maps domain errors onto the HTTP surface. The mapping is part
// of the API contract: clients retry only on 503.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, control.ErrInvalidCallID),
		errors.Is(err, control.ErrInvalidUserID),
		errors.Is(err, backend.ErrInvalidHeartbeat),
		errors.Is(err, auth.ErrMalformedToken):
		writeJSONError(w, http.StatusBadRequest, "validation", err.Error())
	case errors.Is(err, auth.ErrExpired),
		errors.Is(err, auth.ErrSignatureMismatch):
		writeJSONError(w, http.StatusUnauthorized, "auth", err.Error())
	case errors.Is(err, auth.ErrGenerationMismatch):
		writeJSONError(w, http.StatusForbidden, "auth", err.Error())
	case errors.Is(err, call.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, backend.ErrNoCapacity):
		w.Header().Set("Retry-After", "5")
		writeJSONError(w, http.StatusServiceUnavailable, "no_capacity", err.Error())
	case errors.Is(err, call.ErrStoreUnavailable):
		w.Header().Set("Retry-After", "1")
		writeJSONError(w, http.StatusServiceUnavailable, "store_unavailable", err.Error())
	default:
		s.logger.Error("request failed",
			"request_id", RequestIDFromContext(r.Context()),
			"error", err)
		writeJSONError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeJSONError(w http.ResponseWriter, status int, kind, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, Kind: kind})
}
