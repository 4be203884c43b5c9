// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	repository "github.com/hackfest/proctor/internal/adapters/repository"
	"github.com/hackfest/proctor/internal/domain/lockdown"
	"github.com/hackfest/proctor/internal/domain/model"
	"github.com/hackfest/proctor/internal/domain/violation"
)

// ViolationDependencies defines the interface for violation ingestion.
type ViolationDependencies interface {
	SubmitViolation(ctx context.Context, event model.ViolationEvent) (repository.AppendResult, error)
	SessionInfo(ctx context.Context, sessionID string) (model.Session, lockdown.State, int, error)
}

// ViolationsHandler handles violation report requests.
type ViolationsHandler struct {
	deps ViolationDependencies
}

// NewViolationsHandler creates a new violations handler.
func NewViolationsHandler(deps ViolationDependencies) *ViolationsHandler {
	return &ViolationsHandler{deps: deps}
}

// HandlePostViolation handles POST /violations requests. The token's
// session claim must match the payload; severity is derived server-side
// from the violation type.
func (h *ViolationsHandler) HandlePostViolation(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_violation"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req violationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	claims, ok := ClaimsFromContext(r.Context())
	if !ok || claims.SessionID != req.SessionID {
		writeError(w, http.StatusForbidden, "forbidden", NewKind(op, ErrUnauthorized))
		return
	}

	ts, _ := time.Parse(time.RFC3339, req.TS)
	result, err := h.deps.SubmitViolation(r.Context(), model.ViolationEvent{
		EventID:     req.EventID,
		SessionID:   req.SessionID,
		HackathonID: req.HackathonID,
		Type:        model.ViolationType(req.ViolationType),
		TS:          ts,
	})
	if err != nil {
		if errors.Is(err, violation.ErrUnknownSignal) {
			writeError(w, http.StatusBadRequest, "unknown_violation_type", WrapKind(op, ErrBadRequest, err))
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	// Idempotent contract: a replay acknowledges with the same 202 as
	// the first delivery, flagged so clients can tell.
	if result == repository.Duplicate {
		writeJSON(w, http.StatusAccepted, ackResponse{Status: "duplicate", Duplicate: true})
		return
	}

	// Return the session mirror's view so clients can reconcile drift.
	resp := ackResponse{Status: "accepted", Duplicate: false}
	if _, state, strikes, err := h.deps.SessionInfo(r.Context(), req.SessionID); err == nil {
		resp.State = string(state)
		resp.Strikes = strikes
	}
	writeJSON(w, http.StatusAccepted, resp)
}
