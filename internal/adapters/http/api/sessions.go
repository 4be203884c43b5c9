// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/hackfest/proctor/internal/auth"
	"github.com/hackfest/proctor/internal/domain/lockdown"
	"github.com/hackfest/proctor/internal/domain/model"
)

// SessionDependencies defines the interface for session lifecycle operations.
type SessionDependencies interface {
	RegisterSession(ctx context.Context, session model.Session) error
	SessionInfo(ctx context.Context, sessionID string) (model.Session, lockdown.State, int, error)
	AcknowledgeWarning(ctx context.Context, sessionID string) (lockdown.State, error)
	Heartbeat(ctx context.Context, sessionID string, t time.Time) error
}

// SessionsHandler handles session lifecycle requests.
type SessionsHandler struct {
	deps   SessionDependencies
	tokens *auth.TokenService
}

// NewSessionsHandler creates a new sessions handler.
func NewSessionsHandler(deps SessionDependencies, tokens *auth.TokenService) *SessionsHandler {
	return &SessionsHandler{deps: deps, tokens: tokens}
}

type sessionRequest struct {
	SessionID     string `json:"session_id"`
	ParticipantID string `json:"participant_id"`
	TeamID        string `json:"team_id"`
	HackathonID   string `json:"hackathon_id"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
}

func (s sessionRequest) validate() error {
	switch {
	case strings.TrimSpace(s.SessionID) == "":
		return errors.New("missing session_id")
	case strings.TrimSpace(s.ParticipantID) == "":
		return errors.New("missing participant_id")
	case strings.TrimSpace(s.TeamID) == "":
		return errors.New("missing team_id")
	case strings.TrimSpace(s.EndTime) == "":
		return errors.New("missing end_time")
	}
	if s.StartTime != "" {
		if _, err := time.Parse(time.RFC3339, s.StartTime); err != nil {
			return errors.New("invalid start_time; must be RFC3339")
		}
	}
	if _, err := time.Parse(time.RFC3339, s.EndTime); err != nil {
		return errors.New("invalid end_time; must be RFC3339")
	}
	return nil
}

type sessionResponse struct {
	Token   string `json:"token"`
	EndTime string `json:"end_time"`
	State   string `json:"state"`
}

type sessionStateResponse struct {
	SessionID string `json:"session_id"`
	State     string `json:"state"`
	Strikes   int    `json:"strikes"`
	EndTime   string `json:"end_time"`
}

// HandleRegister handles POST /sessions requests. The response carries
// the authoritative end time clients use for their countdown.
func (h *SessionsHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	const op = "api.register_session"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	start := time.Now()
	if req.StartTime != "" {
		start, _ = time.Parse(time.RFC3339, req.StartTime)
	}
	end, _ := time.Parse(time.RFC3339, req.EndTime)

	err := h.deps.RegisterSession(r.Context(), model.Session{
		SessionID:     req.SessionID,
		ParticipantID: req.ParticipantID,
		TeamID:        req.TeamID,
		HackathonID:   req.HackathonID,
		StartTime:     start,
		EndTime:       end,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	token, err := h.tokens.Generate(req.SessionID, req.ParticipantID, req.HackathonID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	_, state, _, _ := h.deps.SessionInfo(r.Context(), req.SessionID)
	writeJSON(w, http.StatusCreated, sessionResponse{
		Token:   token,
		EndTime: end.Format(time.RFC3339),
		State:   string(state),
	})
}

// HandleHeartbeat handles POST /sessions/heartbeat requests.
func (h *SessionsHandler) HandleHeartbeat(w http.ResponseWriter, r *http.Request) {
	const op = "api.heartbeat"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", NewKind(op, ErrUnauthorized))
		return
	}
	if err := h.deps.Heartbeat(r.Context(), claims.SessionID, time.Now()); err != nil {
		switch {
		case errors.Is(err, lockdown.ErrSessionNotFound):
			writeError(w, http.StatusNotFound, "not_found", WrapKind(op, ErrNotFound, err))
		case errors.Is(err, lockdown.ErrSessionTerminal):
			writeError(w, http.StatusConflict, "session_terminal", Wrap(op, err))
		default:
			writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		}
		return
	}
	h.writeState(w, r, claims.SessionID, op)
}

// HandleAcknowledge handles POST /sessions/acknowledge requests. The
// response state tells the client whether the warning resolved back to
// active monitoring or into disqualification.
func (h *SessionsHandler) HandleAcknowledge(w http.ResponseWriter, r *http.Request) {
	const op = "api.acknowledge"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", NewKind(op, ErrUnauthorized))
		return
	}
	if _, err := h.deps.AcknowledgeWarning(r.Context(), claims.SessionID); err != nil {
		if errors.Is(err, lockdown.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "not_found", WrapKind(op, ErrNotFound, err))
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	h.writeState(w, r, claims.SessionID, op)
}

// HandleState handles GET /sessions/state requests for client
// reconciliation.
func (h *SessionsHandler) HandleState(w http.ResponseWriter, r *http.Request) {
	const op = "api.session_state"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", NewKind(op, ErrUnauthorized))
		return
	}
	h.writeState(w, r, claims.SessionID, op)
}

func (h *SessionsHandler) writeState(w http.ResponseWriter, r *http.Request, sessionID, op string) {
	session, state, strikes, err := h.deps.SessionInfo(r.Context(), sessionID)
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found", WrapKind(op, ErrNotFound, err))
		return
	}
	writeJSON(w, http.StatusOK, sessionStateResponse{
		SessionID: sessionID,
		State:     string(state),
		Strikes:   strikes,
		EndTime:   session.EndTime.Format(time.RFC3339),
	})
}
