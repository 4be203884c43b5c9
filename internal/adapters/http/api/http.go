// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	repository "github.com/hackfest/proctor/internal/adapters/repository"
	"github.com/hackfest/proctor/internal/auth"
	"github.com/hackfest/proctor/internal/domain/lockdown"
	"github.com/hackfest/proctor/internal/domain/model"
	"github.com/hackfest/proctor/internal/domain/types"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// Idempotency tracking for activity ingestion.
	SeenAndRecord(ctx context.Context, id string) bool
	Unrecord(ctx context.Context, id string)

	// Session lifecycle.
	RegisterSession(ctx context.Context, session model.Session) error
	SessionInfo(ctx context.Context, sessionID string) (model.Session, lockdown.State, int, error)
	AcknowledgeWarning(ctx context.Context, sessionID string) (lockdown.State, error)
	Heartbeat(ctx context.Context, sessionID string, t time.Time) error

	// Violation and activity ingestion.
	SubmitViolation(ctx context.Context, event model.ViolationEvent) (repository.AppendResult, error)
	IngestActivity(ctx context.Context, event model.ActivityEvent) bool

	// Monitor reads.
	TeamStatuses(ctx context.Context, hackathonID string) ([]types.TeamStatus, bool, error)
	Activities(ctx context.Context, hackathonID, teamID, activityType string, cursor uint64, limit int) []types.ActivityEntry
	ViolationsForSession(ctx context.Context, sessionID string, since time.Time) ([]model.ViolationEvent, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler     *HealthHandler
	statsHandler      *StatsHandler
	sessionsHandler   *SessionsHandler
	violationsHandler *ViolationsHandler
	activitiesHandler *ActivitiesHandler
	monitorHandler    *MonitorHandler
	tokens            *auth.TokenService
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, tokens *auth.TokenService, maxActivitiesLimit int) *Server {
	return &Server{
		healthHandler:     NewHealthHandler(),
		statsHandler:      NewStatsHandler(statsProvider),
		sessionsHandler:   NewSessionsHandler(deps, tokens),
		violationsHandler: NewViolationsHandler(deps),
		activitiesHandler: NewActivitiesHandler(deps),
		monitorHandler:    NewMonitorHandler(deps, maxActivitiesLimit),
		tokens:            tokens,
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	authed := func(next http.HandlerFunc, endpoint string) http.HandlerFunc {
		return MetricsMiddleware(AuthMiddleware(next, s.tokens), endpoint)
	}

	// Specific paths first (most specific to least specific)
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/sessions", MetricsMiddleware(s.sessionsHandler.HandleRegister, "sessions"))
	mux.HandleFunc("/sessions/heartbeat", authed(s.sessionsHandler.HandleHeartbeat, "sessions_heartbeat"))
	mux.HandleFunc("/sessions/acknowledge", authed(s.sessionsHandler.HandleAcknowledge, "sessions_acknowledge"))
	mux.HandleFunc("/sessions/state", authed(s.sessionsHandler.HandleState, "sessions_state"))
	mux.HandleFunc("/violations", authed(s.violationsHandler.HandlePostViolation, "violations"))
	mux.HandleFunc("/activities", authed(s.activitiesHandler.HandlePostActivity, "activities"))
	mux.HandleFunc("/monitor/teams", MetricsMiddleware(s.monitorHandler.HandleGetTeams, "monitor_teams"))
	mux.HandleFunc("/monitor/activities", MetricsMiddleware(s.monitorHandler.HandleGetActivities, "monitor_activities"))
	mux.HandleFunc("/monitor/violations", MetricsMiddleware(s.monitorHandler.HandleGetViolations, "monitor_violations"))
	mux.HandleFunc("/monitor/export", MetricsMiddleware(s.monitorHandler.HandleExport, "monitor_export"))
}

// violationRequest mirrors the wire schema for POST /violations.
type violationRequest struct {
	EventID       string `json:"event_id"`
	SessionID     string `json:"session_id"`
	HackathonID   string `json:"hackathon_id"`
	ViolationType string `json:"violation_type"`
	TS            string `json:"ts"`
}

func (v violationRequest) validate() error {
	switch {
	case strings.TrimSpace(v.EventID) == "":
		return errors.New("missing event_id")
	case strings.TrimSpace(v.SessionID) == "":
		return errors.New("missing session_id")
	case strings.TrimSpace(v.ViolationType) == "":
		return errors.New("missing violation_type")
	case strings.TrimSpace(v.TS) == "":
		return errors.New("missing ts")
	}
	if _, err := time.Parse(time.RFC3339, v.TS); err != nil {
		return errors.New("invalid ts; must be RFC3339")
	}
	return nil
}

// activityRequest mirrors the wire schema for POST /activities.
type activityRequest struct {
	EventID       string `json:"event_id"`
	HackathonID   string `json:"hackathon_id"`
	TeamID        string `json:"team_id"`
	ParticipantID string `json:"participant_id"`
	Type          string `json:"type"`
	LinesDelta    int    `json:"lines_delta"`
	Commit        bool   `json:"commit"`
	Details       string `json:"details"`
	TS            string `json:"ts"`
}

func (a activityRequest) validate() error {
	switch {
	case strings.TrimSpace(a.EventID) == "":
		return errors.New("missing event_id")
	case strings.TrimSpace(a.TeamID) == "":
		return errors.New("missing team_id")
	case strings.TrimSpace(a.Type) == "":
		return errors.New("missing type")
	case strings.TrimSpace(a.TS) == "":
		return errors.New("missing ts")
	}
	if _, err := time.Parse(time.RFC3339, a.TS); err != nil {
		return errors.New("invalid ts; must be RFC3339")
	}
	return nil
}

type ackResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
	Strikes   int    `json:"strikes,omitempty"`
	State     string `json:"state,omitempty"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
