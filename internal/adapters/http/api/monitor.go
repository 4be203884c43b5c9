// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/csv"
	"errors"
	"net/http"
	"strconv"
	"time"

	repository "github.com/hackfest/proctor/internal/adapters/repository"
	"github.com/hackfest/proctor/internal/domain/model"
	"github.com/hackfest/proctor/internal/domain/types"
)

// MonitorDependencies defines the interface for organizer dashboard reads.
type MonitorDependencies interface {
	TeamStatuses(ctx context.Context, hackathonID string) ([]types.TeamStatus, bool, error)
	Activities(ctx context.Context, hackathonID, teamID, activityType string, cursor uint64, limit int) []types.ActivityEntry
	ViolationsForSession(ctx context.Context, sessionID string, since time.Time) ([]model.ViolationEvent, error)
}

// MonitorHandler handles organizer dashboard requests.
type MonitorHandler struct {
	deps     MonitorDependencies
	maxLimit int
}

// NewMonitorHandler creates a new monitor handler.
func NewMonitorHandler(deps MonitorDependencies, maxLimit int) *MonitorHandler {
	return &MonitorHandler{deps: deps, maxLimit: maxLimit}
}

type teamsResponse struct {
	HackathonID string             `json:"hackathon_id,omitempty"`
	Stale       bool               `json:"stale"`
	Teams       []types.TeamStatus `json:"teams"`
}

type activitiesResponse struct {
	Entries    []types.ActivityEntry `json:"entries"`
	NextCursor uint64                `json:"next_cursor"`
}

// HandleGetTeams handles GET /monitor/teams?hackathon_id=H requests.
// A stale response is the previous snapshot served because the fresh
// computation exceeded its budget.
func (h *MonitorHandler) HandleGetTeams(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_teams"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	hackathonID := r.URL.Query().Get("hackathon_id")
	rows, stale, err := h.deps.TeamStatuses(r.Context(), hackathonID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	if rows == nil {
		rows = []types.TeamStatus{}
	}
	writeJSON(w, http.StatusOK, teamsResponse{
		HackathonID: hackathonID,
		Stale:       stale,
		Teams:       rows,
	})
}

// HandleGetActivities handles GET /monitor/activities requests with
// cursor pagination: ?hackathon_id=H&team_id=T&type=ai_query&cursor=N&limit=M.
func (h *MonitorHandler) HandleGetActivities(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_activities"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	q := r.URL.Query()

	limit := h.maxLimit
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
			return
		}
		if n > h.maxLimit {
			writeError(w, http.StatusBadRequest, "limit_exceeded", NewKind(op, ErrBadRequest))
			return
		}
		limit = n
	}

	var cursor uint64
	if raw := q.Get("cursor"); raw != "" {
		c, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
			return
		}
		cursor = c
	}

	entries := h.deps.Activities(r.Context(), q.Get("hackathon_id"), q.Get("team_id"), q.Get("type"), cursor, limit)
	next := cursor
	if len(entries) > 0 {
		next = entries[len(entries)-1].Cursor
	}
	writeJSON(w, http.StatusOK, activitiesResponse{Entries: entries, NextCursor: next})
}

// HandleGetViolations handles GET /monitor/violations?session_id=S&since=RFC3339.
func (h *MonitorHandler) HandleGetViolations(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_violations"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	q := r.URL.Query()
	sessionID := q.Get("session_id")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	var since time.Time
	if raw := q.Get("since"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
			return
		}
		since = t
	}
	events, err := h.deps.ViolationsForSession(r.Context(), sessionID, since)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "not_found", WrapKind(op, ErrNotFound, err))
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	if events == nil {
		events = []model.ViolationEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

// HandleExport handles GET /monitor/export?hackathon_id=H requests and
// streams the recent activity feed as CSV for offline audit.
func (h *MonitorHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	q := r.URL.Query()
	entries := h.deps.Activities(r.Context(), q.Get("hackathon_id"), q.Get("team_id"), q.Get("type"), 0, 0)

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="activity-feed.csv"`)
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"ts", "team_id", "participant_id", "type", "details"})
	for _, entry := range entries {
		_ = cw.Write([]string{
			entry.TS.UTC().Format(time.RFC3339),
			entry.TeamID,
			entry.ParticipantID,
			entry.Type,
			entry.Details,
		})
	}
	cw.Flush()
}
