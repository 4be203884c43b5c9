// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/hackfest/proctor/internal/domain/model"
)

// ActivityDependencies defines the interface for activity ingestion.
type ActivityDependencies interface {
	SeenAndRecord(ctx context.Context, id string) bool
	Unrecord(ctx context.Context, id string)
	IngestActivity(ctx context.Context, event model.ActivityEvent) bool
}

// ActivitiesHandler handles activity event requests.
type ActivitiesHandler struct {
	deps ActivityDependencies
}

// NewActivitiesHandler creates a new activities handler.
func NewActivitiesHandler(deps ActivityDependencies) *ActivitiesHandler {
	return &ActivitiesHandler{deps: deps}
}

// HandlePostActivity handles POST /activities requests.
func (h *ActivitiesHandler) HandlePostActivity(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_activity"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req activityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	// Idempotency check - mark as seen first
	if h.deps.SeenAndRecord(r.Context(), req.EventID) {
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", Duplicate: true})
		return
	}

	ts, _ := time.Parse(time.RFC3339, req.TS)
	event := model.ActivityEvent{
		EventID:       req.EventID,
		HackathonID:   req.HackathonID,
		TeamID:        req.TeamID,
		ParticipantID: req.ParticipantID,
		Type:          model.ActivityType(req.Type),
		LinesDelta:    req.LinesDelta,
		Commit:        req.Commit,
		Details:       req.Details,
		TS:            ts,
	}

	// Try to enqueue for async processing
	if ok := h.deps.IngestActivity(r.Context(), event); !ok {
		// Rollback the "seen" status since enqueue failed
		h.deps.Unrecord(r.Context(), req.EventID)
		writeError(w, http.StatusTooManyRequests, "backpressure", NewKind(op, ErrBackpressure))
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted", Duplicate: false})
}
