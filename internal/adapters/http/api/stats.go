// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"net/http"
)

// StatsProvider exposes the service's runtime counters: queue depth,
// tracked teams and sessions, idle sessions, and the poll interval
// suggested to dashboards. The snapshot is rebuilt on every call.
type StatsProvider interface {
	GetStats() map[string]interface{}
}

// StatsHandler serves the operational snapshot organizers poll during
// an event. It is intentionally untyped JSON so adding a counter never
// breaks an existing consumer.
type StatsHandler struct {
	provider StatsProvider
}

// NewStatsHandler creates a stats handler backed by the given provider.
func NewStatsHandler(provider StatsProvider) *StatsHandler {
	return &StatsHandler{provider: provider}
}

// HandleStats handles GET /stats requests.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, h.provider.GetStats())
}
