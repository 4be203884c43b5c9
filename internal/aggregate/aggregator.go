// Package aggregate maintains rolling per-team activity statistics.
//
// Updates are commutative atomic increments, never replace-by-timestamp,
// so out-of-order delivery cannot corrupt totals. Snapshots are created
// lazily on a team's first event and live for the whole hackathon.
package aggregate

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hackfest/proctor/internal/domain/model"
	"github.com/hackfest/proctor/internal/domain/types"
	"github.com/hackfest/proctor/pkg/metrics"
)

// Default aggregator configuration constants.
const (
	defaultRingCapacity = 1000
)

// teamCounters holds one team's live aggregate. Every field supports
// concurrent increment from multiple participants' events without a
// read-modify-write race.
type teamCounters struct {
	hackathonID  string
	linesOfCode  atomicInt64
	commits      atomicInt64
	filesCreated atomicInt64
	aiQueries    atomicInt64
	totalEvents  atomicInt64
	lastActivity atomicInt64 // unix nanos, monotonic max
}

// Aggregator consumes the activity event stream and serves snapshots and
// the recent-activity ring per hackathon.
type Aggregator struct {
	mu       sync.RWMutex
	teams    map[string]*teamCounters
	rings    map[string]*Ring
	ringSize int
}

// Option applies a configuration option to the Aggregator.
type Option func(*Aggregator)

// WithRingCapacity bounds the per-hackathon recent-activity buffer.
func WithRingCapacity(capacity int) Option {
	return func(a *Aggregator) {
		if capacity > 0 {
			a.ringSize = capacity
		}
	}
}

// New creates an aggregator with configuration options.
func New(opts ...Option) *Aggregator {
	a := &Aggregator{
		teams:    make(map[string]*teamCounters),
		rings:    make(map[string]*Ring),
		ringSize: defaultRingCapacity,
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Apply folds one activity event into the team's counters and the
// hackathon's recent-activity ring.
func (a *Aggregator) Apply(ctx context.Context, event model.ActivityEvent) {
	start := time.Now()
	defer func() {
		metrics.RecordAggregatorLatency(float64(time.Since(start).Milliseconds()))
	}()

	counters := a.countersFor(event.TeamID, event.HackathonID)

	switch event.Type {
	case model.ActivityCodeChange:
		counters.linesOfCode.Add(int64(event.LinesDelta))
	case model.ActivityFileCreated:
		counters.filesCreated.Add(1)
	case model.ActivityAIQuery:
		counters.aiQueries.Add(1)
	case model.ActivityFileDeleted, model.ActivityTerminalCommand, model.ActivityExecute:
		// Counted in the total only.
	}
	if event.Commit {
		counters.commits.Add(1)
	}
	counters.totalEvents.Add(1)
	counters.lastActivity.StoreMax(event.TS.UnixNano())

	a.ringFor(event.HackathonID).Append(types.ActivityEntry{
		HackathonID:   event.HackathonID,
		TeamID:        event.TeamID,
		ParticipantID: event.ParticipantID,
		Type:          string(event.Type),
		Details:       event.Details,
		TS:            event.TS,
	})

	metrics.RecordActivityEvent(string(event.Type))
}

// countersFor returns the team's counters, creating them on first event.
func (a *Aggregator) countersFor(teamID, hackathonID string) *teamCounters {
	a.mu.RLock()
	counters, ok := a.teams[teamID]
	a.mu.RUnlock()
	if ok {
		return counters
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if counters, ok = a.teams[teamID]; ok {
		return counters
	}
	counters = &teamCounters{hackathonID: hackathonID}
	a.teams[teamID] = counters
	metrics.UpdateTrackedTeams(len(a.teams))
	return counters
}

// ringFor returns the hackathon's ring, creating it on first event.
func (a *Aggregator) ringFor(hackathonID string) *Ring {
	a.mu.RLock()
	ring, ok := a.rings[hackathonID]
	a.mu.RUnlock()
	if ok {
		return ring
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if ring, ok = a.rings[hackathonID]; ok {
		return ring
	}
	ring = NewRing(a.ringSize)
	a.rings[hackathonID] = ring
	return ring
}

// Snapshot returns a value copy of the team's aggregate. The second
// return is false when the team has produced no events yet.
func (a *Aggregator) Snapshot(ctx context.Context, teamID string) (model.ActivitySnapshot, bool) {
	a.mu.RLock()
	counters, ok := a.teams[teamID]
	a.mu.RUnlock()
	if !ok {
		return model.ActivitySnapshot{TeamID: teamID}, false
	}

	snapshot := model.ActivitySnapshot{
		TeamID:          teamID,
		LinesOfCode:     counters.linesOfCode.Load(),
		Commits:         counters.commits.Load(),
		FilesCreated:    counters.filesCreated.Load(),
		AIQueryCount:    counters.aiQueries.Load(),
		TotalEventCount: counters.totalEvents.Load(),
	}
	if nanos := counters.lastActivity.Load(); nanos > 0 {
		snapshot.LastActivityAt = time.Unix(0, nanos)
	}
	return snapshot, true
}

// Teams returns the ids of all teams tracked for a hackathon, sorted for
// deterministic iteration. An empty hackathonID returns every team.
func (a *Aggregator) Teams(ctx context.Context, hackathonID string) []string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	ids := make([]string, 0, len(a.teams))
	for id, counters := range a.teams {
		if hackathonID == "" || counters.hackathonID == hackathonID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Recent returns up to limit ring entries after cursor, filtered by team
// and type when provided.
func (a *Aggregator) Recent(ctx context.Context, hackathonID, teamID, activityType string, cursor uint64, limit int) []types.ActivityEntry {
	a.mu.RLock()
	ring, ok := a.rings[hackathonID]
	a.mu.RUnlock()
	if !ok {
		return nil
	}

	// Over-fetch unfiltered pages so filters still fill the page where
	// possible, then trim.
	entries := ring.Since(cursor, 0)
	out := make([]types.ActivityEntry, 0, len(entries))
	for _, entry := range entries {
		if teamID != "" && entry.TeamID != teamID {
			continue
		}
		if activityType != "" && entry.Type != activityType {
			continue
		}
		out = append(out, entry)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// TeamCount returns the number of teams with a live snapshot.
func (a *Aggregator) TeamCount(ctx context.Context) int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.teams)
}
