// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	eventqueue "github.com/hackfest/proctor/internal/adapters/mq/queue"
	workerpool "github.com/hackfest/proctor/internal/adapters/mq/worker"
	repository "github.com/hackfest/proctor/internal/adapters/repository"
	"github.com/hackfest/proctor/internal/aggregate"
	"github.com/hackfest/proctor/internal/domain/dedupe"
	"github.com/hackfest/proctor/internal/domain/health"
	"github.com/hackfest/proctor/internal/domain/lockdown"
	"github.com/hackfest/proctor/internal/domain/model"
	"github.com/hackfest/proctor/internal/domain/policy"
	"github.com/hackfest/proctor/internal/domain/types"
	"github.com/hackfest/proctor/internal/domain/violation"
	"github.com/hackfest/proctor/pkg/logger"
	"github.com/hackfest/proctor/pkg/metrics"
)

// Default service configuration constants.
const (
	defaultQueueSize        = 100_000
	defaultDedupeSize       = 500_000
	defaultRingSize         = 1000
	defaultFeedBudget       = 200 * time.Millisecond
	defaultHeartbeatTimeout = 60 * time.Second
	sessionSweepPeriod      = time.Second
	defaultWorkerFactor     = 2
)

// sessionState pairs a server-side lockdown mirror with its session
// metadata.
type sessionState struct {
	meta    model.Session
	machine *lockdown.Machine

	mu            sync.Mutex
	endedRecorded bool
	idleFlagged   bool
}

// cachedFeed is the last successfully computed team status snapshot for
// one hackathon.
type cachedFeed struct {
	rows []types.TeamStatus
	at   time.Time
}

// Service implements the API dependencies for the integrity monitoring
// system.
type Service struct {
	mu sync.RWMutex

	// Core components
	ledger     repository.Ledger
	aggregator *aggregate.Aggregator
	deduper    dedupe.Deduper
	queue      eventqueue.Queue
	workerPool *workerpool.Pool
	debouncer  *violation.Debouncer
	calculator *health.Calculator
	policy     policy.Policy

	// Session registry: server-side mirrors of client lockdown machines.
	sessionsMu sync.RWMutex
	sessions   map[string]*sessionState

	// Feed cache for stale-snapshot serving.
	feedMu    sync.RWMutex
	feedCache map[string]cachedFeed

	// Configuration
	workerCount      int
	queueSize        int
	dedupeSize       int
	ringSize         int
	feedBudget       time.Duration
	debounceWindow   time.Duration
	heartbeatTimeout time.Duration
	aiOveruseCutoff  float64
	pollIntervalMS   int

	// State
	started bool
	stopCh  chan struct{}

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of aggregation workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum size of the activity event queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets the size of the idempotency cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithRingSize bounds the per-hackathon recent-activity buffer.
func WithRingSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.ringSize = size
		}
	}
}

// WithPolicy sets the escalation policy shared by the ledger and all
// session mirrors.
func WithPolicy(p policy.Policy) Option {
	return func(s *Service) {
		s.policy = p
	}
}

// WithFeedBudget bounds how long a monitor read waits for a fresh
// computation before serving the cached snapshot.
func WithFeedBudget(budget time.Duration) Option {
	return func(s *Service) {
		if budget > 0 {
			s.feedBudget = budget
		}
	}
}

// WithDebounceWindow sets the identical-signal collapse window.
func WithDebounceWindow(window time.Duration) Option {
	return func(s *Service) {
		if window > 0 {
			s.debounceWindow = window
		}
	}
}

// WithHeartbeatTimeout sets the inactivity window after which a silent
// session is flagged idle by the sweep.
func WithHeartbeatTimeout(timeout time.Duration) Option {
	return func(s *Service) {
		if timeout > 0 {
			s.heartbeatTimeout = timeout
		}
	}
}

// WithAIOveruseCutoff sets the AI-usage ratio where the health penalty
// starts.
func WithAIOveruseCutoff(cutoff float64) Option {
	return func(s *Service) {
		if cutoff > 0 && cutoff < 1 {
			s.aiOveruseCutoff = cutoff
		}
	}
}

// WithPollInterval sets the polling interval suggested to dashboards.
func WithPollInterval(ms int) Option {
	return func(s *Service) {
		if ms > 0 {
			s.pollIntervalMS = ms
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:      runtime.NumCPU() * defaultWorkerFactor,
		queueSize:        defaultQueueSize,
		dedupeSize:       defaultDedupeSize,
		ringSize:         defaultRingSize,
		feedBudget:       defaultFeedBudget,
		heartbeatTimeout: defaultHeartbeatTimeout,
		aiOveruseCutoff:  0.30,
		pollIntervalMS:   3000,
		policy:           policy.New(),
		sessions:         make(map[string]*sessionState),
		feedCache:        make(map[string]cachedFeed),
		stopCh:           make(chan struct{}),
	}

	// Apply all options
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting integrity monitoring service...")

	s.ledger = repository.NewMemoryLedger(repository.WithPolicy(s.policy))
	s.aggregator = aggregate.New(aggregate.WithRingCapacity(s.ringSize))
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))
	debounceOpts := []violation.DebounceOption{}
	if s.debounceWindow > 0 {
		debounceOpts = append(debounceOpts, violation.WithWindow(s.debounceWindow))
	}
	s.debouncer = violation.NewDebouncer(debounceOpts...)
	s.calculator = health.NewCalculator(health.WithAIOveruseCutoff(s.aiOveruseCutoff))

	s.workerPool = workerpool.NewPool(s.workerCount, s.queue, s.aggregator)
	s.workerPool.Start(ctx)

	go s.sweepSessions(ctx)

	s.started = true
	s.logger.Info(ctx, "integrity monitoring service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Int("strikeThreshold", s.policy.StrikeThreshold),
	)

	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.logger.Info(context.Background(), "stopping integrity monitoring service...")

	if s.workerPool != nil {
		s.workerPool.Stop()
	}

	select {
	case <-s.stopCh:
	default:
		close(s.stopCh)
	}

	s.started = false
	s.logger.Info(context.Background(), "integrity monitoring service stopped")
}

// RegisterSession creates the server-side lockdown mirror for one
// participant. The server's endTime is the source of truth; clients
// fetch it once at lockdown entry.
func (s *Service) RegisterSession(ctx context.Context, session model.Session) error {
	if session.SessionID == "" {
		return fmt.Errorf("register session: %w", ErrInvalidSession)
	}
	if !session.EndTime.After(session.StartTime) {
		return fmt.Errorf("register session %s: %w", session.SessionID, ErrInvalidSession)
	}

	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()

	if _, exists := s.sessions[session.SessionID]; exists {
		return nil // idempotent re-entry
	}
	s.sessions[session.SessionID] = &sessionState{
		meta: session,
		machine: lockdown.NewMachine(session.SessionID, session.EndTime,
			lockdown.WithPolicy(s.policy)),
	}
	metrics.UpdateActiveSessions(s.activeSessionCountLocked())
	return nil
}

// SessionInfo returns the session metadata and current lockdown view.
func (s *Service) SessionInfo(ctx context.Context, sessionID string) (model.Session, lockdown.State, int, error) {
	state := s.sessionFor(sessionID)
	if state == nil {
		return model.Session{}, "", 0, fmt.Errorf("session %s: %w", sessionID, lockdown.ErrSessionNotFound)
	}
	return state.meta, state.machine.Tick(), state.machine.Strikes(), nil
}

// SubmitViolation ingests one reported violation. The severity is
// re-derived server-side from the violation type; client-claimed
// severity is never trusted.
//
// Late events for terminal or unknown sessions are still appended for
// audit but never affect strike counting.
func (s *Service) SubmitViolation(ctx context.Context, event model.ViolationEvent) (repository.AppendResult, error) {
	_, severity, err := violation.Classify(string(event.Type), violation.Metadata{})
	if err != nil {
		return "", fmt.Errorf("classify %q: %w", event.Type, err)
	}
	event.Severity = severity

	state := s.sessionFor(event.SessionID)
	if state != nil {
		// Fill team/participant tags from the registry so the ledger
		// rows stay attributable even when the client omits them.
		event.ParticipantID = state.meta.ParticipantID
		event.TeamID = state.meta.TeamID
		if event.HackathonID == "" {
			event.HackathonID = state.meta.HackathonID
		}
	}

	// Collapse OS-level signal churn before it reaches the ledger.
	if s.debouncer.ShouldCollapse(event.SessionID, event.Type) {
		metrics.RecordViolationDuplicate()
		return repository.Duplicate, nil
	}

	result, err := s.ledger.Append(ctx, event)
	if err != nil {
		return "", fmt.Errorf("ledger append: %w", err)
	}
	if result == repository.Duplicate {
		return result, nil
	}

	if state != nil && !state.machine.State().Terminal() {
		if counted := state.machine.RecordViolation(event.Severity); counted {
			metrics.RecordStrike()
		}
	}
	return result, nil
}

// AcknowledgeWarning resolves a session's pending warning and returns
// the resulting state. Reaching the strike threshold makes the
// acknowledgment terminal.
func (s *Service) AcknowledgeWarning(ctx context.Context, sessionID string) (lockdown.State, error) {
	state := s.sessionFor(sessionID)
	if state == nil {
		return "", fmt.Errorf("acknowledge %s: %w", sessionID, lockdown.ErrSessionNotFound)
	}

	before := state.machine.State()
	after := state.machine.Acknowledge()
	if before != lockdown.StateDisqualified && after == lockdown.StateDisqualified {
		metrics.RecordDisqualification()
		s.debouncer.Forget(sessionID)
		s.logger.Info(ctx, "session disqualified",
			logger.String("sessionID", sessionID),
			logger.Int("strikes", state.machine.Strikes()),
		)
	}
	s.refreshSessionGauge()
	return after, nil
}

// Heartbeat resets a session's inactivity watchdog. Terminal sessions
// reject heartbeats.
func (s *Service) Heartbeat(ctx context.Context, sessionID string, t time.Time) error {
	state := s.sessionFor(sessionID)
	if state == nil {
		return fmt.Errorf("heartbeat %s: %w", sessionID, lockdown.ErrSessionNotFound)
	}
	if !state.machine.Heartbeat(t) {
		return fmt.Errorf("heartbeat %s: %w", sessionID, lockdown.ErrSessionTerminal)
	}
	return nil
}

// SeenAndRecord atomically checks if an event id was seen and records it
// if not. Returns true if the event was already seen.
func (s *Service) SeenAndRecord(ctx context.Context, id string) bool {
	return s.deduper.SeenAndRecord(ctx, id)
}

// Unrecord removes an event ID from the seen list, allowing it to be retried.
func (s *Service) Unrecord(ctx context.Context, id string) {
	s.deduper.Unrecord(ctx, id)
}

// IngestActivity enqueues one activity event for asynchronous
// aggregation. Returns false on backpressure.
func (s *Service) IngestActivity(ctx context.Context, event model.ActivityEvent) bool {
	ok := s.queue.Enqueue(ctx, event)
	if ok {
		metrics.UpdateQueueSize(s.queue.Len(ctx))
	}
	return ok
}

// TeamStatuses returns one row per team for the hackathon. When the
// fresh computation exceeds the budget the last known snapshot is
// served with stale=true instead of failing the poll.
func (s *Service) TeamStatuses(ctx context.Context, hackathonID string) ([]types.TeamStatus, bool, error) {
	type computed struct {
		rows []types.TeamStatus
	}
	resultCh := make(chan computed, 1)

	go func() {
		start := time.Now()
		rows := s.computeTeamStatuses(ctx, hackathonID)
		metrics.RecordFeedComputeLatency(float64(time.Since(start).Milliseconds()))
		resultCh <- computed{rows: rows}
	}()

	select {
	case res := <-resultCh:
		s.feedMu.Lock()
		s.feedCache[hackathonID] = cachedFeed{rows: res.rows, at: time.Now()}
		s.feedMu.Unlock()
		return res.rows, false, nil
	case <-time.After(s.feedBudget):
		metrics.RecordStaleFeedServe()
		s.feedMu.RLock()
		cached := s.feedCache[hackathonID]
		s.feedMu.RUnlock()
		return cached.rows, true, nil
	case <-ctx.Done():
		return nil, false, fmt.Errorf("team statuses: %w", ctx.Err())
	}
}

// computeTeamStatuses builds the authoritative per-team rows from the
// aggregator, the ledger, and the session registry.
func (s *Service) computeTeamStatuses(ctx context.Context, hackathonID string) []types.TeamStatus {
	now := time.Now()

	// Group sessions by team so violation density is per team.
	s.sessionsMu.RLock()
	sessionsByTeam := make(map[string][]*sessionState)
	for _, state := range s.sessions {
		if hackathonID != "" && state.meta.HackathonID != hackathonID {
			continue
		}
		sessionsByTeam[state.meta.TeamID] = append(sessionsByTeam[state.meta.TeamID], state)
	}
	s.sessionsMu.RUnlock()

	teamIDs := s.aggregator.Teams(ctx, hackathonID)
	seen := make(map[string]bool, len(teamIDs))
	for _, id := range teamIDs {
		seen[id] = true
	}
	for teamID := range sessionsByTeam {
		if !seen[teamID] {
			teamIDs = append(teamIDs, teamID)
		}
	}

	rows := make([]types.TeamStatus, 0, len(teamIDs))
	for _, teamID := range teamIDs {
		snapshot, _ := s.aggregator.Snapshot(ctx, teamID)

		var (
			strikes    int
			violations int
			active     bool
			duration   time.Duration
		)
		for _, state := range sessionsByTeam[teamID] {
			if !state.machine.Tick().Terminal() {
				active = true
			}
			strikes += state.machine.Strikes()
			violations += s.ledger.CountForSession(ctx, state.meta.SessionID)
			if d := now.Sub(state.meta.StartTime); d > duration {
				duration = d
			}
		}

		rows = append(rows, types.TeamStatus{
			TeamID:          teamID,
			IsActive:        active,
			Violations:      violations,
			StrikeCount:     strikes,
			SessionDuration: duration.Seconds(),
			HealthScore:     s.calculator.Score(snapshot, strikes),
		})
	}
	return rows
}

// Activities returns the recent-activity window after cursor, filtered
// by team and type when provided.
func (s *Service) Activities(ctx context.Context, hackathonID, teamID, activityType string, cursor uint64, limit int) []types.ActivityEntry {
	return s.aggregator.Recent(ctx, hackathonID, teamID, activityType, cursor, limit)
}

// ViolationsForSession exposes the ledger's per-session history.
func (s *Service) ViolationsForSession(ctx context.Context, sessionID string, since time.Time) ([]model.ViolationEvent, error) {
	return s.ledger.ListForSession(ctx, sessionID, since)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":        s.started,
		"workerCount":    s.workerCount,
		"queueSize":      s.queueSize,
		"dedupeSize":     s.dedupeSize,
		"pollIntervalMs": s.pollIntervalMS,
	}

	if s.started {
		queueLen := s.queue.Len(ctx)
		stats["queueLength"] = queueLen
		stats["trackedTeams"] = s.aggregator.TeamCount(ctx)
		stats["trackedSessions"] = s.sessionCount()
		stats["idleSessions"] = s.idleSessionCount()

		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateWorkerCount(s.workerCount)
	}

	return stats
}

// Size returns the current number of entries in the deduper.
func (s *Service) Size() int64 {
	if s.deduper == nil {
		return 0
	}
	return s.deduper.Size()
}

// sessionFor returns the registry entry or nil.
func (s *Service) sessionFor(sessionID string) *sessionState {
	s.sessionsMu.RLock()
	defer s.sessionsMu.RUnlock()
	return s.sessions[sessionID]
}

// sessionCount returns the number of registered sessions.
func (s *Service) sessionCount() int {
	s.sessionsMu.RLock()
	defer s.sessionsMu.RUnlock()
	return len(s.sessions)
}

// activeSessionCountLocked counts non-terminal sessions. Must be called
// with sessionsMu held.
func (s *Service) activeSessionCountLocked() int {
	active := 0
	for _, state := range s.sessions {
		if !state.machine.State().Terminal() {
			active++
		}
	}
	return active
}

// refreshSessionGauge recomputes the active-session gauge.
func (s *Service) refreshSessionGauge() {
	s.sessionsMu.RLock()
	defer s.sessionsMu.RUnlock()
	metrics.UpdateActiveSessions(s.activeSessionCountLocked())
}

// sweepSessions periodically advances every session clock so sessions
// end at their deadline even without client traffic.
func (s *Service) sweepSessions(ctx context.Context) {
	ticker := time.NewTicker(sessionSweepPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.tickAllSessions(ctx)
		}
	}
}

// tickAllSessions advances clocks and records normal completions once.
func (s *Service) tickAllSessions(ctx context.Context) {
	s.sessionsMu.RLock()
	states := make([]*sessionState, 0, len(s.sessions))
	for _, state := range s.sessions {
		states = append(states, state)
	}
	s.sessionsMu.RUnlock()

	for _, state := range states {
		current := state.machine.Tick()
		if current == lockdown.StateEnded {
			state.mu.Lock()
			if !state.endedRecorded {
				state.endedRecorded = true
				metrics.RecordSessionEnded()
				s.debouncer.Forget(state.meta.SessionID)
				s.logger.Info(ctx, "session ended at deadline",
					logger.String("sessionID", state.meta.SessionID),
					logger.Int("strikes", state.machine.Strikes()),
				)
			}
			state.mu.Unlock()
		}
		if s.heartbeatTimeout <= 0 || current.Terminal() {
			continue
		}

		// Flag each silent stretch once; a heartbeat rearms the flag.
		idle := state.machine.IdleSince() > s.heartbeatTimeout
		state.mu.Lock()
		if idle && !state.idleFlagged {
			state.idleFlagged = true
			s.logger.Warn(ctx, "session silent beyond heartbeat timeout",
				logger.String("sessionID", state.meta.SessionID),
				logger.String("idle", state.machine.IdleSince().String()),
			)
		} else if !idle && state.idleFlagged {
			state.idleFlagged = false
		}
		state.mu.Unlock()
	}
	s.refreshSessionGauge()
}

// idleSessionCount counts non-terminal sessions whose last heartbeat is
// older than the configured timeout.
func (s *Service) idleSessionCount() int {
	if s.heartbeatTimeout <= 0 {
		return 0
	}
	s.sessionsMu.RLock()
	defer s.sessionsMu.RUnlock()

	idle := 0
	for _, state := range s.sessions {
		if state.machine.State().Terminal() {
			continue
		}
		if state.machine.IdleSince() > s.heartbeatTimeout {
			idle++
		}
	}
	return idle
}
