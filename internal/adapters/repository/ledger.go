package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hackfest/proctor/internal/domain/model"
	"github.com/hackfest/proctor/internal/domain/policy"
	"github.com/hackfest/proctor/pkg/metrics"
)

// MemoryLedger implements Ledger with per-session logs.
//
// Concurrent appends for different sessions are independently safe; for
// the same session a per-log mutex serializes appends so two concurrently
// retried copies of one violation cannot both be counted.
type MemoryLedger struct {
	mu       sync.RWMutex
	sessions map[string]*sessionLog
	policy   policy.Policy
}

// sessionLog holds one session's append-only event slice plus lookup
// indexes. events is never truncated or reordered.
type sessionLog struct {
	mu         sync.Mutex
	events     []model.ViolationEvent
	byHash     map[string]struct{}
	byEventID  map[string]int
	qualifying int
}

// Option applies a configuration option to the MemoryLedger.
type Option func(*MemoryLedger)

// WithPolicy sets the escalation policy used for qualifying counts.
func WithPolicy(p policy.Policy) Option {
	return func(l *MemoryLedger) {
		l.policy = p
	}
}

// NewMemoryLedger creates an empty in-memory ledger with configuration options.
func NewMemoryLedger(opts ...Option) *MemoryLedger {
	l := &MemoryLedger{
		sessions: make(map[string]*sessionLog),
		policy:   policy.New(),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// idempotencyHash builds the duplicate-detection key from the event
// content. The timestamp is rounded to the second so wire-level jitter
// between retries of the same violation still collapses.
func idempotencyHash(event model.ViolationEvent) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d", event.SessionID, event.Type, event.TS.Unix())))
	return hex.EncodeToString(sum[:])
}

// Append inserts the event unless its idempotency hash was already seen.
func (l *MemoryLedger) Append(ctx context.Context, event model.ViolationEvent) (AppendResult, error) {
	start := time.Now()
	defer func() {
		metrics.RecordLedgerAppendLatency(float64(time.Since(start).Milliseconds()))
	}()

	if event.SessionID == "" {
		return "", ErrMissingSession
	}

	log := l.logFor(event.SessionID)

	log.mu.Lock()
	defer log.mu.Unlock()

	hash := idempotencyHash(event)
	if _, exists := log.byHash[hash]; exists {
		metrics.RecordViolationDuplicate()
		return Duplicate, nil
	}

	log.byHash[hash] = struct{}{}
	log.byEventID[event.EventID] = len(log.events)
	log.events = append(log.events, event)
	if l.policy.Qualifies(event.Severity) {
		log.qualifying++
	}

	metrics.RecordViolationRecorded(string(event.Type), string(event.Severity))
	return Accepted, nil
}

// logFor returns the session's log, creating it on first use.
func (l *MemoryLedger) logFor(sessionID string) *sessionLog {
	l.mu.RLock()
	log, ok := l.sessions[sessionID]
	l.mu.RUnlock()
	if ok {
		return log
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if log, ok = l.sessions[sessionID]; ok {
		return log
	}
	log = &sessionLog{
		byHash:    make(map[string]struct{}),
		byEventID: make(map[string]int),
	}
	l.sessions[sessionID] = log
	return log
}

// ListForSession returns the session's events at or after since.
func (l *MemoryLedger) ListForSession(ctx context.Context, sessionID string, since time.Time) ([]model.ViolationEvent, error) {
	l.mu.RLock()
	log, ok := l.sessions[sessionID]
	l.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("list for session %s: %w", sessionID, ErrSessionNotFound)
	}

	log.mu.Lock()
	defer log.mu.Unlock()

	out := make([]model.ViolationEvent, 0, len(log.events))
	for _, event := range log.events {
		if since.IsZero() || !event.TS.Before(since) {
			out = append(out, event)
		}
	}
	return out, nil
}

// CountQualifying returns how many of the session's events qualify for
// escalation. Unknown sessions count zero.
func (l *MemoryLedger) CountQualifying(ctx context.Context, sessionID string) int {
	l.mu.RLock()
	log, ok := l.sessions[sessionID]
	l.mu.RUnlock()
	if !ok {
		return 0
	}

	log.mu.Lock()
	defer log.mu.Unlock()
	return log.qualifying
}

// CountForSession returns the total number of events for a session.
func (l *MemoryLedger) CountForSession(ctx context.Context, sessionID string) int {
	l.mu.RLock()
	log, ok := l.sessions[sessionID]
	l.mu.RUnlock()
	if !ok {
		return 0
	}

	log.mu.Lock()
	defer log.mu.Unlock()
	return len(log.events)
}

// Acknowledge marks the event as reviewed. The acknowledged flag is the
// only mutation the ledger permits after insertion.
func (l *MemoryLedger) Acknowledge(ctx context.Context, sessionID, eventID string) error {
	l.mu.RLock()
	log, ok := l.sessions[sessionID]
	l.mu.RUnlock()
	if !ok {
		return fmt.Errorf("acknowledge %s: %w", sessionID, ErrSessionNotFound)
	}

	log.mu.Lock()
	defer log.mu.Unlock()

	idx, ok := log.byEventID[eventID]
	if !ok {
		return fmt.Errorf("acknowledge %s/%s: %w", sessionID, eventID, ErrEventNotFound)
	}
	log.events[idx].Acknowledged = true
	return nil
}

// Sessions returns the ids of all sessions with at least one event,
// sorted for deterministic iteration.
func (l *MemoryLedger) Sessions(ctx context.Context) []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ids := make([]string, 0, len(l.sessions))
	for id := range l.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
