// Package lockdown implements the per-session proctoring state machine.
//
// One Machine tracks one participant's run: it counts qualifying strikes,
// gates the warning overlay, and decides when a session is disqualified
// or ends normally. There is no cross-session locking; correctness of
// disqualification depends only on a session's own event history.
package lockdown

import (
	"sync"
	"time"

	"github.com/hackfest/proctor/internal/domain/model"
	"github.com/hackfest/proctor/internal/domain/policy"
)

// State is the lockdown session state.
type State string

// Session states. Disqualified and Ended are terminal.
const (
	StateActive       State = "active"
	StateWarned       State = "warned"
	StateDisqualified State = "disqualified"
	StateEnded        State = "ended"
)

// Terminal reports whether s accepts no further transitions.
func (s State) Terminal() bool {
	return s == StateDisqualified || s == StateEnded
}

// Machine enforces the proctoring contract for a single session.
//
// The countdown is computed purely from endTime - now and is never paused
// by a violation: only the warning overlay blocks interaction, not time.
type Machine struct {
	mu sync.Mutex

	sessionID string
	endTime   time.Time
	clock     func() time.Time
	policy    policy.Policy

	state         State
	strikes       int
	lastHeartbeat time.Time
}

// Option applies a configuration option to the Machine.
type Option func(*Machine)

// WithClock sets the time source, used by tests.
func WithClock(clock func() time.Time) Option {
	return func(m *Machine) {
		if clock != nil {
			m.clock = clock
		}
	}
}

// WithPolicy sets the escalation policy.
func WithPolicy(p policy.Policy) Option {
	return func(m *Machine) {
		m.policy = p
	}
}

// NewMachine creates a lockdown machine for one session. endTime is fixed
// at lockdown entry; the server copy is the source of truth and is never
// re-trusted from local storage.
func NewMachine(sessionID string, endTime time.Time, opts ...Option) *Machine {
	m := &Machine{
		sessionID: sessionID,
		endTime:   endTime,
		clock:     time.Now,
		policy:    policy.New(),
		state:     StateActive,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.lastHeartbeat = m.clock()
	return m
}

// SessionID returns the session this machine belongs to.
func (m *Machine) SessionID() string {
	return m.sessionID
}

// EndTime returns the fixed session deadline.
func (m *Machine) EndTime() time.Time {
	return m.endTime
}

// RecordViolation applies a classified violation. It returns true when
// the violation qualified and incremented the strike counter.
//
// Any severity moves an Active session to Warned; low severity is logged
// but never counted. Two qualifying violations within the same tick both
// increment the counter. Violations against a terminal session are
// ignored for counting (they may still be appended to the ledger for
// audit by the caller).
func (m *Machine) RecordViolation(severity model.Severity) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	// The clock always wins: an expired session ends before the
	// violation is considered.
	m.advanceClockLocked()

	if m.state.Terminal() {
		return false
	}

	counted := false
	if m.policy.Qualifies(severity) && m.strikes < m.policy.StrikeThreshold {
		m.strikes++
		counted = true
	}
	m.state = StateWarned
	return counted
}

// Acknowledge resolves a pending warning. It returns the resulting state:
// Active when strikes remain below the threshold, Disqualified once the
// threshold has been reached (terminal, not reversible). Acknowledging in
// any other state is a no-op.
func (m *Machine) Acknowledge() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.advanceClockLocked()

	if m.state != StateWarned {
		return m.state
	}
	if m.strikes >= m.policy.StrikeThreshold {
		m.state = StateDisqualified
	} else {
		m.state = StateActive
	}
	return m.state
}

// Heartbeat resets the inactivity watchdog. Terminal states reject
// heartbeats.
func (m *Machine) Heartbeat(t time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.advanceClockLocked()

	if m.state.Terminal() {
		return false
	}
	if t.After(m.lastHeartbeat) {
		m.lastHeartbeat = t
	}
	return true
}

// IdleSince returns the time elapsed since the last heartbeat.
func (m *Machine) IdleSince() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clock().Sub(m.lastHeartbeat)
}

// Remaining returns the time left on the session clock. Violations never
// extend or pause it.
func (m *Machine) Remaining() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	remaining := m.endTime.Sub(m.clock())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Tick advances the session clock, transitioning Active|Warned to Ended
// once endTime has passed. It returns the current state.
func (m *Machine) Tick() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.advanceClockLocked()
	return m.state
}

// State returns the current state without advancing the clock.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Strikes returns the current qualifying strike count. It is
// monotonically non-decreasing for the life of the session.
func (m *Machine) Strikes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.strikes
}

// advanceClockLocked moves a non-terminal session to Ended once the
// deadline has passed. Must be called with m.mu held.
func (m *Machine) advanceClockLocked() {
	if m.state.Terminal() {
		return
	}
	if !m.clock().Before(m.endTime) {
		m.state = StateEnded
	}
}
