// Package model contains domain models passed between layers.
package model

import "time"

// Severity grades how strongly a violation indicates an attempt to leave
// or tamper with the proctored environment.
type Severity string

// Severity levels.
const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// ViolationType identifies the kind of environment-exit signal a client
// observed.
type ViolationType string

// Violation types.
const (
	ViolationTabSwitch          ViolationType = "tab_switch"
	ViolationFocusLoss          ViolationType = "focus_loss"
	ViolationNavigation         ViolationType = "navigation"
	ViolationBackButton         ViolationType = "back_button"
	ViolationForbiddenShortcut  ViolationType = "forbidden_shortcut"
	ViolationSuspiciousActivity ViolationType = "suspicious_activity"
)

// ViolationEvent is an immutable record of one classified violation.
// Once appended to the ledger it is never mutated; Acknowledged is the
// only annotation set afterwards.
type ViolationEvent struct {
	EventID       string        // unique id for idempotency
	SessionID     string        // proctored session the violation belongs to
	ParticipantID string        // participant that produced the signal
	TeamID        string        // team the participant belongs to
	HackathonID   string        // event scope
	Type          ViolationType // classified violation kind
	Severity      Severity      // classified severity
	TS            time.Time     // client-observed timestamp
	Acknowledged  bool          // organizer review annotation
	PendingSync   bool          // delivery exhausted retries; counted locally only
}

// ActivityType identifies a granular coding-environment event consumed by
// the aggregator.
type ActivityType string

// Activity types.
const (
	ActivityCodeChange      ActivityType = "code_change"
	ActivityFileCreated     ActivityType = "file_created"
	ActivityFileDeleted     ActivityType = "file_deleted"
	ActivityTerminalCommand ActivityType = "terminal_command"
	ActivityAIQuery         ActivityType = "ai_query"
	ActivityExecute         ActivityType = "execute"
)

// ActivityEvent is one granular activity observation tagged with its team
// and participant.
type ActivityEvent struct {
	EventID       string
	HackathonID   string
	TeamID        string
	ParticipantID string
	Type          ActivityType
	LinesDelta    int    // net line delta for code_change events
	Commit        bool   // terminal_command that recorded a commit
	Details       string // free-form detail, e.g. the command line
	TS            time.Time
}

// ActivitySnapshot is the rolling per-team aggregate. Counters are
// commutative so out-of-order delivery cannot corrupt totals.
type ActivitySnapshot struct {
	TeamID          string
	LinesOfCode     int64
	Commits         int64
	FilesCreated    int64
	AIQueryCount    int64
	TotalEventCount int64
	LastActivityAt  time.Time
}

// Session describes one proctored run of one participant inside one event.
type Session struct {
	SessionID     string
	ParticipantID string
	TeamID        string
	HackathonID   string
	StartTime     time.Time
	EndTime       time.Time // fixed, derived from the event schedule
}
