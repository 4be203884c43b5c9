// Package repository defines the violation ledger interface and errors.
package repository

import (
	"context"
	"time"

	"github.com/hackfest/proctor/internal/domain/model"
)

// AppendResult reports the outcome of a ledger append.
type AppendResult string

// Append outcomes. Duplicate is not an error: redelivery of the same
// payload is expected under at-least-once reporting.
const (
	Accepted  AppendResult = "accepted"
	Duplicate AppendResult = "duplicate"
)

// Ledger is the server-side append-only store of violation events, keyed
// by session. No event is ever deleted; the acknowledged flag is the only
// mutation.
type Ledger interface {
	// Append inserts an event unless an identical one (same session, type
	// and second-rounded timestamp) is already present.
	Append(ctx context.Context, event model.ViolationEvent) (AppendResult, error)

	// ListForSession returns the session's events at or after since, in
	// append order. A zero since returns everything.
	ListForSession(ctx context.Context, sessionID string, since time.Time) ([]model.ViolationEvent, error)

	// CountQualifying returns how many of the session's events count
	// toward escalation.
	CountQualifying(ctx context.Context, sessionID string) int

	// CountForSession returns the total number of events for a session.
	CountForSession(ctx context.Context, sessionID string) int

	// Acknowledge marks an event as reviewed by an organizer.
	Acknowledge(ctx context.Context, sessionID, eventID string) error

	// Sessions returns the ids of all sessions with at least one event.
	Sessions(ctx context.Context) []string
}
