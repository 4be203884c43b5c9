package simclient

import (
	"crypto/rand"
	"math/big"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/hackfest/proctor/internal/domain/model"
)

// Constants for random generation.
const (
	activityTypeDivisor  = 10
	violationTypeDivisor = 6
	linesDeltaRange      = 80
	commitDivisor        = 12
)

// Weighted activity distribution: editing dominates, AI queries and
// commits are occasional.
const (
	caseAIQuery         = 7
	caseTerminalCommand = 8
	caseExecute         = 9
)

var violationSignals = []string{
	"tab_switch",
	"focus_loss",
	"navigation",
	"back_button",
	"forbidden_shortcut",
	"suspicious_activity",
}

// randInt returns a random int64 in [0, n) using crypto/rand.
func randInt(n int64) int64 {
	v, _ := rand.Int(rand.Reader, big.NewInt(n))
	return v.Int64()
}

// generateActivity creates a single activity event for one session.
func generateActivity(index int, s session, hackathonID string) activityEvent {
	event := activityEvent{
		EventID:       "activity_" + strconv.Itoa(index) + "_" + uuid.New().String(),
		HackathonID:   hackathonID,
		TeamID:        s.TeamID,
		ParticipantID: s.ParticipantID,
		TS:            time.Now().UTC().Format(time.RFC3339),
	}

	switch randInt(activityTypeDivisor) {
	case caseAIQuery:
		event.Type = "ai_query"
		event.Details = "assistant prompt"
	case caseTerminalCommand:
		event.Type = "terminal_command"
		event.Details = "go test ./..."
	case caseExecute:
		event.Type = "execute"
	default:
		event.Type = "code_change"
		// Mostly additions, occasionally deletions.
		event.LinesDelta = int(randInt(linesDeltaRange)) - linesDeltaRange/8
		event.Commit = randInt(commitDivisor) == 0
	}
	return event
}

// generateViolation creates a single violation report for one session.
func generateViolation(s session, hackathonID string) model.ViolationEvent {
	signal := violationSignals[randInt(violationTypeDivisor)]
	return model.ViolationEvent{
		EventID:     "violation_" + uuid.New().String(),
		SessionID:   s.SessionID,
		HackathonID: hackathonID,
		Type:        model.ViolationType(signal),
		TS:          time.Now().UTC(),
	}
}
