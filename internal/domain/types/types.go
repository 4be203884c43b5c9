// Package types contains common types used across the application
package types

import "time"

// TeamStatus is one row of the monitor teams feed.
type TeamStatus struct {
	TeamID          string  `json:"team_id"`
	IsActive        bool    `json:"is_active"`
	Violations      int     `json:"violations"`
	StrikeCount     int     `json:"strike_count"`
	SessionDuration float64 `json:"session_duration_seconds"`
	HealthScore     int     `json:"health_score"`
}

// ActivityEntry is one row of the monitor activities feed.
type ActivityEntry struct {
	Cursor        uint64    `json:"cursor"`
	HackathonID   string    `json:"hackathon_id"`
	TeamID        string    `json:"team_id"`
	ParticipantID string    `json:"participant_id"`
	Type          string    `json:"type"`
	Details       string    `json:"details"`
	TS            time.Time `json:"ts"`
}
