package simclient

import "time"

// Config holds configuration for the session simulation.
type Config struct {
	BaseURL         string        // Base URL of the service
	NumTeams        int           // Number of teams to simulate
	SessionsPerTeam int           // Number of participant sessions per team
	Activities      int           // Number of activity events per session
	Violations      int           // Number of violations to inject per team
	SessionMinutes  int           // Session length in minutes
	Workers         int           // Number of concurrent workers
	Timeout         time.Duration // HTTP request timeout
	LogFile         string        // Log file for simulation output
	Verbose         bool          // Enable verbose logging
}

// session tracks one registered lockdown session and its token.
type session struct {
	SessionID     string
	ParticipantID string
	TeamID        string
	Token         string
}

// activityEvent mirrors the wire schema for POST /activities.
type activityEvent struct {
	EventID       string `json:"event_id"`
	HackathonID   string `json:"hackathon_id"`
	TeamID        string `json:"team_id"`
	ParticipantID string `json:"participant_id"`
	Type          string `json:"type"`
	LinesDelta    int    `json:"lines_delta"`
	Commit        bool   `json:"commit"`
	Details       string `json:"details"`
	TS            string `json:"ts"`
}

// sessionState mirrors the GET /sessions/state payload.
type sessionState struct {
	SessionID string `json:"session_id"`
	State     string `json:"state"`
	Strikes   int    `json:"strikes"`
	EndTime   string `json:"end_time"`
}

// TeamStatus mirrors one row of GET /monitor/teams.
type TeamStatus struct {
	TeamID          string  `json:"team_id"`
	IsActive        bool    `json:"is_active"`
	Violations      int     `json:"violations"`
	StrikeCount     int     `json:"strike_count"`
	SessionDuration float64 `json:"session_duration_seconds"`
	HealthScore     int     `json:"health_score"`
}

// teamsResponse mirrors the GET /monitor/teams payload.
type teamsResponse struct {
	Stale bool         `json:"stale"`
	Teams []TeamStatus `json:"teams"`
}

// Stats holds simulation statistics.
type Stats struct {
	SessionsRegistered   int
	ActivitiesSubmitted  int
	ActivitiesSuccessful int
	ActivitiesDuplicate  int
	ActivitiesFailed     int
	ViolationsSubmitted  int
	ViolationsPending    int
	StrikesObserved      int
	TeamsObserved        int
	StartTime            time.Time
	EndTime              time.Time
	Duration             time.Duration
}
