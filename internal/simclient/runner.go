package simclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/hackfest/proctor/internal/reporter"
	"github.com/hackfest/proctor/pkg/logger"
)

// Timing constants.
const (
	processingDelay      = 2 * time.Second
	violationSpacing     = 50 * time.Millisecond
	percentageMultiplier = 100
)

// Run executes the complete session simulation against a running
// service: register sessions, stream activity, inject violations,
// acknowledge warnings, then read back the dashboard rows.
func Run(ctx context.Context, config *Config) error {
	stats := &Stats{
		StartTime: time.Now(),
	}

	if config.Verbose {
		_ = logger.SetLevelString("debug")
	}

	logger.Get().Info(ctx, "starting session simulation",
		logger.String("baseURL", config.BaseURL),
		logger.Int("teams", config.NumTeams),
		logger.Int("sessionsPerTeam", config.SessionsPerTeam),
		logger.Int("activitiesPerSession", config.Activities),
		logger.Int("violationsPerTeam", config.Violations),
		logger.Int("workers", config.Workers))

	hackathonID := "hackathon-" + uuid.New().String()[:8]

	if err := checkServiceHealth(ctx, config); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}

	sessions, err := registerSessions(ctx, config, hackathonID, stats)
	if err != nil {
		return fmt.Errorf("session registration failed: %w", err)
	}

	if err := streamActivities(ctx, config, hackathonID, sessions, stats); err != nil {
		return fmt.Errorf("activity streaming failed: %w", err)
	}

	if err := injectViolations(ctx, config, hackathonID, sessions, stats); err != nil {
		return fmt.Errorf("violation injection failed: %w", err)
	}

	logger.Get().Info(ctx, "waiting for events to be processed")
	time.Sleep(processingDelay)

	if err := observeTeams(ctx, config, hackathonID, stats); err != nil {
		return fmt.Errorf("team observation failed: %w", err)
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(stats)

	logger.Get().Info(ctx, "simulation completed successfully")
	return nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, config *Config) error {
	logger.Get().Info(ctx, "checking service health")

	client := newHTTPClient(config.Timeout)
	resp, err := client.Get(ctx, config.BaseURL+"/healthz")
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	defer resp.Body.Close()

	// Accept any 200 response as healthy (the service returns Prometheus metrics)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("service health check failed with status: %d", resp.StatusCode)
	}

	logger.Get().Info(ctx, "service is healthy")
	return nil
}

// registerSessions creates one lockdown session per simulated
// participant and keeps the issued tokens.
func registerSessions(ctx context.Context, config *Config, hackathonID string, stats *Stats) ([]session, error) {
	client := newHTTPClient(config.Timeout)
	url := config.BaseURL + "/sessions"
	end := time.Now().Add(time.Duration(config.SessionMinutes) * time.Minute)

	sessions := make([]session, 0, config.NumTeams*config.SessionsPerTeam)
	for team := 0; team < config.NumTeams; team++ {
		teamID := "team-" + strconv.Itoa(team+1)
		for member := 0; member < config.SessionsPerTeam; member++ {
			s := session{
				SessionID:     uuid.New().String(),
				ParticipantID: teamID + "-member-" + strconv.Itoa(member+1),
				TeamID:        teamID,
			}
			body := map[string]string{
				"session_id":     s.SessionID,
				"participant_id": s.ParticipantID,
				"team_id":        s.TeamID,
				"hackathon_id":   hackathonID,
				"end_time":       end.UTC().Format(time.RFC3339),
			}
			resp, err := client.Post(ctx, url, body, "")
			if err != nil {
				return nil, fmt.Errorf("failed to register session: %w", err)
			}
			raw, err := readResponseBody(resp)
			if err != nil || resp.StatusCode != http.StatusCreated {
				return nil, fmt.Errorf("session registration returned status %d", resp.StatusCode)
			}
			var created struct {
				Token string `json:"token"`
			}
			if err := json.Unmarshal(raw, &created); err != nil {
				return nil, fmt.Errorf("failed to decode session response: %w", err)
			}
			s.Token = created.Token
			sessions = append(sessions, s)
		}
	}

	stats.SessionsRegistered = len(sessions)
	logger.Get().Info(ctx, "sessions registered", logger.Int("count", len(sessions)))
	return sessions, nil
}

// streamActivities submits activity events concurrently using a worker pool.
func streamActivities(ctx context.Context, config *Config, hackathonID string, sessions []session, stats *Stats) error {
	client := newHTTPClient(config.Timeout)
	url := config.BaseURL + "/activities"

	var (
		successful int64
		duplicate  int64
		failed     int64
		submitted  int64
	)

	type job struct {
		event activityEvent
		token string
	}
	jobChan := make(chan job, config.Workers*2)
	var wg sync.WaitGroup

	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobChan {
				select {
				case <-ctx.Done():
					return
				default:
					atomic.AddInt64(&submitted, 1)
					switch submitJSON(ctx, client, url, j.event, j.token) {
					case http.StatusAccepted:
						atomic.AddInt64(&successful, 1)
					case http.StatusOK:
						atomic.AddInt64(&duplicate, 1)
					default:
						atomic.AddInt64(&failed, 1)
					}
				}
			}
		}()
	}

	go func() {
		defer close(jobChan)
		for _, s := range sessions {
			for i := 0; i < config.Activities; i++ {
				select {
				case <-ctx.Done():
					return
				case jobChan <- job{event: generateActivity(i, s, hackathonID), token: s.Token}:
				}
			}
		}
	}()

	wg.Wait()

	stats.ActivitiesSubmitted = int(atomic.LoadInt64(&submitted))
	stats.ActivitiesSuccessful = int(atomic.LoadInt64(&successful))
	stats.ActivitiesDuplicate = int(atomic.LoadInt64(&duplicate))
	stats.ActivitiesFailed = int(atomic.LoadInt64(&failed))

	logger.Get().Info(ctx, "activity streaming completed",
		logger.Int("successful", stats.ActivitiesSuccessful),
		logger.Int("duplicate", stats.ActivitiesDuplicate),
		logger.Int("failed", stats.ActivitiesFailed))
	return nil
}

// injectViolations reports violations for the first session of each
// team through the retrying reporter, then reconciles against the
// server state and acknowledges any resulting warning. This mirrors
// what the lockdown client does during a live hackathon.
func injectViolations(ctx context.Context, config *Config, hackathonID string, sessions []session, stats *Stats) error {
	client := newHTTPClient(config.Timeout)
	acknowledgeURL := config.BaseURL + "/sessions/acknowledge"
	stateURL := config.BaseURL + "/sessions/state"

	byTeam := make(map[string]session)
	for _, s := range sessions {
		if _, ok := byTeam[s.TeamID]; !ok {
			byTeam[s.TeamID] = s
		}
	}

	for _, s := range byTeam {
		rep := reporter.New(reporter.NewHTTPTransport(config.BaseURL, s.Token))
		for i := 0; i < config.Violations; i++ {
			rep.Report(ctx, generateViolation(s, hackathonID))
			stats.ViolationsSubmitted++

			// Space reports out so the debounce window collapses only
			// genuine repeats.
			select {
			case <-ctx.Done():
				rep.Stop()
				return ctx.Err()
			case <-time.After(violationSpacing):
			}
		}

		// Flush anything stuck in pendingSync, then reconcile.
		rep.ResubmitPending(ctx)
		stats.ViolationsPending += rep.PendingCount()
		rep.Stop()

		state, err := fetchSessionState(ctx, client, stateURL, s.Token)
		if err != nil {
			logger.Get().Warn(ctx, "failed to fetch session state",
				logger.String("sessionID", s.SessionID), logger.Error(err))
			continue
		}
		stats.StrikesObserved += state.Strikes
		if state.State == "warned" {
			if resp, err := client.Post(ctx, acknowledgeURL, struct{}{}, s.Token); err == nil {
				_, _ = readResponseBody(resp)
			}
		}
	}

	logger.Get().Info(ctx, "violation injection completed",
		logger.Int("submitted", stats.ViolationsSubmitted),
		logger.Int("pending", stats.ViolationsPending),
		logger.Int("strikes", stats.StrikesObserved))
	return nil
}

// fetchSessionState reads the server's view of one session.
func fetchSessionState(ctx context.Context, client *HTTPClient, url, token string) (sessionState, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return sessionState{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := client.client.Do(req)
	if err != nil {
		return sessionState{}, fmt.Errorf("failed to fetch state: %w", err)
	}
	raw, err := readResponseBody(resp)
	if err != nil || resp.StatusCode != http.StatusOK {
		return sessionState{}, fmt.Errorf("session state returned status %d", resp.StatusCode)
	}
	var state sessionState
	if err := json.Unmarshal(raw, &state); err != nil {
		return sessionState{}, fmt.Errorf("failed to decode session state: %w", err)
	}
	return state, nil
}

// observeTeams fetches the dashboard rows and sanity-checks the shape.
func observeTeams(ctx context.Context, config *Config, hackathonID string, stats *Stats) error {
	client := newHTTPClient(config.Timeout)
	url := config.BaseURL + "/monitor/teams?hackathon_id=" + hackathonID

	resp, err := client.Get(ctx, url)
	if err != nil {
		return fmt.Errorf("failed to fetch team statuses: %w", err)
	}
	raw, err := readResponseBody(resp)
	if err != nil || resp.StatusCode != http.StatusOK {
		return fmt.Errorf("team statuses returned status %d", resp.StatusCode)
	}

	var teams teamsResponse
	if err := json.Unmarshal(raw, &teams); err != nil {
		return fmt.Errorf("failed to decode team statuses: %w", err)
	}
	stats.TeamsObserved = len(teams.Teams)

	for _, team := range teams.Teams {
		logger.Get().Info(ctx, "team status",
			logger.String("teamID", team.TeamID),
			logger.Any("active", team.IsActive),
			logger.Int("violations", team.Violations),
			logger.Int("strikes", team.StrikeCount),
			logger.Int("healthScore", team.HealthScore))
	}
	return nil
}

// submitJSON posts one payload and returns the HTTP status, or 0 on
// transport failure.
func submitJSON(ctx context.Context, client *HTTPClient, url string, body interface{}, token string) int {
	resp, err := client.Post(ctx, url, body, token)
	if err != nil {
		return 0
	}
	_, _ = readResponseBody(resp)
	return resp.StatusCode
}

// displayFinalStats prints the final simulation statistics.
func displayFinalStats(stats *Stats) {
	var successRate, eventsPerSecond float64

	if stats.ActivitiesSubmitted > 0 {
		successRate = float64(stats.ActivitiesSuccessful) / float64(stats.ActivitiesSubmitted) * percentageMultiplier
	}
	if stats.Duration > 0 {
		eventsPerSecond = float64(stats.ActivitiesSubmitted) / stats.Duration.Seconds()
	}

	logger.Get().Info(context.Background(), "final statistics",
		logger.Int("sessionsRegistered", stats.SessionsRegistered),
		logger.Int("activitiesSubmitted", stats.ActivitiesSubmitted),
		logger.Int("activitiesSuccessful", stats.ActivitiesSuccessful),
		logger.Int("activitiesDuplicate", stats.ActivitiesDuplicate),
		logger.Int("activitiesFailed", stats.ActivitiesFailed),
		logger.Int("violationsSubmitted", stats.ViolationsSubmitted),
		logger.Int("violationsPending", stats.ViolationsPending),
		logger.Int("strikesObserved", stats.StrikesObserved),
		logger.Int("teamsObserved", stats.TeamsObserved),
		logger.String("duration", stats.Duration.String()),
		logger.Float64("successRate", successRate),
		logger.Float64("eventsPerSecond", eventsPerSecond))
}
