// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(...) initializer to build a Config with defaults.
// - External errors must be wrapped via this package's error helpers.
package config

import (
	"runtime"
)

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// TokenSecret signs session tokens. Must be overridden in production.
	TokenSecret string `koanf:"token_secret"`

	// StrikeThreshold is the number of qualifying strikes that
	// disqualifies a session.
	StrikeThreshold int `koanf:"strike_threshold"`

	// PollIntervalMS is the suggested dashboard polling interval,
	// surfaced to clients in the stats endpoint.
	PollIntervalMS int `koanf:"poll_interval_ms"`

	// AIOverusePenaltyThreshold is the AI-usage ratio above which the
	// health score penalty starts accruing.
	AIOverusePenaltyThreshold float64 `koanf:"ai_overuse_penalty_threshold"`

	// DebounceWindowMS collapses identical violation signals from one
	// session arriving within the window.
	DebounceWindowMS int `koanf:"debounce_window_ms"`

	// ActivityQueueSize bounds the in-memory activity event queue.
	ActivityQueueSize int `koanf:"activity_queue_size"`

	// WorkerCount sets the number of aggregation workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets the size of the idempotency cache.
	DedupeSize int `koanf:"dedupe_size"`

	// RecentRingSize bounds the per-hackathon recent-activity buffer.
	RecentRingSize int `koanf:"recent_ring_size"`

	// FeedBudgetMS bounds how long a monitor read may wait for a fresh
	// computation before serving the cached snapshot as stale.
	FeedBudgetMS int `koanf:"feed_budget_ms"`

	// MaxActivitiesLimit caps GET /monitor/activities?limit.
	MaxActivitiesLimit int `koanf:"max_activities_limit"`

	// HeartbeatTimeoutS is the inactivity watchdog window in seconds.
	HeartbeatTimeoutS int `koanf:"heartbeat_timeout_s"`
}

// New creates a Config populated with defaults.
func New() *Config {
	c := &Config{
		LogLevel:                  "info",
		Addr:                      ":9080",
		TokenSecret:               "dev-only-secret",
		StrikeThreshold:           3,
		PollIntervalMS:            3000,
		AIOverusePenaltyThreshold: 0.30,
		DebounceWindowMS:          500,
		ActivityQueueSize:         100_000,
		WorkerCount:               runtime.NumCPU() * 2,
		DedupeSize:                500_000,
		RecentRingSize:            1000,
		FeedBudgetMS:              200,
		MaxActivitiesLimit:        500,
		HeartbeatTimeoutS:         60,
	}
	return c
}
