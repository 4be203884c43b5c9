package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/hackfest/proctor/internal/simclient"
)

// Default configuration constants.
const (
	defaultTeams           = 10
	defaultSessionsPerTeam = 3
	defaultActivities      = 200
	defaultViolations      = 4
	defaultSessionMinutes  = 60
	defaultWorkers         = 2 // multiplier for runtime.NumCPU()
	defaultTimeout         = 30 * time.Second
	defaultSimTimeout      = 10 * time.Minute
)

func main() {
	var (
		baseURL    = flag.String("url", "http://localhost:9080", "Base URL of the service")
		teams      = flag.Int("teams", defaultTeams, "Number of teams to simulate")
		sessions   = flag.Int("sessions", defaultSessionsPerTeam, "Number of participant sessions per team")
		activities = flag.Int("activities", defaultActivities, "Number of activity events per session")
		violations = flag.Int("violations", defaultViolations, "Number of violations to inject per team")
		minutes    = flag.Int("minutes", defaultSessionMinutes, "Session length in minutes")
		workers    = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent workers")
		timeout    = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		logFile    = flag.String("log", "", "Log file for simulation output (default: sim_log_TIMESTAMP.log)")
		verbose    = flag.Bool("verbose", false, "Enable verbose logging")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		simclient.ShowHelp()
		return
	}

	// Setup logging
	if err := simclient.SetupLogging(*logFile); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		return
	}

	// Create context with timeout
	ctx, cancel := context.WithTimeout(context.Background(), defaultSimTimeout)
	defer cancel()

	// Create simulation configuration
	config := &simclient.Config{
		BaseURL:         *baseURL,
		NumTeams:        *teams,
		SessionsPerTeam: *sessions,
		Activities:      *activities,
		Violations:      *violations,
		SessionMinutes:  *minutes,
		Workers:         *workers,
		Timeout:         *timeout,
		LogFile:         *logFile,
		Verbose:         *verbose,
	}

	// Run the simulation
	if err := simclient.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Simulation failed: " + err.Error() + "\n")
		return
	}
}
