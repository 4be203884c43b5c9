package simclient

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/hackfest/proctor/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0600
)

// SetupLogging configures logging to both console and file.
// If logFile is empty, a timestamped filename is generated.
func SetupLogging(logFile string) error {
	// Initialize the logger first
	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if logFile == "" {
		timestamp := time.Now().Format("20060102_150405")
		logFile = "sim_log_" + timestamp + ".log"
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	multiWriter := io.MultiWriter(os.Stdout, file)
	log.SetOutput(multiWriter)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	logger.Get().Info(context.Background(), "logging to file", logger.String("logFile", logFile))
	return nil
}

// ShowHelp prints usage information for the session simulator.
func ShowHelp() {
	os.Stdout.WriteString(`Proctor Session Simulator
=========================

A concurrent tool for exercising the integrity monitoring service with
realistic hackathon traffic: lockdown sessions, activity streams,
violation reports, and dashboard reads.

Usage:
  go run cmd/session-sim/main.go [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -teams int
        Number of teams to simulate (default 10)
  -sessions int
        Number of participant sessions per team (default 3)
  -activities int
        Number of activity events per session (default 200)
  -violations int
        Number of violations to inject per team (default 4)
  -minutes int
        Session length in minutes (default 60)
  -workers int
        Number of concurrent workers (default CPU cores * 2)
  -timeout duration
        HTTP request timeout (default 30s)
  -log string
        Log file for simulation output (default: sim_log_TIMESTAMP.log)
  -verbose
        Enable verbose logging
  -help
        Show this help message

Examples:
  # Simulate with default settings
  go run cmd/session-sim/main.go

  # Large hackathon with heavier activity
  go run cmd/session-sim/main.go -teams 50 -sessions 4 -activities 1000

  # Escalation-focused run: enough violations to disqualify
  go run cmd/session-sim/main.go -teams 5 -violations 8
`)
}
