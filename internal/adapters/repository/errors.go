package repository

import "errors"

// Sentinel kinds for ledger errors.
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrEventNotFound   = errors.New("event not found")
	ErrMissingSession  = errors.New("event has no session id")
)
