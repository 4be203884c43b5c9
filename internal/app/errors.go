package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrInvalidSession = errors.New("invalid session")
	ErrNotStarted     = errors.New("service not started")
)
