package lockdown

import "errors"

// Sentinel kinds for lockdown errors.
var (
	ErrSessionTerminal = errors.New("session is in a terminal state")
	ErrSessionNotFound = errors.New("session not found")
)
