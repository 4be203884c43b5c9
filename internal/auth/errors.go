package auth

import "errors"

// Sentinel kinds for auth errors.
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrMissingToken = errors.New("missing authorization header")
)
