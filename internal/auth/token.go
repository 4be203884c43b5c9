// Package auth issues and validates session tokens.
//
// A token is minted when a participant enters lockdown and must
// accompany every session-scoped call: heartbeats, acknowledgments,
// violation reports, and activity events.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Default token configuration constants.
const (
	defaultTokenTTL = 24 * time.Hour
)

// Claims holds session token claims.
type Claims struct {
	SessionID     string `json:"session_id"`
	ParticipantID string `json:"participant_id"`
	HackathonID   string `json:"hackathon_id"`
	jwt.RegisteredClaims
}

// TokenService handles session token generation and validation.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// Option applies a configuration option to the TokenService.
type Option func(*TokenService)

// WithTTL overrides the token lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(s *TokenService) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// NewTokenService creates a token service for the given signing secret.
func NewTokenService(secret string, opts ...Option) *TokenService {
	s := &TokenService{
		secret: []byte(secret),
		ttl:    defaultTokenTTL,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Generate mints a token bound to one session.
func (s *TokenService) Generate(sessionID, participantID, hackathonID string) (string, error) {
	now := time.Now()
	claims := Claims{
		SessionID:     sessionID,
		ParticipantID: participantID,
		HackathonID:   hackathonID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.New().String(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", ErrInvalidToken
	}
	return signed, nil
}

// Validate parses and validates a token, returning its claims.
func (s *TokenService) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
