package reporter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hackfest/proctor/internal/domain/model"
)

// Default transport configuration constants.
const (
	defaultRequestTimeout = 5 * time.Second
)

// HTTPTransport delivers violations to the server's POST /violations
// endpoint with the session's bearer token.
type HTTPTransport struct {
	client  *http.Client
	baseURL string
	token   string
}

// TransportOption applies a configuration option to the HTTPTransport.
type TransportOption func(*HTTPTransport)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) TransportOption {
	return func(t *HTTPTransport) {
		if client != nil {
			t.client = client
		}
	}
}

// NewHTTPTransport creates a transport for the given server and session
// token.
func NewHTTPTransport(baseURL, token string, opts ...TransportOption) *HTTPTransport {
	t := &HTTPTransport{
		client:  &http.Client{Timeout: defaultRequestTimeout},
		baseURL: baseURL,
		token:   token,
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// violationRequest mirrors the POST /violations wire schema.
type violationRequest struct {
	EventID     string `json:"event_id"`
	SessionID   string `json:"session_id"`
	HackathonID string `json:"hackathon_id"`
	Type        string `json:"violation_type"`
	TS          string `json:"ts"`
}

// Deliver posts one violation. A 4xx response is permanent; everything
// else that is not 2xx is transient and retried by the caller.
func (t *HTTPTransport) Deliver(ctx context.Context, event model.ViolationEvent) error {
	payload, err := json.Marshal(violationRequest{
		EventID:     event.EventID,
		SessionID:   event.SessionID,
		HackathonID: event.HackathonID,
		Type:        string(event.Type),
		TS:          event.TS.Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("marshal violation: %w", ErrPermanent)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/violations", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", ErrPermanent)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.token)

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("post violation: %w", ErrDeliveryFailed)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return fmt.Errorf("server rejected violation with %d: %w", resp.StatusCode, ErrPermanent)
	default:
		return fmt.Errorf("server returned %d: %w", resp.StatusCode, ErrDeliveryFailed)
	}
}
