// Package reporter delivers classified violations from a session to the
// server without ever blocking the lockdown UI.
//
// Delivery is at-least-once: the server ledger is idempotent on the
// event content, so a retried copy landing twice is harmless. A locally
// counted strike never depends on delivery succeeding (fail-open in
// favor of stricter enforcement).
package reporter

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hackfest/proctor/internal/domain/model"
	"github.com/hackfest/proctor/pkg/logger"
)

// Default reporter configuration constants.
const (
	defaultMaxAttempts = 5
	defaultBaseBackoff = 200 * time.Millisecond
	defaultMaxBackoff  = 10 * time.Second
)

// Transport delivers one violation event to the server.
type Transport interface {
	Deliver(ctx context.Context, event model.ViolationEvent) error
}

// Reporter queues violations for asynchronous delivery with bounded
// exponential-backoff retries. After exhaustion the event is marked
// pendingSync and held until the next successful heartbeat resubmits it.
type Reporter struct {
	transport   Transport
	maxAttempts int
	baseBackoff time.Duration
	maxBackoff  time.Duration

	mu      sync.Mutex
	pending []model.ViolationEvent

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup

	logger logger.Logger
}

// Option applies a configuration option to the Reporter.
type Option func(*Reporter)

// WithMaxAttempts bounds the retries per event.
func WithMaxAttempts(attempts int) Option {
	return func(r *Reporter) {
		if attempts > 0 {
			r.maxAttempts = attempts
		}
	}
}

// WithBackoff sets the base and maximum backoff delays.
func WithBackoff(base, maxBackoff time.Duration) Option {
	return func(r *Reporter) {
		if base > 0 && maxBackoff >= base {
			r.baseBackoff = base
			r.maxBackoff = maxBackoff
		}
	}
}

// WithLogger sets a custom logger for the reporter.
func WithLogger(l logger.Logger) Option {
	return func(r *Reporter) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates a reporter with configuration options.
func New(transport Transport, opts ...Option) *Reporter {
	r := &Reporter{
		transport:   transport,
		maxAttempts: defaultMaxAttempts,
		baseBackoff: defaultBaseBackoff,
		maxBackoff:  defaultMaxBackoff,
		stopCh:      make(chan struct{}),
		logger:      logger.Get().Named("reporter"),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Report submits the event for asynchronous delivery and returns
// immediately. Nothing is surfaced to the participant on failure.
func (r *Reporter) Report(ctx context.Context, event model.ViolationEvent) {
	select {
	case <-r.stopCh:
		return
	default:
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.deliverWithRetry(ctx, event)
	}()
}

// deliverWithRetry attempts delivery with exponential backoff. The loop
// is abandoned when Stop is called (session reached a terminal state).
func (r *Reporter) deliverWithRetry(ctx context.Context, event model.ViolationEvent) {
	backoff := r.baseBackoff
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		err := r.transport.Deliver(ctx, event)
		if err == nil {
			return
		}
		if errors.Is(err, ErrPermanent) {
			r.logger.Warn(ctx, "violation rejected by server, not retrying",
				logger.String("eventID", event.EventID),
				logger.Error(err),
			)
			return
		}
		if attempt == r.maxAttempts {
			break
		}

		select {
		case <-time.After(backoff):
		case <-r.stopCh:
			return
		case <-ctx.Done():
			return
		}
		backoff *= 2
		if backoff > r.maxBackoff {
			backoff = r.maxBackoff
		}
	}

	// Retries exhausted: the local strike already counted; hold the
	// event for reconciliation on the next successful heartbeat.
	event.PendingSync = true
	r.mu.Lock()
	r.pending = append(r.pending, event)
	r.mu.Unlock()

	r.logger.Warn(ctx, "violation delivery exhausted retries, pending sync",
		logger.String("eventID", event.EventID),
		logger.String("sessionID", event.SessionID),
	)
}

// ResubmitPending redelivers the pending queue, one attempt per event.
// Called after a successful heartbeat. Events that fail again stay
// pending.
func (r *Reporter) ResubmitPending(ctx context.Context) {
	r.mu.Lock()
	queued := r.pending
	r.pending = nil
	r.mu.Unlock()

	var stillPending []model.ViolationEvent
	for _, event := range queued {
		if err := r.transport.Deliver(ctx, event); err != nil && !errors.Is(err, ErrPermanent) {
			stillPending = append(stillPending, event)
		}
	}

	if len(stillPending) > 0 {
		r.mu.Lock()
		r.pending = append(stillPending, r.pending...)
		r.mu.Unlock()
	}
}

// PendingCount returns the number of events awaiting reconciliation.
func (r *Reporter) PendingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Stop abandons all in-flight backoff loops and waits for their
// goroutines to exit.
func (r *Reporter) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopCh)
	})
	r.wg.Wait()
}
