package violation

import (
	"sync"
	"time"

	"github.com/hackfest/proctor/internal/domain/model"
)

// Default debouncer configuration constants.
const (
	defaultDebounceWindow = 500 * time.Millisecond
)

// DebounceOption applies a configuration option to the Debouncer.
type DebounceOption func(*Debouncer)

// WithWindow sets the collapse window for identical signals.
func WithWindow(window time.Duration) DebounceOption {
	return func(d *Debouncer) {
		if window > 0 {
			d.window = window
		}
	}
}

// WithClock sets the time source, used by tests.
func WithClock(clock func() time.Time) DebounceOption {
	return func(d *Debouncer) {
		if clock != nil {
			d.clock = clock
		}
	}
}

// Debouncer collapses duplicate identical signals from one session within
// a short window (e.g. two focus_loss events from a single OS focus
// churn). Distinct types within the same tick are never collapsed.
type Debouncer struct {
	mu     sync.Mutex
	window time.Duration
	clock  func() time.Time
	last   map[debounceKey]time.Time
}

type debounceKey struct {
	sessionID     string
	violationType model.ViolationType
}

// NewDebouncer creates a debouncer with configuration options.
func NewDebouncer(opts ...DebounceOption) *Debouncer {
	d := &Debouncer{
		window: defaultDebounceWindow,
		clock:  time.Now,
		last:   make(map[debounceKey]time.Time),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// ShouldCollapse reports whether a signal of the given type for the given
// session arrived within the window of the previous identical one. The
// observation is recorded either way, so a burst collapses to its first
// signal only.
func (d *Debouncer) ShouldCollapse(sessionID string, violationType model.ViolationType) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.clock()
	key := debounceKey{sessionID: sessionID, violationType: violationType}
	if prev, ok := d.last[key]; ok && now.Sub(prev) < d.window {
		return true
	}
	d.last[key] = now
	return false
}

// Forget drops all recorded observations for a session. Called when the
// session reaches a terminal state.
func (d *Debouncer) Forget(sessionID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for key := range d.last {
		if key.sessionID == sessionID {
			delete(d.last, key)
		}
	}
}
