// Package dedupe defines the interface for idempotency tracking.
package dedupe

import (
	"context"
	"sync"
	"sync/atomic"
)

// Deduper records seen event IDs to ensure at-most-once processing.
type Deduper interface {
	// SeenAndRecord atomically checks if id was seen and records it if not.
	// Returns true if id was already seen, false if it was newly recorded.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord removes an ID from the seen list, allowing it to be retried.
	// Used when an event was marked as seen but failed to be processed
	// (e.g., queue backpressure).
	Unrecord(ctx context.Context, id string)

	Size() int64
}

// Default deduper configuration constants.
const (
	defaultMaxSize = 50_000
)

// inMemoryDeduper implements Deduper with a map plus a FIFO ring of ids
// for bounded eviction. maxSize <= 0 disables eviction entirely.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]struct{}
	order   []string // insertion order, oldest at evictAt
	evictAt int
	maxSize int
	size    atomic.Int64
}

// Option applies a configuration option to the inMemoryDeduper.
type Option func(*inMemoryDeduper)

// WithMaxSize sets the maximum number of IDs to keep in memory.
// maxSize > 0 enables bounded mode with FIFO eviction; maxSize <= 0
// keeps everything.
func WithMaxSize(maxSize int) Option {
	return func(d *inMemoryDeduper) {
		d.maxSize = maxSize
	}
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: defaultMaxSize,
	}

	for _, opt := range opts {
		opt(d)
	}

	d.seen = make(map[string]struct{})
	if d.maxSize > 0 {
		d.order = make([]string, 0, d.maxSize)
	}

	return d
}

// SeenAndRecord atomically checks if id was seen and records it if not.
func (d *inMemoryDeduper) SeenAndRecord(ctx context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.seen[id]; exists {
		return true
	}

	if d.maxSize > 0 && len(d.seen) >= d.maxSize {
		d.evictOldestLocked()
	}

	d.seen[id] = struct{}{}
	if d.maxSize > 0 {
		d.order = append(d.order, id)
	}
	d.size.Add(1)
	return false
}

// Unrecord removes an ID from the seen list, allowing it to be retried.
// The ring slot is left in place; eviction skips ids that are no longer
// in the map.
func (d *inMemoryDeduper) Unrecord(ctx context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.seen[id]; !exists {
		return
	}
	delete(d.seen, id)
	d.size.Add(-1)
}

// evictOldestLocked drops the oldest id still present in the map.
// Must be called with d.mu held.
func (d *inMemoryDeduper) evictOldestLocked() {
	for d.evictAt < len(d.order) {
		id := d.order[d.evictAt]
		d.evictAt++
		if _, exists := d.seen[id]; exists {
			delete(d.seen, id)
			d.size.Add(-1)
			break
		}
	}
	// Compact once the consumed prefix dominates the slice.
	if d.evictAt > len(d.order)/2 && d.evictAt > 0 {
		d.order = append(d.order[:0], d.order[d.evictAt:]...)
		d.evictAt = 0
	}
}

// Size returns the current number of entries in the deduper.
func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}
