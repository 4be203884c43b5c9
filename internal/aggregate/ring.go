package aggregate

import (
	"sync"

	"github.com/hackfest/proctor/internal/domain/types"
)

// Ring is a bounded buffer of recent activity entries with a
// monotonically increasing sequence cursor.
//
// Cursor-based reads mean a poller under concurrent writes can neither
// skip nor duplicate a page boundary: every entry has exactly one
// sequence number and reads are "strictly after cursor".
type Ring struct {
	mu   sync.RWMutex
	buf  []types.ActivityEntry
	next uint64 // next sequence number to assign; sequences start at 1
}

// NewRing creates a ring holding at most capacity entries.
func NewRing(capacity int) *Ring {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring{
		buf:  make([]types.ActivityEntry, capacity),
		next: 1,
	}
}

// Append stores the entry and returns its assigned cursor.
func (r *Ring) Append(entry types.ActivityEntry) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	seq := r.next
	r.next++
	entry.Cursor = seq
	r.buf[seq%uint64(len(r.buf))] = entry
	return seq
}

// Since returns up to limit entries with a cursor strictly greater than
// cursor, oldest first. Entries already evicted from the ring are simply
// absent; the historical ledger is the unbounded record.
func (r *Ring) Since(cursor uint64, limit int) []types.ActivityEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	newest := r.next - 1
	if newest == 0 || cursor >= newest {
		return nil
	}

	oldest := uint64(1)
	if size := uint64(len(r.buf)); r.next > size {
		oldest = r.next - size
	}
	start := cursor + 1
	if start < oldest {
		start = oldest
	}

	if limit <= 0 {
		limit = int(newest - start + 1)
	}

	out := make([]types.ActivityEntry, 0, limit)
	for seq := start; seq <= newest && len(out) < limit; seq++ {
		out = append(out, r.buf[seq%uint64(len(r.buf))])
	}
	return out
}

// Newest returns the highest assigned cursor, zero when empty.
func (r *Ring) Newest() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.next - 1
}
