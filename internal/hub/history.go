package hub

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/synclab/synchub/internal/domain"
)

// Entry is an accepted event retained for replay. Frame is the exact wire
// frame that was broadcast, so late joiners see what members saw.
type Entry struct {
	Seq   uint64
	TS    time.Time
	Kind  domain.EventKind
	Frame json.RawMessage
}

// History is a bounded, time-ordered log of a room's recent events.
// Append and Replay share one mutex so a replay never observes an entry
// without its sequence number or a half-applied eviction.
type History struct {
	mu      sync.Mutex
	entries []Entry
	max     int
	maxAge  time.Duration
	now     func() time.Time
}

func NewHistory(max int, maxAge time.Duration) *History {
	return &History{max: max, maxAge: maxAge, now: time.Now}
}

func (h *History) Append(e Entry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, e)
	h.evict()
}

// Replay returns the retained entries oldest-first.
func (h *History) Replay() []Entry {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.evict()
	out := make([]Entry, len(h.entries))
	copy(out, h.entries)
	return out
}

func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// evict drops the oldest entries until both bounds hold. Caller holds mu.
func (h *History) evict() {
	if h.max > 0 && len(h.entries) > h.max {
		h.entries = h.entries[len(h.entries)-h.max:]
	}
	if h.maxAge <= 0 {
		return
	}
	cutoff := h.now().Add(-h.maxAge)
	i := 0
	for i < len(h.entries) && h.entries[i].TS.Before(cutoff) {
		i++
	}
	if i > 0 {
		h.entries = h.entries[i:]
	}
}
