// Package ratelimit provides per-source-address admission control.
package ratelimit

import (
	"sync"
	"time"
)

type window struct {
	start time.Time
	count int
}

// Limiter admits a fixed quota of actions per window per source address.
// Windows rotate lazily: a window is reset the first time it is observed
// to have expired, so no background timer is needed.
type Limiter struct {
	mu      sync.Mutex
	windows map[string]*window
	limit   int
	period  time.Duration
	now     func() time.Time
}

func New(limit int, period time.Duration) *Limiter {
	return &Limiter{
		windows: make(map[string]*window),
		limit:   limit,
		period:  period,
		now:     time.Now,
	}
}

// Admit reports whether another action from addr fits the quota. On false
// the caller must reject the triggering action without mutating any other
// state.
func (l *Limiter) Admit(addr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[addr]
	if !ok || now.Sub(w.start) >= l.period {
		l.windows[addr] = &window{start: now, count: 1}
		return true
	}
	if w.count >= l.limit {
		return false
	}
	w.count++
	return true
}
