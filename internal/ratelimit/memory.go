package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter is an in-process sliding-window limiter: per identity it
// keeps the timestamps of requests inside the window. Suitable for
// single-instance deployments; it never returns an error.
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string][]time.Time
	limit   int
	window  time.Duration
}

// NewMemoryLimiter creates a limiter: max `limit` requests per `window` per
// identity. Idle identities are pruned every minute.
func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	l := &MemoryLimiter{
		windows: make(map[string][]time.Time),
		limit:   limit,
		window:  window,
	}
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			l.cleanup()
		}
	}()
	return l
}

func (l *MemoryLimiter) Admit(_ context.Context, identity string) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-l.window)

	times := l.windows[identity]
	kept := times[:0]
	for _, t := range times {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	if len(kept) >= l.limit {
		l.windows[identity] = kept
		return Decision{Allowed: false, Remaining: 0, ResetAt: kept[0].Add(l.window)}, nil
	}

	kept = append(kept, now)
	l.windows[identity] = kept
	return Decision{
		Allowed:   true,
		Remaining: l.limit - len(kept),
		ResetAt:   kept[0].Add(l.window),
	}, nil
}

func (l *MemoryLimiter) cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := time.Now().Add(-l.window)
	for id, times := range l.windows {
		if len(times) == 0 || !times[len(times)-1].After(cutoff) {
			delete(l.windows, id)
		}
	}
}
