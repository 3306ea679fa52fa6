package authapi

import (
	"sync"
	"time"
)

// maxLimiterKeys bounds memory when many distinct clients hit the endpoint.
const maxLimiterKeys = 10000

// loginLimiter is a per-key sliding-window limiter for credential checks.
// A nil limiter allows everything.
type loginLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	now     func() time.Time
	windows map[string][]time.Time
}

func newLoginLimiter(limit int, window time.Duration, now func() time.Time) *loginLimiter {
	if limit <= 0 || window <= 0 {
		return nil
	}
	if now == nil {
		now = time.Now
	}
	return &loginLimiter{
		limit:   limit,
		window:  window,
		now:     now,
		windows: make(map[string][]time.Time),
	}
}

// allow records an attempt for key and reports whether it is within budget.
// When denied it also returns how long until the oldest attempt expires.
func (l *loginLimiter) allow(key string) (bool, time.Duration) {
	if l == nil {
		return true, 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cut := now.Add(-l.window)

	events := prune(l.windows[key], cut)
	if len(events) >= l.limit {
		l.windows[key] = events
		return false, events[0].Sub(cut)
	}

	if _, seen := l.windows[key]; !seen && len(l.windows) >= maxLimiterKeys {
		l.sweep(cut)
	}
	l.windows[key] = append(events, now)
	return true, 0
}

// sweep drops keys with no attempts inside the window. Caller holds mu.
func (l *loginLimiter) sweep(cut time.Time) {
	for k, events := range l.windows {
		if events = prune(events, cut); len(events) == 0 {
			delete(l.windows, k)
		} else {
			l.windows[k] = events
		}
	}
}

func prune(events []time.Time, cut time.Time) []time.Time {
	dst := events[:0]
	for _, t := range events {
		if t.After(cut) {
			dst = append(dst, t)
		}
	}
	return dst
}
