package security

import (
	"sync"
	"time"

	"github.com/username/hartafolio/backend/src/logger"
)

// Clock supplies the current time. Injected so the sliding window can be
// driven deterministically in tests.
type Clock func() time.Time

// RateLimiter admits at most `limit` calls per identity within a trailing
// window. State is a per-identity list of admission timestamps; a background
// sweep drops identities whose window has fully drained so the map stays
// bounded.
type RateLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	now     Clock
	buckets map[string][]time.Time

	violations int64

	stop     chan struct{}
	stopOnce sync.Once
}

func NewRateLimiter(limit int, window time.Duration, now Clock) *RateLimiter {
	if now == nil {
		now = time.Now
	}
	l := &RateLimiter{
		limit:   limit,
		window:  window,
		now:     now,
		buckets: make(map[string][]time.Time),
		stop:    make(chan struct{}),
	}
	go l.sweepLoop()
	return l
}

// Admit reports whether a call from the given identity is allowed right now.
// Accepted calls count against the identity's window; rejected calls do not.
func (l *RateLimiter) Admit(identity string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	window := l.buckets[identity][:0]
	for _, t := range l.buckets[identity] {
		if t.After(cutoff) {
			window = append(window, t)
		}
	}

	if len(window) >= l.limit {
		l.buckets[identity] = window
		l.violations++
		if logger.L != nil {
			logger.L.Warn("Rate limit violation",
				"identity", identity,
				"admissionsInWindow", len(window),
				"limit", l.limit)
		}
		return false
	}

	l.buckets[identity] = append(window, now)
	return true
}

// Violations returns how many admissions have been rejected so far.
func (l *RateLimiter) Violations() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.violations
}

// Stop ends the background sweep. Safe to call more than once.
func (l *RateLimiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

func (l *RateLimiter) sweepLoop() {
	ticker := time.NewTicker(l.window)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.sweep()
		case <-l.stop:
			return
		}
	}
}

// sweep drops identities with no admissions left inside the window.
func (l *RateLimiter) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.window)
	for identity, timestamps := range l.buckets {
		live := false
		for _, t := range timestamps {
			if t.After(cutoff) {
				live = true
				break
			}
		}
		if !live {
			delete(l.buckets, identity)
		}
	}
}

// trackedIdentities is exposed for the sweep test.
func (l *RateLimiter) trackedIdentities() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
