// Package debounce suppresses repeat resets of the same order within a
// cooldown window.
package debounce

import (
	"sync"
	"time"
)

// DefaultWindow is the minimum time between successive resets of one order.
const DefaultWindow = 5 * time.Minute

// Store tracks the last successful reset time per order ID.
//
// A failed reset never records a stamp, so the next matching line retries
// immediately rather than waiting out the window. Expired entries are pruned
// opportunistically on each ShouldTrigger call, keeping the map bounded over
// long runs. The mutex exists so the map stays the single point of mutual
// exclusion if callers ever overlap; the daemon itself is sequential.
type Store struct {
	mu     sync.Mutex
	window time.Duration
	last   map[string]time.Time
}

// New creates a Store with the given cooldown window. A non-positive window
// falls back to DefaultWindow.
func New(window time.Duration) *Store {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Store{
		window: window,
		last:   make(map[string]time.Time),
	}
}

// Window returns the configured cooldown window.
func (s *Store) Window() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.window
}

// ShouldTrigger reports whether a reset for id may fire at time now.
// When suppressed, elapsed is the time since the last successful reset,
// for the caller's skip log.
func (s *Store) ShouldTrigger(id string, now time.Time) (elapsed time.Duration, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked(now)

	last, found := s.last[id]
	if !found {
		return 0, true
	}
	elapsed = now.Sub(last)
	if elapsed < s.window {
		return elapsed, false
	}
	return elapsed, true
}

// Record stamps id as reset at time now. Call only after the reset command
// succeeded.
func (s *Store) Record(id string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last[id] = now
}

// Len returns the number of live entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.last)
}

// pruneLocked drops entries whose cooldown has fully elapsed. Caller holds mu.
func (s *Store) pruneLocked(now time.Time) {
	for id, last := range s.last {
		if now.Sub(last) >= s.window {
			delete(s.last, id)
		}
	}
}
