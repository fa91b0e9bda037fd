// Package timectrl abstracts the wall clock so schedule tooling can derive
// "now"-relative defaults deterministically under test.
package timectrl

import (
	"sync"
	"time"
)

// Clock supplies the current instant. Components take a Clock rather than
// calling time.Now so tests can pin it.
type Clock interface {
	Now() time.Time
}

// System returns a Clock backed by the wall clock.
func System() Clock { return systemClock{} }

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Fixed is a settable clock for tests and deterministic authoring runs.
type Fixed struct {
	mu sync.RWMutex
	t  time.Time
}

// NewFixed constructs a Fixed clock pinned at start.
func NewFixed(start time.Time) *Fixed {
	return &Fixed{t: start}
}

// Now returns the pinned instant.
func (f *Fixed) Now() time.Time {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.t
}

// Set repins the clock.
func (f *Fixed) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.t = t
}

// Advance moves the clock forward by d and returns the new instant.
func (f *Fixed) Advance(d time.Duration) time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.t = f.t.Add(d)
	return f.t
}

// UpcomingStart returns a default scan start: lead time from now, in UTC,
// truncated to the millisecond precision a schedule file can carry.
func UpcomingStart(c Clock, lead time.Duration) time.Time {
	if c == nil {
		c = System()
	}
	return c.Now().UTC().Add(lead).Truncate(time.Millisecond)
}
