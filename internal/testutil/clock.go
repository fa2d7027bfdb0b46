// Package testutil provides the shared fixtures the package tests
// lean on: a deterministic clock and precedent history builders.
package testutil

import (
	"sync"
	"time"
)

// ManualClock advances only when told to, making decay and expiry
// arithmetic exact in tests.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewManualClock starts at a fixed date well away from any real wall
// clock.
func NewManualClock() *ManualClock {
	return &ManualClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

// NewManualClockAt starts at the given instant.
func NewManualClockAt(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

// Now implements the clock function components accept.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
