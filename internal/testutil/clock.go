package testutil

import (
	"sync"
	"time"
)

// DeterministicClock is a wall clock for tests.
//
// Every call to Now() returns the start time advanced by step per previous
// call, so analysis timestamps stay reproducible and still differ between
// records. A zero step makes it a fixed clock.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type DeterministicClock struct {
	mu    sync.Mutex
	start time.Time
	step  time.Duration
	ticks int64
}

// NewDeterministicClock creates a clock starting at start that advances by
// step on each reading.
func NewDeterministicClock(start time.Time, step time.Duration) *DeterministicClock {
	return &DeterministicClock{start: start, step: step}
}

// NewFixedClock creates a clock that always returns t.
func NewFixedClock(t time.Time) *DeterministicClock {
	return NewDeterministicClock(t, 0)
}

// Now returns the current reading and advances the clock.
func (c *DeterministicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.start.Add(time.Duration(c.ticks) * c.step)
	c.ticks++
	return now
}

// Readings returns how many times Now() has been called.
func (c *DeterministicClock) Readings() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ticks
}

// Reset rewinds the clock to its start.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ticks = 0
}
