package clock

import (
	"sync"
	"time"
)

// Clock is the only impure input of the status calculator. Everything else
// recomputes from absolute timestamps, so samples may be taken at any rate
// without drift.
type Clock interface {
	Now() time.Time
}

// System wraps time.Now with a non-decreasing guard: if the wall clock steps
// backwards (NTP correction), the last observed sample is returned instead.
type System struct {
	mu   sync.Mutex
	last time.Time
}

func NewSystem() *System {
	return &System{}
}

func (c *System) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if now.Before(c.last) {
		return c.last
	}
	c.last = now

	return now
}

// Fake is a settable clock for tests.
type Fake struct {
	mu  sync.Mutex
	now time.Time
}

func NewFake(now time.Time) *Fake {
	return &Fake{now: now}
}

func (c *Fake) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *Fake) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = now
}

func (c *Fake) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}
