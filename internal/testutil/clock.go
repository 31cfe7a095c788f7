package testutil

import (
	"sync"
	"time"

	"github.com/roach88/senselogic/internal/engine"
)

// FakeClock is a manually advanced engine.Clock for tests.
//
// Timers fire when Advance or Set moves the clock to or past their deadline.
// A timer requested for a time already reached fires immediately.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FakeClock struct {
	mu     sync.Mutex
	now    int64
	timers []*fakeTimer
}

// NewFakeClock creates a clock reading start.
func NewFakeClock(start int64) *FakeClock {
	return &FakeClock{now: start}
}

// Now returns the current fake time.
func (c *FakeClock) Now() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d milliseconds.
func (c *FakeClock) Advance(d int64) {
	c.mu.Lock()
	c.now += d
	c.fireLocked()
	c.mu.Unlock()
}

// Set moves the clock to t. Moving backwards is ignored.
func (c *FakeClock) Set(t int64) {
	c.mu.Lock()
	if t > c.now {
		c.now = t
	}
	c.fireLocked()
	c.mu.Unlock()
}

// TimerAt returns a timer that fires when the clock reaches at.
func (c *FakeClock) TimerAt(at int64) engine.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: at, ch: make(chan time.Time, 1)}
	if at <= c.now {
		t.fire()
		return t
	}
	c.timers = append(c.timers, t)
	return t
}

// PendingTimers returns how many timers have neither fired nor stopped.
func (c *FakeClock) PendingTimers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

func (c *FakeClock) fireLocked() {
	kept := c.timers[:0]
	for _, t := range c.timers {
		if t.at <= c.now {
			t.fire()
			continue
		}
		kept = append(kept, t)
	}
	for i := len(kept); i < len(c.timers); i++ {
		c.timers[i] = nil
	}
	c.timers = kept
}

func (c *FakeClock) remove(t *fakeTimer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, x := range c.timers {
		if x == t {
			c.timers = append(c.timers[:i], c.timers[i+1:]...)
			return
		}
	}
}

type fakeTimer struct {
	clock *FakeClock
	at    int64
	ch    chan time.Time
}

func (t *fakeTimer) fire() {
	select {
	case t.ch <- time.UnixMilli(t.at):
	default:
	}
}

func (t *fakeTimer) C() <-chan time.Time { return t.ch }
func (t *fakeTimer) Stop()               { t.clock.remove(t) }
