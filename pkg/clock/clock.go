// Package clock provides a monotonic clock abstraction with cancellable
// deferred callbacks, so the alert-folding state machine in internal/incident,
// internal/service and internal/site can be driven by a fake clock in tests
// instead of real wall-clock sleeps.
package clock

import (
	"sync"
	"time"
)

// Timer is a single scheduled callback. Cancel is idempotent: calling it
// after the callback has already fired, or calling it twice, is a no-op.
type Timer interface {
	Cancel()
}

// Clock schedules deferred callbacks and reports the current time.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// AfterFunc arranges for f to run after d has elapsed (System runs it on
	// its own goroutine; Fake runs it synchronously inside Advance/SetTime).
	// The returned Timer can cancel the callback before it fires.
	AfterFunc(d time.Duration, f func()) Timer
}

// System is the production Clock, backed by the standard library.
type System struct{}

// New returns the system clock.
func New() Clock { return System{} }

func (System) Now() time.Time { return time.Now() }

func (System) AfterFunc(d time.Duration, f func()) Timer {
	return &systemTimer{t: time.AfterFunc(d, f)}
}

type systemTimer struct {
	t *time.Timer
}

func (s *systemTimer) Cancel() {
	s.t.Stop()
}

// Fake is a manually-advanced Clock for tests. It fires due callbacks
// synchronously, in the calling goroutine, when Advance or Set moves time
// past their deadline — this keeps test scenarios deterministic instead of
// racing real goroutines against assertions.
type Fake struct {
	mu       sync.Mutex
	now      time.Time
	pending  []*fakeTimer
	nextSeq  uint64
}

// NewFake returns a Fake clock starting at the given time.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

type fakeTimer struct {
	seq       uint64
	deadline  time.Time
	f         func()
	cancelled bool
	fired     bool
}

func (t *fakeTimer) Cancel() {
	t.cancelled = true
}

func (c *Fake) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Fake) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextSeq++
	t := &fakeTimer{seq: c.nextSeq, deadline: c.now.Add(d), f: f}
	c.pending = append(c.pending, t)
	return t
}

// Advance moves the clock forward by d, firing (in deadline order, ties
// broken by schedule order) every timer whose deadline falls at or before
// the new time. Callbacks that themselves schedule new timers may cause
// those new timers to fire too, if their deadline is still within range.
func (c *Fake) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()
	c.SetTime(target)
}

// SetTime moves the clock to an absolute time, firing due timers as Advance does.
func (c *Fake) SetTime(target time.Time) {
	for {
		c.mu.Lock()
		if target.Before(c.now) {
			c.now = target
			c.mu.Unlock()
			return
		}
		c.now = target

		var due *fakeTimer
		for _, t := range c.pending {
			if t.cancelled || t.fired {
				continue
			}
			if !t.deadline.After(c.now) {
				if due == nil || t.deadline.Before(due.deadline) ||
					(t.deadline.Equal(due.deadline) && t.seq < due.seq) {
					due = t
				}
			}
		}
		if due == nil {
			c.mu.Unlock()
			return
		}
		due.fired = true
		c.mu.Unlock()

		due.f()
	}
}
