package clock

import (
	"sort"
	"sync"
	"time"
)

// FakeClock is a Clock whose time only moves on Advance.
//
// AfterFunc callbacks run synchronously inside Advance, in deadline order,
// without the clock's lock held. A callback may schedule new timers; those
// fire in the same Advance if their deadline is already due.
type FakeClock struct {
	mu      sync.Mutex
	now     time.Time
	pending []*fakeTimer
}

type fakeTimer struct {
	deadline time.Time
	fn       func()         // AfterFunc
	ch       chan time.Time // ticker
	interval time.Duration
	stopped  bool
	fired    bool
}

// NewFake returns a FakeClock starting at start.
func NewFake(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

// Now returns the fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// AfterFunc registers f to run once the clock passes now+d. If d <= 0, f
// runs before AfterFunc returns.
func (c *FakeClock) AfterFunc(d time.Duration, f func()) *Timer {
	if d <= 0 {
		f()
		return &Timer{
			stop:  func() bool { return false },
			reset: func(time.Duration) bool { return false },
		}
	}

	c.mu.Lock()
	ft := &fakeTimer{deadline: c.now.Add(d), fn: f}
	c.pending = append(c.pending, ft)
	c.mu.Unlock()

	return &Timer{
		stop: func() bool {
			c.mu.Lock()
			defer c.mu.Unlock()
			if ft.stopped || ft.fired {
				return false
			}
			ft.stopped = true
			return true
		},
		reset: func(d time.Duration) bool {
			c.mu.Lock()
			defer c.mu.Unlock()
			active := !ft.stopped && !ft.fired
			ft.deadline = c.now.Add(d)
			ft.stopped = false
			ft.fired = false
			c.unschedule(ft)
			c.pending = append(c.pending, ft)
			return active
		},
	}
}

// NewTicker returns a ticker driven by Advance.
func (c *FakeClock) NewTicker(d time.Duration) *Ticker {
	if d <= 0 {
		panic("clock: non-positive interval for NewTicker")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan time.Time, 1)
	ft := &fakeTimer{deadline: c.now.Add(d), ch: ch, interval: d}
	c.pending = append(c.pending, ft)

	return &Ticker{
		C: ch,
		stop: func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			ft.stopped = true
		},
	}
}

// Advance moves the clock forward by d and fires everything that is due.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	target := c.now
	c.mu.Unlock()

	for {
		due := c.collect(target)
		if len(due) == 0 {
			return
		}
		for _, d := range due {
			if !c.claim(d) {
				continue
			}
			if d.ft.fn != nil {
				d.ft.fn()
				continue
			}
			select {
			case d.ft.ch <- target:
			default:
			}
		}
	}
}

// Pending returns the number of timers and tickers that have not fired
// or been stopped.
func (c *FakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, ft := range c.pending {
		if !ft.stopped && !ft.fired {
			n++
		}
	}
	return n
}

// claim reports whether d should still run. An earlier callback in the
// same batch may have stopped or reset it.
func (c *FakeClock) claim(d due) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	ft := d.ft
	if ft.stopped || ft.fired {
		return false
	}
	if ft.interval == 0 {
		if !ft.deadline.Equal(d.at) {
			return false
		}
		ft.fired = true
	}
	return true
}

// unschedule drops ft from the pending list. Caller holds c.mu.
func (c *FakeClock) unschedule(ft *fakeTimer) {
	for i, p := range c.pending {
		if p == ft {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			return
		}
	}
}

type due struct {
	ft *fakeTimer
	at time.Time
}

// collect takes everything due at target off the pending list, earliest
// first. Tickers are rescheduled for their next period.
func (c *FakeClock) collect(target time.Time) []due {
	c.mu.Lock()
	defer c.mu.Unlock()

	var ready []due
	var rest []*fakeTimer
	for _, ft := range c.pending {
		switch {
		case ft.stopped || ft.fired:
		case !ft.deadline.After(target):
			ready = append(ready, due{ft: ft, at: ft.deadline})
		default:
			rest = append(rest, ft)
		}
	}
	sort.SliceStable(ready, func(i, j int) bool {
		return ready[i].at.Before(ready[j].at)
	})

	for _, d := range ready {
		if d.ft.interval > 0 {
			d.ft.deadline = d.ft.deadline.Add(d.ft.interval)
			rest = append(rest, d.ft)
		}
	}
	c.pending = rest
	return ready
}
