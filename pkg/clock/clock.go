// Package clock abstracts timers so keepalive and retry logic can be driven
// deterministically in tests.
package clock

import "time"

// Clock is the subset of the time package used by sessions and tools.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// AfterFunc calls f after d elapses. The returned Timer cancels it.
	AfterFunc(d time.Duration, f func()) *Timer

	// NewTicker delivers ticks on the returned Ticker's C every d.
	// Panics if d <= 0.
	NewTicker(d time.Duration) *Ticker
}

// Timer is a pending AfterFunc call.
type Timer struct {
	stop  func() bool
	reset func(time.Duration) bool
}

// Stop cancels the call. Returns false if it already fired or was stopped.
func (t *Timer) Stop() bool { return t.stop() }

// Reset reschedules the call to fire after d. Returns true if the timer
// was still pending.
func (t *Timer) Reset(d time.Duration) bool { return t.reset(d) }

// Ticker delivers periodic ticks on C. Ticks are dropped if the reader
// falls behind.
type Ticker struct {
	C <-chan time.Time

	stop func()
}

// Stop turns off the ticker. C is not closed.
func (t *Ticker) Stop() { t.stop() }

// Real returns a Clock backed by the time package.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) *Timer {
	t := time.AfterFunc(d, f)
	return &Timer{stop: t.Stop, reset: t.Reset}
}

func (realClock) NewTicker(d time.Duration) *Ticker {
	t := time.NewTicker(d)
	return &Ticker{C: t.C, stop: t.Stop}
}
