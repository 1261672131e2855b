package clock

import (
	"testing"
	"time"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeAfterFunc(t *testing.T) {
	c := NewFake(epoch)
	fired := 0
	c.AfterFunc(10*time.Second, func() { fired++ })

	c.Advance(9 * time.Second)
	if fired != 0 {
		t.Fatalf("fired = %d before deadline, want 0", fired)
	}

	c.Advance(time.Second)
	if fired != 1 {
		t.Errorf("fired = %d at deadline, want 1", fired)
	}

	c.Advance(time.Minute)
	if fired != 1 {
		t.Errorf("fired = %d after deadline, want 1", fired)
	}
	if got := c.Now(); !got.Equal(epoch.Add(70 * time.Second)) {
		t.Errorf("Now() = %v, want %v", got, epoch.Add(70*time.Second))
	}
}

func TestFakeAfterFuncOrder(t *testing.T) {
	c := NewFake(epoch)
	var order []int
	c.AfterFunc(3*time.Second, func() { order = append(order, 3) })
	c.AfterFunc(1*time.Second, func() { order = append(order, 1) })
	c.AfterFunc(2*time.Second, func() { order = append(order, 2) })

	c.Advance(5 * time.Second)

	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Errorf("order = %v, want [1 2 3]", order)
	}
}

func TestFakeTimerStopReset(t *testing.T) {
	c := NewFake(epoch)
	fired := 0
	timer := c.AfterFunc(time.Second, func() { fired++ })

	if !timer.Stop() {
		t.Error("Stop() = false on pending timer, want true")
	}
	if timer.Stop() {
		t.Error("Stop() = true on stopped timer, want false")
	}
	c.Advance(2 * time.Second)
	if fired != 0 {
		t.Fatalf("fired = %d after Stop, want 0", fired)
	}

	if timer.Reset(time.Second) {
		t.Error("Reset() = true on stopped timer, want false")
	}
	c.Advance(time.Second)
	if fired != 1 {
		t.Errorf("fired = %d after Reset, want 1", fired)
	}
	if c.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", c.Pending())
	}
}

func TestFakeCallbackSchedulesTimer(t *testing.T) {
	c := NewFake(epoch)
	fired := 0
	c.AfterFunc(time.Second, func() {
		c.AfterFunc(time.Second, func() { fired++ })
	})

	c.Advance(time.Second)
	if fired != 0 {
		t.Fatalf("fired = %d, want 0", fired)
	}
	c.Advance(time.Second)
	if fired != 1 {
		t.Errorf("fired = %d, want 1", fired)
	}
}

func TestFakeTicker(t *testing.T) {
	c := NewFake(epoch)
	ticker := c.NewTicker(time.Second)
	defer ticker.Stop()

	c.Advance(time.Second)
	select {
	case <-ticker.C:
	default:
		t.Fatal("expected a tick")
	}

	ticker.Stop()
	c.Advance(time.Second)
	select {
	case <-ticker.C:
		t.Error("tick after Stop")
	default:
	}
}

func TestFakeCallbackStopsTimerInSameBatch(t *testing.T) {
	c := NewFake(epoch)
	fired := 0
	var second *Timer
	c.AfterFunc(time.Second, func() {
		if !second.Stop() {
			t.Error("Stop() = false on a timer that has not run, want true")
		}
	})
	second = c.AfterFunc(2*time.Second, func() { fired++ })

	c.Advance(5 * time.Second)
	if fired != 0 {
		t.Errorf("fired = %d after Stop from earlier callback, want 0", fired)
	}
	if c.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", c.Pending())
	}
}

func TestFakeCallbackResetsTimerInSameBatch(t *testing.T) {
	c := NewFake(epoch)
	fired := 0
	var second *Timer
	c.AfterFunc(time.Second, func() { second.Reset(10 * time.Second) })
	second = c.AfterFunc(2*time.Second, func() { fired++ })

	c.Advance(5 * time.Second)
	if fired != 0 {
		t.Fatalf("fired = %d, want 0 before the reset deadline", fired)
	}
	c.Advance(10 * time.Second)
	if fired != 1 {
		t.Errorf("fired = %d, want 1", fired)
	}
}
