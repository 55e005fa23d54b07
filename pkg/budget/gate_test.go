package budget

import (
	"sync"
	"testing"
	"time"
)

// fakeClock is a settable clock for window tests.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func TestCheckAndConsumeWithinLimits(t *testing.T) {
	clock := newFakeClock()
	gate := newGate(Limits{PerMinute: 3, PerDay: 10}, clock.Now)

	for i := 0; i < 3; i++ {
		if d := gate.CheckAndConsume(1); !d.Allowed {
			t.Fatalf("call %d should be allowed: %s", i, d.Reason)
		}
	}
	if d := gate.CheckAndConsume(1); d.Allowed {
		t.Error("fourth call within the same minute should be denied")
	}
}

// TestDeniedConsumeLeavesCountersUntouched verifies the all-or-nothing
// guarantee: a denied reservation must not burn partial quota.
func TestDeniedConsumeLeavesCountersUntouched(t *testing.T) {
	clock := newFakeClock()
	gate := newGate(Limits{PerMinute: 5, PerDay: 100}, clock.Now)

	if d := gate.CheckAndConsume(3); !d.Allowed {
		t.Fatalf("first reservation should pass: %s", d.Reason)
	}

	// 3 requested, 2 remaining: denied, and the 2 must survive.
	if d := gate.CheckAndConsume(3); d.Allowed {
		t.Fatal("over-quota reservation should be denied")
	}

	status := gate.GetStatus()
	if status.PerMinuteRemaining != 2 {
		t.Errorf("PerMinuteRemaining = %d, want 2", status.PerMinuteRemaining)
	}
	if status.DailyRemaining != 97 {
		t.Errorf("DailyRemaining = %d, want 97", status.DailyRemaining)
	}

	if d := gate.CheckAndConsume(2); !d.Allowed {
		t.Errorf("exact-fit reservation should pass: %s", d.Reason)
	}
}

func TestMinuteWindowRollover(t *testing.T) {
	clock := newFakeClock()
	gate := newGate(Limits{PerMinute: 2, PerDay: 100}, clock.Now)

	gate.CheckAndConsume(2)
	if d := gate.CheckAndConsume(1); d.Allowed {
		t.Fatal("minute quota should be exhausted")
	}

	clock.Advance(61 * time.Second)

	if d := gate.CheckAndConsume(1); !d.Allowed {
		t.Errorf("minute window should have reset: %s", d.Reason)
	}

	// Daily usage carries across minute resets.
	status := gate.GetStatus()
	if status.DailyRemaining != 97 {
		t.Errorf("DailyRemaining = %d, want 97", status.DailyRemaining)
	}
}

func TestDailyWindowRollover(t *testing.T) {
	clock := newFakeClock()
	gate := newGate(Limits{PerMinute: 100, PerDay: 3}, clock.Now)

	gate.CheckAndConsume(3)
	if d := gate.CheckAndConsume(1); d.Allowed {
		t.Fatal("daily quota should be exhausted")
	}

	clock.Advance(25 * time.Hour)

	if d := gate.CheckAndConsume(1); !d.Allowed {
		t.Errorf("daily window should have reset: %s", d.Reason)
	}
}

func TestZeroCountIsFree(t *testing.T) {
	clock := newFakeClock()
	gate := newGate(Limits{PerMinute: 1, PerDay: 1}, clock.Now)

	gate.CheckAndConsume(1)
	if d := gate.CheckAndConsume(0); !d.Allowed {
		t.Error("zero-unit reservation should always pass")
	}
}

func TestGetStatusNextReset(t *testing.T) {
	clock := newFakeClock()
	gate := newGate(Limits{PerMinute: 10, PerDay: 100}, clock.Now)

	status := gate.GetStatus()
	wantNext := clock.Now().Add(time.Minute)
	if !status.NextReset.Equal(wantNext) {
		t.Errorf("NextReset = %v, want %v (the minute window)", status.NextReset, wantNext)
	}
}

func TestConcurrentConsume(t *testing.T) {
	clock := newFakeClock()
	gate := newGate(Limits{PerMinute: 50, PerDay: 50}, clock.Now)

	var wg sync.WaitGroup
	allowed := make(chan bool, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			allowed <- gate.CheckAndConsume(1).Allowed
		}()
	}
	wg.Wait()
	close(allowed)

	count := 0
	for ok := range allowed {
		if ok {
			count++
		}
	}
	if count != 50 {
		t.Errorf("%d reservations succeeded, want exactly 50", count)
	}
}
