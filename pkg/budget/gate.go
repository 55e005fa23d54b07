// Package budget implements the external-call budget gate: two independent
// rolling windows (per-minute, per-day) with fixed caps and atomic
// check-and-consume semantics.
package budget

import (
	"sync"
	"time"

	"keywordscout-go/pkg/logger"
)

// Limits configures the two window caps.
type Limits struct {
	PerMinute int `mapstructure:"per_minute"`
	PerDay    int `mapstructure:"per_day"`
}

// DefaultLimits matches the ads API terms this tool is operated under.
func DefaultLimits() Limits {
	return Limits{PerMinute: 20, PerDay: 1000}
}

// Decision is the outcome of a CheckAndConsume call.
type Decision struct {
	Allowed bool
	Reason  string
}

// Status is a point-in-time snapshot of remaining quota.
type Status struct {
	PerMinuteRemaining int       `json:"per_minute_remaining"`
	DailyRemaining     int       `json:"daily_remaining"`
	PerMinuteLimit     int       `json:"per_minute_limit"`
	DailyLimit         int       `json:"daily_limit"`
	NextReset          time.Time `json:"next_reset"`
}

// Gate tracks per-minute and per-day call quotas. It is an explicit injected
// dependency, never package-level state, so tests and concurrent owners stay
// isolated. State lives for the process lifetime only: a restart resets both
// windows, which is an accepted limitation.
type Gate struct {
	mu sync.Mutex

	limits Limits

	minuteUsed  int
	dayUsed     int
	minuteReset time.Time
	dayReset    time.Time

	now func() time.Time

	log *logger.Logger
}

// NewGate creates a gate with the given limits.
func NewGate(limits Limits) *Gate {
	return newGate(limits, time.Now)
}

// newGate allows clock injection for tests.
func newGate(limits Limits, now func() time.Time) *Gate {
	t := now()
	return &Gate{
		limits:      limits,
		minuteReset: t.Add(time.Minute),
		dayReset:    t.Add(24 * time.Hour),
		now:         now,
		log:         logger.GetLogger().WithField("component", "call_budget"),
	}
}

// CheckAndConsume reserves callCount units against both windows. The
// reservation is all-or-nothing: a denied call leaves both counters untouched.
func (g *Gate) CheckAndConsume(callCount int) Decision {
	if callCount <= 0 {
		return Decision{Allowed: true}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.rollover()

	if g.minuteUsed+callCount > g.limits.PerMinute {
		g.log.WithFields(map[string]interface{}{
			"requested": callCount,
			"remaining": g.limits.PerMinute - g.minuteUsed,
		}).Debug("per-minute budget denied")
		return Decision{Allowed: false, Reason: "per-minute call budget exhausted"}
	}
	if g.dayUsed+callCount > g.limits.PerDay {
		g.log.WithFields(map[string]interface{}{
			"requested": callCount,
			"remaining": g.limits.PerDay - g.dayUsed,
		}).Debug("daily budget denied")
		return Decision{Allowed: false, Reason: "daily call budget exhausted"}
	}

	g.minuteUsed += callCount
	g.dayUsed += callCount
	return Decision{Allowed: true}
}

// GetStatus reports remaining quota for both windows and the earlier of the
// two reset times.
func (g *Gate) GetStatus() Status {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.rollover()

	next := g.minuteReset
	if g.dayReset.Before(next) {
		next = g.dayReset
	}

	return Status{
		PerMinuteRemaining: g.limits.PerMinute - g.minuteUsed,
		DailyRemaining:     g.limits.PerDay - g.dayUsed,
		PerMinuteLimit:     g.limits.PerMinute,
		DailyLimit:         g.limits.PerDay,
		NextReset:          next,
	}
}

// rollover resets a window once its interval has elapsed. Resets are
// time-based: the minute window resets 60s after the previous reset
// regardless of call volume. Must be called with the lock held.
func (g *Gate) rollover() {
	t := g.now()
	if !t.Before(g.minuteReset) {
		g.minuteUsed = 0
		g.minuteReset = t.Add(time.Minute)
	}
	if !t.Before(g.dayReset) {
		g.dayUsed = 0
		g.dayReset = t.Add(24 * time.Hour)
	}
}
