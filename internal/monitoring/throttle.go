package monitoring

import (
	"sync"
	"time"

	"github.com/banshee-data/tldetector/internal/timeutil"
)

// Throttle rate-limits a log site to at most one line per interval.
// The zero interval allows every call.
type Throttle struct {
	mu       sync.Mutex
	clock    timeutil.Clock
	interval time.Duration
	last     time.Time
	dropped  int
}

// NewThrottle returns a Throttle using clock. A nil clock uses the real clock.
func NewThrottle(interval time.Duration, clock timeutil.Clock) *Throttle {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Throttle{clock: clock, interval: interval}
}

// Allow reports whether the caller may log now. When it returns true it
// also returns the number of calls suppressed since the previous allowed one.
func (t *Throttle) Allow() (bool, int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	if !t.last.IsZero() && now.Sub(t.last) < t.interval {
		t.dropped++
		return false, 0
	}
	dropped := t.dropped
	t.dropped = 0
	t.last = now
	return true, dropped
}
