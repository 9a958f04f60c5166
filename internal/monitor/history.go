package monitor

import (
	"context"
	"sync"

	"github.com/banshee-data/tldetector/internal/coordinator"
)

// DefaultHistorySize is the number of decisions kept for the timeline.
const DefaultHistorySize = 2000

// DecisionHistory is a fixed-size ring of recent decisions. It implements
// coordinator.Publisher so it can sit in the publisher fan-out.
type DecisionHistory struct {
	mu    sync.RWMutex
	buf   []coordinator.Decision
	next  int
	count int
}

// NewDecisionHistory returns a ring holding up to size decisions.
func NewDecisionHistory(size int) *DecisionHistory {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &DecisionHistory{buf: make([]coordinator.Decision, size)}
}

// Publish implements coordinator.Publisher. It never fails.
func (h *DecisionHistory) Publish(_ context.Context, d coordinator.Decision) error {
	h.mu.Lock()
	h.buf[h.next] = d
	h.next = (h.next + 1) % len(h.buf)
	if h.count < len(h.buf) {
		h.count++
	}
	h.mu.Unlock()
	return nil
}

// Len returns how many decisions are held.
func (h *DecisionHistory) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// Recent returns up to n of the newest decisions, oldest first. n <= 0
// returns everything held.
func (h *DecisionHistory) Recent(n int) []coordinator.Decision {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if n <= 0 || n > h.count {
		n = h.count
	}
	out := make([]coordinator.Decision, n)
	start := (h.next - n + len(h.buf)) % len(h.buf)
	for i := 0; i < n; i++ {
		out[i] = h.buf[(start+i)%len(h.buf)]
	}
	return out
}
