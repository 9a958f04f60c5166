// Package stabilizer debounces the per-frame traffic-light colour so that a
// stop waypoint is only published once a colour has been seen on several
// consecutive frames.
package stabilizer

import (
	"sync"

	"github.com/banshee-data/tldetector/internal/perception"
)

// DefaultThreshold is the number of consecutive identical observations
// needed before a colour is confirmed.
const DefaultThreshold = 3

// NoStop is published when the vehicle need not stop.
const NoStop = -1

// State is a copy of the stabilizer's internal state.
type State struct {
	ObservedColor         perception.Color `json:"observed_color"`
	ObservedCount         int              `json:"observed_count"`
	ConfirmedColor        perception.Color `json:"confirmed_color"`
	LastPublishedWaypoint int              `json:"last_published_waypoint"`
}

// Stabilizer is safe for concurrent use, but observations must be supplied
// in frame order for the debounce to be meaningful.
type Stabilizer struct {
	mu        sync.Mutex
	threshold int
	state     State
}

// New returns a Stabilizer in its initial state. A threshold below 1 uses
// DefaultThreshold.
func New(threshold int) *Stabilizer {
	if threshold < 1 {
		threshold = DefaultThreshold
	}
	s := &Stabilizer{threshold: threshold}
	s.reset()
	return s
}

func (s *Stabilizer) reset() {
	s.state = State{
		ObservedColor:         perception.Unknown,
		ConfirmedColor:        perception.Unknown,
		LastPublishedWaypoint: NoStop,
	}
}

// Threshold returns the confirmation threshold.
func (s *Stabilizer) Threshold() int {
	return s.threshold
}

// Observe feeds one frame's raw result and returns the waypoint to publish.
//
// A change of colour starts a new run and counts as its first frame. Once a
// run reaches the threshold the colour is confirmed: a confirmed RED
// publishes waypoint, anything else publishes NoStop. Until then the
// previously published value is repeated.
func (s *Stabilizer) Observe(waypoint int, c perception.Color) int {
	c = c.Normalize()

	s.mu.Lock()
	defer s.mu.Unlock()

	if c != s.state.ObservedColor {
		s.state.ObservedColor = c
		s.state.ObservedCount = 0
	}
	s.state.ObservedCount++

	if s.state.ObservedCount >= s.threshold {
		s.state.ConfirmedColor = c
		if c == perception.Red && waypoint >= 0 {
			s.state.LastPublishedWaypoint = waypoint
		} else {
			s.state.LastPublishedWaypoint = NoStop
		}
	}
	return s.state.LastPublishedWaypoint
}

// Last returns the most recently published waypoint without observing.
func (s *Stabilizer) Last() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.LastPublishedWaypoint
}

// State returns a copy of the current state.
func (s *Stabilizer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Reset returns the stabilizer to its initial state.
func (s *Stabilizer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
}
