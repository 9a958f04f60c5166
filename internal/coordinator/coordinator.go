// Package coordinator runs the detector's event loop: it folds pose, route
// and light updates into an immutable snapshot and turns every camera frame
// into exactly one published stop decision.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/tldetector/internal/geometry"
	"github.com/banshee-data/tldetector/internal/perception"
	"github.com/banshee-data/tldetector/internal/spatial"
	"github.com/banshee-data/tldetector/internal/stabilizer"
	"github.com/banshee-data/tldetector/internal/timeutil"
)

// DefaultQueueSize is the event channel capacity.
const DefaultQueueSize = 64

// PoseRecorder is fed every pose update, typically a transform buffer.
type PoseRecorder interface {
	AddPose(pose geometry.Pose, at time.Time)
}

// Config holds the coordinator parameters.
type Config struct {
	// MinFrameInterval drops frames arriving sooner than this after the
	// last processed frame. Zero processes every frame.
	MinFrameInterval time.Duration
	QueueSize        int
	Clock            timeutil.Clock
}

// Coordinator owns the snapshot and the stabilizer. Events are handled
// one at a time, in arrival order, by Run.
type Coordinator struct {
	cfg       Config
	pipeline  *perception.Pipeline
	stab      *stabilizer.Stabilizer
	publisher Publisher
	poses     PoseRecorder

	events    chan Event
	closeOnce sync.Once

	snapshot atomic.Pointer[perception.Snapshot]
	last     atomic.Pointer[Decision]

	mu                sync.RWMutex
	stopLineWaypoints []int

	// Loop-owned.
	seq       uint64
	lastFrame time.Time
}

// New wires a coordinator. poses may be nil.
func New(cfg Config, pipeline *perception.Pipeline, stab *stabilizer.Stabilizer, publisher Publisher, poses PoseRecorder) *Coordinator {
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	c := &Coordinator{
		cfg:       cfg,
		pipeline:  pipeline,
		stab:      stab,
		publisher: publisher,
		poses:     poses,
		events:    make(chan Event, cfg.QueueSize),
	}
	c.snapshot.Store(&perception.Snapshot{})
	return c
}

// Submit queues ev for the loop, blocking while the queue is full.
//
// Poses are recorded before they are queued, so a frame whose transform
// lookup is waiting in the loop can be answered by a pose still queued
// behind it.
func (c *Coordinator) Submit(ctx context.Context, ev Event) error {
	if p, ok := ev.(PoseUpdate); ok && c.poses != nil {
		p.At = c.stamp(p.At)
		c.poses.AddPose(p.Pose, p.At)
		ev = recordedPose{p}
	}
	select {
	case c.events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close ends the input stream. Run handles the events already queued and
// returns. Submit must not be called after Close.
func (c *Coordinator) Close() {
	c.closeOnce.Do(func() { close(c.events) })
}

// Run handles queued events until ctx is cancelled or Close is called. It
// returns nil in both cases.
func (c *Coordinator) Run(ctx context.Context) error {
	diagf("coordinator started (min frame interval %s)", c.cfg.MinFrameInterval)
	defer diagf("coordinator stopped after %d frames", c.seq)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-c.events:
			if !ok {
				return nil
			}
			if err := c.Handle(ctx, ev); err != nil {
				opsf("%s event: %v", ev.eventKind(), err)
			}
		}
	}
}

// Handle processes a single event synchronously. It must not be called
// concurrently with Run or with itself.
func (c *Coordinator) Handle(ctx context.Context, ev Event) error {
	switch e := ev.(type) {
	case PoseUpdate:
		at := c.stamp(e.At)
		if c.poses != nil {
			c.poses.AddPose(e.Pose, at)
		}
		c.swap(func(s *perception.Snapshot) *perception.Snapshot { return s.WithPose(e.Pose, at) })
	case recordedPose:
		c.swap(func(s *perception.Snapshot) *perception.Snapshot { return s.WithPose(e.Pose, e.At) })
	case RouteUpdate:
		route := make([]spatial.Waypoint, len(e.Waypoints))
		for i, wp := range e.Waypoints {
			route[i] = spatial.Waypoint{Index: i, Position: wp.Position}
		}
		at := c.stamp(e.At)
		c.swap(func(s *perception.Snapshot) *perception.Snapshot { return s.WithRoute(route, at) })
		c.matchStopLines(route)
		diagf("route updated: %d waypoints", len(route))
	case LightsUpdate:
		at := c.stamp(e.At)
		c.swap(func(s *perception.Snapshot) *perception.Snapshot { return s.WithLights(e.Lights, at) })
	case FrameEvent:
		return c.handleFrame(ctx, e.Frame)
	case nil:
		return errors.New("nil event")
	default:
		return fmt.Errorf("unsupported event %T", ev)
	}
	return nil
}

func (c *Coordinator) stamp(at time.Time) time.Time {
	if at.IsZero() {
		return c.cfg.Clock.Now()
	}
	return at
}

func (c *Coordinator) swap(update func(*perception.Snapshot) *perception.Snapshot) {
	c.snapshot.Store(update(c.snapshot.Load()))
}

func (c *Coordinator) handleFrame(ctx context.Context, frame perception.CameraFrame) error {
	if frame.Timestamp.IsZero() {
		frame.Timestamp = c.cfg.Clock.Now()
	}
	c.seq++
	d := Decision{
		Seq:         c.seq,
		At:          frame.Timestamp,
		RawWaypoint: -1,
		RawColor:    perception.Unknown,
		CameraColor: perception.Unknown,
		LightID:     -1,
	}

	if c.throttled(frame.Timestamp) {
		st := c.stab.State()
		d.Waypoint = st.LastPublishedWaypoint
		d.Confirmed = st.ConfirmedColor
		d.Throttled = true
		return c.publish(ctx, d)
	}
	c.lastFrame = frame.Timestamp

	res, err := c.pipeline.Process(ctx, c.snapshot.Load(), &frame)
	if err != nil {
		d.Reason = err.Error()
	}
	prev := c.stab.Last()
	d.Waypoint = c.stab.Observe(res.Waypoint, res.Color)
	d.Confirmed = c.stab.State().ConfirmedColor
	d.RawWaypoint = res.Waypoint
	d.RawColor = res.Color
	d.CameraColor = res.CameraColor
	d.LightID = res.LightID
	d.Pixel = res.Pixel

	if d.Waypoint != prev {
		diagf("stop waypoint %d -> %d (confirmed %s)", prev, d.Waypoint, d.Confirmed)
	}
	tracef("frame %d raw=(%d,%s) camera=%s published=%d", d.Seq, d.RawWaypoint, d.RawColor, d.CameraColor, d.Waypoint)
	return c.publish(ctx, d)
}

func (c *Coordinator) throttled(at time.Time) bool {
	if c.cfg.MinFrameInterval <= 0 || c.lastFrame.IsZero() {
		return false
	}
	if at.Before(c.lastFrame) {
		// Frame time went backwards: restart the cap from this frame.
		diagf("frame time went back %s, frame-rate cap restarted", c.lastFrame.Sub(at))
		return false
	}
	return at.Sub(c.lastFrame) < c.cfg.MinFrameInterval
}

func (c *Coordinator) publish(ctx context.Context, d Decision) error {
	c.last.Store(&d)
	if c.publisher == nil {
		return nil
	}
	if err := c.publisher.Publish(ctx, d); err != nil {
		return fmt.Errorf("publish decision %d: %w", d.Seq, err)
	}
	return nil
}

func (c *Coordinator) matchStopLines(route []spatial.Waypoint) {
	var lines [][2]float64
	if c.pipeline != nil {
		lines = c.pipeline.StopLines()
	}
	out := make([]int, 0, len(lines))
	for _, l := range lines {
		i, err := spatial.Nearest(r3.Vec{X: l[0], Y: l[1]}, route)
		if err != nil {
			break
		}
		out = append(out, i)
	}
	c.mu.Lock()
	c.stopLineWaypoints = out
	c.mu.Unlock()
}

// Snapshot returns the current input snapshot. It is never nil.
func (c *Coordinator) Snapshot() *perception.Snapshot {
	return c.snapshot.Load()
}

// Ready reports whether pose and route have both been received.
func (c *Coordinator) Ready() bool {
	return c.snapshot.Load().Ready()
}

// LastDecision returns the most recently published decision. Before the
// first frame it returns a no-stop decision with unknown colours and false.
func (c *Coordinator) LastDecision() (Decision, bool) {
	d := c.last.Load()
	if d == nil {
		return Decision{
			Waypoint:    stabilizer.NoStop,
			RawWaypoint: stabilizer.NoStop,
			RawColor:    perception.Unknown,
			Confirmed:   perception.Unknown,
			CameraColor: perception.Unknown,
			LightID:     -1,
		}, false
	}
	return *d, true
}

// StabilizerState returns the debounce state.
func (c *Coordinator) StabilizerState() stabilizer.State {
	return c.stab.State()
}

// StopLineWaypoints returns, for each configured stop line, the index of
// the route waypoint nearest to it.
func (c *Coordinator) StopLineWaypoints() []int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]int(nil), c.stopLineWaypoints...)
}
