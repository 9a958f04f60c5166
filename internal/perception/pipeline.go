package perception

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/banshee-data/tldetector/internal/geometry"
	"github.com/banshee-data/tldetector/internal/monitoring"
	"github.com/banshee-data/tldetector/internal/spatial"
	"github.com/banshee-data/tldetector/internal/timeutil"
)

// Config holds the pipeline parameters.
type Config struct {
	Projector        geometry.Projector
	TransformTimeout time.Duration
	CropHalfWidth    int
	CropHalfHeight   int

	// StopLines are the site's stop-line positions (x, y). They are
	// reported alongside decisions but do not choose the stop waypoint.
	StopLines [][2]float64

	// ProjectionTraceInterval rate-limits the per-frame projection trace.
	ProjectionTraceInterval time.Duration

	Clock timeutil.Clock
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Projector:               geometry.DefaultProjector(),
		TransformTimeout:        time.Second,
		CropHalfWidth:           40,
		CropHalfHeight:          90,
		ProjectionTraceInterval: 3 * time.Second,
	}
}

// Pipeline turns a snapshot and an optional camera frame into a raw
// (waypoint, colour) pair. It holds no per-frame state besides log
// throttling, so one Pipeline may serve many frames in sequence.
type Pipeline struct {
	cfg        Config
	classifier Classifier
	transforms TransformProvider

	noLightsReported atomic.Bool
	traceThrottle    *monitoring.Throttle
}

// NewPipeline builds a pipeline. classifier and transforms may be nil, in
// which case camera frames are matched but not classified.
func NewPipeline(cfg Config, classifier Classifier, transforms TransformProvider) *Pipeline {
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}
	return &Pipeline{
		cfg:           cfg,
		classifier:    classifier,
		transforms:    transforms,
		traceThrottle: monitoring.NewThrottle(cfg.ProjectionTraceInterval, cfg.Clock),
	}
}

// StopLines returns the configured stop-line positions.
func (p *Pipeline) StopLines() [][2]float64 {
	return p.cfg.StopLines
}

// Process computes the raw result for one frame. The returned Result is
// always usable: on ErrMissingInput or spatial.ErrNoCandidates it is the
// fail-closed NoDecision. Camera classification is advisory and never
// replaces the light's ground-truth colour.
func (p *Pipeline) Process(ctx context.Context, snap *Snapshot, frame *CameraFrame) (Result, error) {
	if !snap.Ready() {
		return NoDecision(), ErrMissingInput
	}

	li, err := spatial.Nearest(snap.Pose.Position, snap.Lights)
	if err != nil {
		if p.noLightsReported.CompareAndSwap(false, true) {
			diagf("no traffic lights known; publishing no stop")
		}
		return NoDecision(), fmt.Errorf("nearest light: %w", err)
	}
	p.noLightsReported.Store(false)

	light := snap.Lights[li]
	wi, err := spatial.Nearest(light.Position, snap.Route)
	if err != nil {
		return NoDecision(), fmt.Errorf("nearest waypoint: %w", err)
	}

	res := Result{
		Waypoint:    wi,
		Color:       Unknown,
		CameraColor: Unknown,
		LightID:     light.ID,
	}
	if light.HasState {
		res.Color = light.State.Normalize()
	}

	if frame != nil {
		px, cc, err := p.classifyLight(ctx, light, frame)
		if err != nil {
			diagf("light %d: %v", light.ID, err)
		}
		res.Pixel = px
		res.CameraColor = cc
	}
	return res, nil
}

// classifyLight projects light into frame and runs the classifier on a
// crop around it. Failures yield a nil pixel and Unknown.
func (p *Pipeline) classifyLight(ctx context.Context, light TrafficLight, frame *CameraFrame) (*geometry.Pixel, Color, error) {
	if p.transforms == nil {
		return nil, Unknown, nil
	}
	at := frame.Timestamp
	if at.IsZero() {
		at = p.cfg.Clock.Now()
	}

	tf, err := p.transforms.Lookup(ctx, FrameBody, FrameWorld, at, p.cfg.TransformTimeout)
	if err != nil {
		opsf("transform %s->%s at %s unavailable: %v", FrameWorld, FrameBody, at.Format(time.RFC3339Nano), err)
		return nil, Unknown, fmt.Errorf("%w: %w", geometry.ErrUnavailable, err)
	}

	px, err := p.cfg.Projector.Project(light.Position, tf, frame.Intrinsics)
	if err != nil {
		return nil, Unknown, err
	}
	if ok, dropped := p.traceThrottle.Allow(); ok {
		tracef("light %d projected to (%d, %d) cam=(%.2f, %.2f, %.2f) suppressed=%d",
			light.ID, px.X, px.Y, px.Camera.X, px.Camera.Y, px.Camera.Z, dropped)
	}

	if !px.InFront() || p.classifier == nil {
		return &px, Unknown, nil
	}
	crop := CropAround(frame.Image, px, p.cfg.CropHalfWidth, p.cfg.CropHalfHeight)
	if crop == nil {
		return &px, Unknown, nil
	}
	return &px, p.classifier.Classify(crop).Normalize(), nil
}

// IsMissingInput reports whether err means the frame arrived before pose
// and route were known.
func IsMissingInput(err error) bool {
	return errors.Is(err, ErrMissingInput)
}
