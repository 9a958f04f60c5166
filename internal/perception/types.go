package perception

import (
	"context"
	"errors"
	"image"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/tldetector/internal/geometry"
	"github.com/banshee-data/tldetector/internal/spatial"
)

// ErrMissingInput is reported when a frame arrives before both the pose
// and the route are known.
var ErrMissingInput = errors.New("missing pose or route")

// Frame names used for transform lookups.
const (
	FrameWorld = "/world"
	FrameBody  = "/base_link"
)

// TrafficLight is a known light in the world frame. HasState is false in
// camera-only operation where no ground-truth colour is supplied.
type TrafficLight struct {
	ID       int    `json:"id"`
	Position r3.Vec `json:"position"`
	State    Color  `json:"state"`
	HasState bool   `json:"has_state"`
}

// WorldPosition implements spatial.Positioned.
func (l TrafficLight) WorldPosition() r3.Vec { return l.Position }

// CameraFrame is one decoded image and the intrinsics it was captured with.
type CameraFrame struct {
	Image      image.Image
	Intrinsics geometry.Intrinsics
	Timestamp  time.Time
}

// Classifier reads a light colour out of an image crop.
type Classifier interface {
	Classify(img image.Image) Color
}

// ClassifierFunc adapts a function to the Classifier interface.
type ClassifierFunc func(img image.Image) Color

// Classify implements Classifier.
func (f ClassifierFunc) Classify(img image.Image) Color { return f(img) }

// TransformProvider resolves the transform from source into target at a
// point in time, waiting up to timeout for it to become available.
type TransformProvider interface {
	Lookup(ctx context.Context, target, source string, at time.Time, timeout time.Duration) (*geometry.Transform, error)
}

// Snapshot is the latest-value state a frame is processed against. A
// Snapshot is never mutated; the With* methods return updated copies.
type Snapshot struct {
	Pose      *geometry.Pose
	Route     []spatial.Waypoint
	Lights    []TrafficLight
	UpdatedAt time.Time
}

// WithPose returns a copy of s holding pose.
func (s Snapshot) WithPose(pose geometry.Pose, at time.Time) *Snapshot {
	s.Pose = &pose
	s.UpdatedAt = at
	return &s
}

// WithRoute returns a copy of s holding route. An empty route clears it.
func (s Snapshot) WithRoute(route []spatial.Waypoint, at time.Time) *Snapshot {
	if len(route) == 0 {
		s.Route = nil
	} else {
		s.Route = append([]spatial.Waypoint(nil), route...)
	}
	s.UpdatedAt = at
	return &s
}

// WithLights returns a copy of s holding lights.
func (s Snapshot) WithLights(lights []TrafficLight, at time.Time) *Snapshot {
	s.Lights = append([]TrafficLight(nil), lights...)
	s.UpdatedAt = at
	return &s
}

// Ready reports whether both pose and route are known.
func (s *Snapshot) Ready() bool {
	return s != nil && s.Pose != nil && len(s.Route) > 0
}

// Result is the raw, undebounced outcome for one frame.
type Result struct {
	Waypoint    int
	Color       Color
	CameraColor Color
	LightID     int
	Pixel       *geometry.Pixel
}

// NoDecision is the fail-closed result.
func NoDecision() Result {
	return Result{Waypoint: -1, Color: Unknown, CameraColor: Unknown, LightID: -1}
}
