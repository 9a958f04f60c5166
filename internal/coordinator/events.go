package coordinator

import (
	"time"

	"github.com/banshee-data/tldetector/internal/geometry"
	"github.com/banshee-data/tldetector/internal/perception"
	"github.com/banshee-data/tldetector/internal/spatial"
)

// Event is one input to the coordinator loop.
type Event interface {
	eventKind() string
}

// PoseUpdate replaces the current vehicle pose.
type PoseUpdate struct {
	Pose geometry.Pose
	At   time.Time
}

// RouteUpdate replaces the route. Waypoints are re-indexed by position.
type RouteUpdate struct {
	Waypoints []spatial.Waypoint
	At        time.Time
}

// LightsUpdate replaces the set of known traffic lights.
type LightsUpdate struct {
	Lights []perception.TrafficLight
	At     time.Time
}

// FrameEvent carries one camera frame. Each FrameEvent produces exactly one
// published Decision.
type FrameEvent struct {
	Frame perception.CameraFrame
}

// recordedPose is a PoseUpdate already added to the pose recorder by
// Submit. The loop only applies it to the snapshot.
type recordedPose struct {
	PoseUpdate
}

func (PoseUpdate) eventKind() string   { return "pose" }
func (RouteUpdate) eventKind() string  { return "route" }
func (LightsUpdate) eventKind() string { return "lights" }
func (FrameEvent) eventKind() string   { return "frame" }
