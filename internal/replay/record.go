// Package replay reads recorded detector inputs (JSON lines, one message
// per line) and turns them into coordinator events.
//
// Record shapes:
//
//	{"type":"pose","t":0.0,"position":[x,y,z],"yaw":0.0}
//	{"type":"pose","t":0.0,"position":[x,y,z],"orientation":[w,x,y,z]}
//	{"type":"route","t":0.0,"waypoints":[[x,y,z],...]}
//	{"type":"lights","t":0.0,"lights":[{"id":1,"position":[x,y,z],"state":"RED"}]}
//	{"type":"frame","t":0.1,"image":"frames/0001.png","camera_info":{...}}
//
// t is seconds since the start of the recording. A light without a state
// carries no ground truth. A frame without an image runs the ground-truth
// path only. Image paths must stay inside the recording's directory.
// Blank lines and lines starting with '#' are ignored.
package replay

import (
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/tldetector/internal/coordinator"
	"github.com/banshee-data/tldetector/internal/geometry"
	"github.com/banshee-data/tldetector/internal/perception"
	"github.com/banshee-data/tldetector/internal/spatial"
)

// Record types.
const (
	TypePose   = "pose"
	TypeRoute  = "route"
	TypeLights = "lights"
	TypeFrame  = "frame"
)

// ErrUnknownRecord is returned for a record whose type is not recognised.
var ErrUnknownRecord = errors.New("unknown record type")

// Record is one line of a recording.
type Record struct {
	Type        string               `json:"type"`
	T           float64              `json:"t"`
	Position    *[3]float64          `json:"position,omitempty"`
	Yaw         *float64             `json:"yaw,omitempty"`
	Orientation *[4]float64          `json:"orientation,omitempty"` // w, x, y, z
	Waypoints   [][3]float64         `json:"waypoints,omitempty"`
	Lights      []LightRecord        `json:"lights,omitempty"`
	Image       string               `json:"image,omitempty"`
	CameraInfo  *geometry.Intrinsics `json:"camera_info,omitempty"`
}

// LightRecord is one traffic light in a lights record.
type LightRecord struct {
	ID       int               `json:"id"`
	Position [3]float64        `json:"position"`
	State    *perception.Color `json:"state,omitempty"`
}

func vec(p [3]float64) r3.Vec { return r3.Vec{X: p[0], Y: p[1], Z: p[2]} }

// Time returns the record's timestamp relative to base.
func (r Record) Time(base time.Time) time.Time {
	return base.Add(time.Duration(r.T * float64(time.Second)))
}

func (r Record) validate() error {
	if math.IsNaN(r.T) || math.IsInf(r.T, 0) || r.T < 0 {
		return fmt.Errorf("invalid timestamp %v", r.T)
	}
	switch r.Type {
	case TypePose:
		if r.Position == nil {
			return errors.New("pose record without position")
		}
	case TypeRoute:
		if len(r.Waypoints) == 0 {
			return errors.New("route record without waypoints")
		}
	case TypeLights, TypeFrame:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownRecord, r.Type)
	}
	return nil
}

func (r Record) pose() geometry.Pose {
	pose := geometry.Pose{Position: vec(*r.Position), Orientation: quat.Number{Real: 1}}
	switch {
	case r.Orientation != nil:
		o := r.Orientation
		pose.Orientation = quat.Number{Real: o[0], Imag: o[1], Jmag: o[2], Kmag: o[3]}
	case r.Yaw != nil:
		pose.Orientation = geometry.QuaternionFromYaw(*r.Yaw)
	}
	return pose
}

func (r Record) route() []spatial.Waypoint {
	out := make([]spatial.Waypoint, len(r.Waypoints))
	for i, p := range r.Waypoints {
		out[i] = spatial.Waypoint{Index: i, Position: vec(p)}
	}
	return out
}

func (r Record) lights() []perception.TrafficLight {
	out := make([]perception.TrafficLight, len(r.Lights))
	for i, l := range r.Lights {
		out[i] = perception.TrafficLight{ID: l.ID, Position: vec(l.Position), State: perception.Unknown}
		if l.State != nil {
			out[i].State = *l.State
			out[i].HasState = true
		}
	}
	return out
}

// event converts a non-frame record into a coordinator event.
func (r Record) event(base time.Time) (coordinator.Event, error) {
	at := r.Time(base)
	switch r.Type {
	case TypePose:
		return coordinator.PoseUpdate{Pose: r.pose(), At: at}, nil
	case TypeRoute:
		return coordinator.RouteUpdate{Waypoints: r.route(), At: at}, nil
	case TypeLights:
		return coordinator.LightsUpdate{Lights: r.lights(), At: at}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownRecord, r.Type)
}
