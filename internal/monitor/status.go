package monitor

import (
	"time"

	"github.com/banshee-data/tldetector/internal/coordinator"
	"github.com/banshee-data/tldetector/internal/geometry"
	"github.com/banshee-data/tldetector/internal/perception"
	"github.com/banshee-data/tldetector/internal/stabilizer"
)

// StatusSource is the read side of the coordinator.
type StatusSource interface {
	Snapshot() *perception.Snapshot
	Ready() bool
	LastDecision() (coordinator.Decision, bool)
	StabilizerState() stabilizer.State
	StopLineWaypoints() []int
}

// Status is the /api/status payload.
type Status struct {
	Ready             bool                  `json:"ready"`
	Pose              *geometry.Pose        `json:"pose,omitempty"`
	Yaw               float64               `json:"yaw"`
	RouteLength       int                   `json:"route_length"`
	LightCount        int                   `json:"light_count"`
	SnapshotUpdatedAt time.Time             `json:"snapshot_updated_at"`
	Stabilizer        stabilizer.State      `json:"stabilizer"`
	LastDecision      *coordinator.Decision `json:"last_decision,omitempty"`
	StopLineWaypoints []int                 `json:"stop_line_waypoints"`
}

// BuildStatus summarises src without holding any of its locks across
// calls.
func BuildStatus(src StatusSource) Status {
	snap := src.Snapshot()
	st := Status{
		Ready:             src.Ready(),
		Stabilizer:        src.StabilizerState(),
		StopLineWaypoints: src.StopLineWaypoints(),
	}
	if st.StopLineWaypoints == nil {
		st.StopLineWaypoints = []int{}
	}
	if snap != nil {
		if snap.Pose != nil {
			pose := *snap.Pose
			st.Pose = &pose
			st.Yaw = geometry.YawFromQuaternion(pose.Orientation)
		}
		st.RouteLength = len(snap.Route)
		st.LightCount = len(snap.Lights)
		st.SnapshotUpdatedAt = snap.UpdatedAt
	}
	if d, ok := src.LastDecision(); ok {
		st.LastDecision = &d
	}
	return st
}
