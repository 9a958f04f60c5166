// Package spatial matches world-frame positions against candidate sets:
// the light nearest the vehicle and the waypoint nearest a light.
package spatial

import (
	"errors"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// ErrNoCandidates is returned when a nearest query is made against an
// empty candidate list.
var ErrNoCandidates = errors.New("no candidates")

// Positioned is anything with a world-frame position.
type Positioned interface {
	WorldPosition() r3.Vec
}

// Waypoint is one entry of the planned route. Index is its position in
// the route and is what the detector publishes.
type Waypoint struct {
	Index    int    `json:"index"`
	Position r3.Vec `json:"position"`
}

// WorldPosition implements Positioned.
func (w Waypoint) WorldPosition() r3.Vec { return w.Position }

// Point wraps a bare position so it can be matched directly.
type Point r3.Vec

// WorldPosition implements Positioned.
func (p Point) WorldPosition() r3.Vec { return r3.Vec(p) }

// Horizontal projects p onto the ground plane.
func Horizontal(p r3.Vec) r2.Vec {
	return r2.Vec{X: p.X, Y: p.Y}
}

// HorizontalDistance is the Euclidean distance between a and b ignoring Z.
func HorizontalDistance(a, b r3.Vec) float64 {
	return r2.Norm(r2.Sub(Horizontal(a), Horizontal(b)))
}

// Nearest returns the index of the candidate horizontally closest to
// query. The scan is linear; on ties the earliest candidate wins.
func Nearest[T Positioned](query r3.Vec, candidates []T) (int, error) {
	if len(candidates) == 0 {
		return -1, ErrNoCandidates
	}
	q := Horizontal(query)
	best := 0
	bestDist := r2.Norm2(r2.Sub(q, Horizontal(candidates[0].WorldPosition())))
	for i := 1; i < len(candidates); i++ {
		d := r2.Norm2(r2.Sub(q, Horizontal(candidates[i].WorldPosition())))
		if d < bestDist {
			best, bestDist = i, d
		}
	}
	return best, nil
}

// NearestWaypoint returns the route waypoint closest to query.
func NearestWaypoint(query r3.Vec, route []Waypoint) (Waypoint, error) {
	i, err := Nearest(query, route)
	if err != nil {
		return Waypoint{}, err
	}
	return route[i], nil
}
