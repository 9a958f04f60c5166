// Package tfbuffer keeps a short, time-indexed history of the vehicle's
// world→body transform and answers blocking lookups against it.
//
// The buffer is fed from pose updates. A lookup for a time newer than the
// latest pose waits for a newer pose to arrive, up to a timeout.
package tfbuffer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/tldetector/internal/geometry"
	"github.com/banshee-data/tldetector/internal/timeutil"
)

// Frame names.
const (
	FrameWorld = "/world"
	FrameBody  = "/base_link"
)

// DefaultCacheDuration is how much pose history is retained.
const DefaultCacheDuration = 10 * time.Second

var (
	// ErrTransformTimeout is returned when no pose covering the requested
	// time arrives before the lookup timeout.
	ErrTransformTimeout = errors.New("transform lookup timed out")

	// ErrUnknownFrame is returned for frame names the buffer does not know.
	ErrUnknownFrame = errors.New("unknown frame")

	// ErrExpired is returned when the requested time is older than the
	// retained history.
	ErrExpired = errors.New("transform history expired")
)

type stamped struct {
	at   time.Time
	pose geometry.Pose
}

// Buffer is safe for concurrent use.
type Buffer struct {
	mu            sync.Mutex
	clock         timeutil.Clock
	cacheDuration time.Duration
	history       []stamped // sorted by at
	updated       chan struct{}
}

// New creates an empty Buffer. A nil clock uses the real clock; a
// non-positive cacheDuration uses DefaultCacheDuration.
func New(clock timeutil.Clock, cacheDuration time.Duration) *Buffer {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if cacheDuration <= 0 {
		cacheDuration = DefaultCacheDuration
	}
	return &Buffer{
		clock:         clock,
		cacheDuration: cacheDuration,
		updated:       make(chan struct{}),
	}
}

// AddPose records the vehicle pose at time at and wakes any waiting
// lookups. A zero at is stamped with the clock's current time.
func (b *Buffer) AddPose(pose geometry.Pose, at time.Time) {
	if at.IsZero() {
		at = b.clock.Now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	i := sort.Search(len(b.history), func(i int) bool { return !b.history[i].at.Before(at) })
	if i < len(b.history) && b.history[i].at.Equal(at) {
		b.history[i].pose = pose
	} else {
		b.history = append(b.history, stamped{})
		copy(b.history[i+1:], b.history[i:])
		b.history[i] = stamped{at: at, pose: pose}
	}

	cutoff := b.history[len(b.history)-1].at.Add(-b.cacheDuration)
	drop := sort.Search(len(b.history), func(i int) bool { return !b.history[i].at.Before(cutoff) })
	if drop > 0 {
		b.history = append(b.history[:0], b.history[drop:]...)
	}

	close(b.updated)
	b.updated = make(chan struct{})
}

// Len returns the number of retained poses.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.history)
}

// Latest returns the newest pose and its time.
func (b *Buffer) Latest() (geometry.Pose, time.Time, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.history) == 0 {
		return geometry.Pose{}, time.Time{}, false
	}
	last := b.history[len(b.history)-1]
	return last.pose, last.at, true
}

// Lookup returns the transform that maps points in source into target at
// time at. A zero at asks for the latest available transform. When no pose
// at or after at has been recorded yet, Lookup waits up to timeout for one.
func (b *Buffer) Lookup(ctx context.Context, target, source string, at time.Time, timeout time.Duration) (*geometry.Transform, error) {
	if !known(target) || !known(source) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrUnknownFrame, source, target)
	}
	if target == source {
		return &geometry.Transform{Rotation: quat.Number{Real: 1}}, nil
	}

	var timer timeutil.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		b.mu.Lock()
		pose, err := b.poseAtLocked(at)
		updated := b.updated
		b.mu.Unlock()

		if err == nil {
			tf := geometry.BodyTransformFromPose(pose)
			if target == FrameWorld {
				tf = tf.Inverse()
			}
			return &tf, nil
		}
		if !errors.Is(err, errNotYet) {
			return nil, err
		}
		if timeout <= 0 {
			return nil, fmt.Errorf("%w: no pose at %s", ErrTransformTimeout, at.Format(time.RFC3339Nano))
		}
		if timer == nil {
			timer = b.clock.NewTimer(timeout)
		}

		select {
		case <-updated:
		case <-timer.C():
			return nil, fmt.Errorf("%w after %s", ErrTransformTimeout, timeout)
		case <-ctx.Done():
			return nil, fmt.Errorf("transform lookup: %w", ctx.Err())
		}
	}
}

var errNotYet = errors.New("not yet available")

// poseAtLocked resolves the pose at time at, interpolating between the two
// bracketing entries.
func (b *Buffer) poseAtLocked(at time.Time) (geometry.Pose, error) {
	n := len(b.history)
	if n == 0 {
		return geometry.Pose{}, errNotYet
	}
	if at.IsZero() {
		return b.history[n-1].pose, nil
	}
	if at.After(b.history[n-1].at) {
		return geometry.Pose{}, errNotYet
	}
	if at.Before(b.history[0].at) {
		return geometry.Pose{}, fmt.Errorf("%w: %s precedes oldest pose %s",
			ErrExpired, at.Format(time.RFC3339Nano), b.history[0].at.Format(time.RFC3339Nano))
	}

	i := sort.Search(n, func(i int) bool { return !b.history[i].at.Before(at) })
	if b.history[i].at.Equal(at) || i == 0 {
		return b.history[i].pose, nil
	}
	prev, next := b.history[i-1], b.history[i]
	frac := float64(at.Sub(prev.at)) / float64(next.at.Sub(prev.at))
	return interpolate(prev.pose, next.pose, frac), nil
}

// interpolate blends two poses: position linearly, orientation by
// normalised linear interpolation along the shorter arc.
func interpolate(a, b geometry.Pose, frac float64) geometry.Pose {
	pos := r3.Add(a.Position, r3.Scale(frac, r3.Sub(b.Position, a.Position)))

	qa, qb := a.Orientation, b.Orientation
	dot := qa.Real*qb.Real + qa.Imag*qb.Imag + qa.Jmag*qb.Jmag + qa.Kmag*qb.Kmag
	if dot < 0 {
		qb = quat.Scale(-1, qb)
	}
	q := quat.Add(quat.Scale(1-frac, qa), quat.Scale(frac, qb))
	if n := quat.Abs(q); n > 0 {
		q = quat.Scale(1/n, q)
	}
	return geometry.Pose{Position: pos, Orientation: q}
}

func known(frame string) bool {
	return frame == FrameWorld || frame == FrameBody
}
