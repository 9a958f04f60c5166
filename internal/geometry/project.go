package geometry

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Calibration defaults. The fallback focal lengths were fitted against the
// simulator camera, whose camera_info reports focal lengths near 1.
const (
	DefaultFallbackFocalLengthX = 2244.0
	DefaultFallbackFocalLengthY = 2552.0
	DefaultMinFocalLength       = 10.0
	DefaultVerticalOffset       = 1.0 // metres, camera mounting height correction
)

// Projector maps world-frame points to camera pixels.
type Projector struct {
	FallbackFocalLengthX float64
	FallbackFocalLengthY float64
	MinFocalLength       float64
	VerticalOffset       float64
}

// DefaultProjector returns a Projector with the calibrated defaults.
func DefaultProjector() Projector {
	return Projector{
		FallbackFocalLengthX: DefaultFallbackFocalLengthX,
		FallbackFocalLengthY: DefaultFallbackFocalLengthY,
		MinFocalLength:       DefaultMinFocalLength,
		VerticalOffset:       DefaultVerticalOffset,
	}
}

// Project places point (world frame) in the image described by in, using
// the world→body transform tf.
//
// The image origin for Y is the bottom row, not the optical centre; this
// matches how the detector was calibrated against the simulator camera.
func (p Projector) Project(point r3.Vec, tf *Transform, in Intrinsics) (Pixel, error) {
	if tf == nil {
		return Pixel{}, fmt.Errorf("%w: no transform", ErrUnavailable)
	}
	if !tf.IsValid() {
		return Pixel{}, fmt.Errorf("%w: invalid transform", ErrUnavailable)
	}

	in = in.WithFallback(p.FallbackFocalLengthX, p.FallbackFocalLengthY, p.MinFocalLength)

	cam := ApplyPlanar(point, *tf)
	cam.Z -= p.VerticalOffset

	if cam.X == 0 {
		return Pixel{Camera: cam}, fmt.Errorf("%w: point lies in the camera plane", ErrUnavailable)
	}

	x := -cam.Y*in.FocalLengthX/cam.X + float64(in.ImageWidth/2)
	y := -cam.Z*in.FocalLengthY/cam.X + float64(in.ImageHeight)
	if !representable(x) || !representable(y) {
		return Pixel{Camera: cam}, fmt.Errorf("%w: pixel (%g, %g) out of range", ErrUnavailable, x, y)
	}

	return Pixel{X: int(x), Y: int(y), Camera: cam}, nil
}

// MaxPixelCoordinate bounds projected coordinates so that pixel arithmetic
// such as crop windows cannot overflow int.
const MaxPixelCoordinate = 1 << 30

func representable(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && math.Abs(v) <= MaxPixelCoordinate
}
