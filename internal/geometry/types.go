package geometry

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// ErrUnavailable is returned when a projection cannot produce a meaningful
// pixel: no transform, an invalid transform, or a point in the camera plane.
var ErrUnavailable = errors.New("projection unavailable")

// QuaternionTolerance bounds how far a rotation quaternion's norm may
// drift from 1 before the transform is treated as invalid.
const QuaternionTolerance = 0.01

// Pose is the vehicle position and orientation in the world frame.
type Pose struct {
	Position    r3.Vec
	Orientation quat.Number // unit quaternion; Real=w, Imag=x, Jmag=y, Kmag=z
}

// Transform maps world-frame points into the vehicle body frame.
type Transform struct {
	Rotation    quat.Number
	Translation r3.Vec
}

// IsValid reports whether the transform has finite components and a
// rotation quaternion of (approximately) unit norm.
func (tf *Transform) IsValid() bool {
	if tf == nil {
		return false
	}
	for _, v := range []float64{
		tf.Rotation.Real, tf.Rotation.Imag, tf.Rotation.Jmag, tf.Rotation.Kmag,
		tf.Translation.X, tf.Translation.Y, tf.Translation.Z,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return math.Abs(quat.Abs(tf.Rotation)-1) <= QuaternionTolerance
}

// Intrinsics describes the pinhole camera.
type Intrinsics struct {
	FocalLengthX float64 `yaml:"focal_length_x" json:"focal_length_x"`
	FocalLengthY float64 `yaml:"focal_length_y" json:"focal_length_y"`
	ImageWidth   int     `yaml:"image_width" json:"image_width"`
	ImageHeight  int     `yaml:"image_height" json:"image_height"`
}

// WithFallback returns a copy of in where any focal length below
// minFocal is replaced by the matching fallback value. Simulator camera
// info reports focal lengths near 1 when no calibration is present.
func (in Intrinsics) WithFallback(fallbackX, fallbackY, minFocal float64) Intrinsics {
	if in.FocalLengthX < minFocal {
		in.FocalLengthX = fallbackX
	}
	if in.FocalLengthY < minFocal {
		in.FocalLengthY = fallbackY
	}
	return in
}

// Pixel is a projected image location. Camera holds the body-frame point
// (after the vertical offset) the pixel was computed from.
type Pixel struct {
	X      int    `json:"x"`
	Y      int    `json:"y"`
	Camera r3.Vec `json:"camera"`
}

// InFront reports whether the projected point lies ahead of the camera.
func (p Pixel) InFront() bool {
	return p.Camera.X > 0
}

// Within reports whether the pixel falls inside a width × height image.
func (p Pixel) Within(width, height int) bool {
	return p.X >= 0 && p.X < width && p.Y >= 0 && p.Y < height
}
