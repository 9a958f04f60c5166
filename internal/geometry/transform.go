package geometry

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

var zAxis = r3.Vec{Z: 1}

// QuaternionFromYaw returns the unit quaternion for a rotation of yaw
// radians about +Z.
func QuaternionFromYaw(yaw float64) quat.Number {
	return quat.Number(r3.NewRotation(yaw, zAxis))
}

// YawFromQuaternion extracts the rotation about +Z (static XYZ Euler
// convention) from q. The quaternion is normalised first; a zero
// quaternion yields 0.
func YawFromQuaternion(q quat.Number) float64 {
	n := quat.Abs(q)
	if n == 0 {
		return 0
	}
	w, x, y, z := q.Real/n, q.Imag/n, q.Jmag/n, q.Kmag/n
	return math.Atan2(2*(w*z+x*y), 1-2*(y*y+z*z))
}

// RotateYaw rotates the horizontal (x, y) components of p by yaw radians.
// Z is carried through unchanged.
func RotateYaw(p r3.Vec, yaw float64) r3.Vec {
	rotated := r3.NewRotation(yaw, zAxis).Rotate(r3.Vec{X: p.X, Y: p.Y})
	return r3.Vec{X: rotated.X, Y: rotated.Y, Z: p.Z}
}

// ApplyPlanar maps a world point into the body frame using only the yaw
// of tf's rotation followed by its translation.
func ApplyPlanar(p r3.Vec, tf Transform) r3.Vec {
	return r3.Add(RotateYaw(p, YawFromQuaternion(tf.Rotation)), tf.Translation)
}

// BodyTransformFromPose returns the world→body transform for a vehicle at
// pose, i.e. the inverse of the pose: R⁻¹ and −R⁻¹·p.
func BodyTransformFromPose(pose Pose) Transform {
	q := pose.Orientation
	if n := quat.Abs(q); n > 0 {
		q = quat.Scale(1/n, q)
	} else {
		q = quat.Number{Real: 1}
	}
	inv := quat.Conj(q)
	return Transform{
		Rotation:    inv,
		Translation: r3.Scale(-1, r3.Rotation(inv).Rotate(pose.Position)),
	}
}

// Inverse returns the transform mapping the other way, so that
// tf.Inverse() applied after tf is the identity.
func (tf Transform) Inverse() Transform {
	q := tf.Rotation
	if n := quat.Abs(q); n > 0 {
		q = quat.Scale(1/n, q)
	}
	inv := quat.Conj(q)
	return Transform{
		Rotation:    inv,
		Translation: r3.Scale(-1, r3.Rotation(inv).Rotate(tf.Translation)),
	}
}
