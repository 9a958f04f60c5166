// Package geometry owns the frame transforms and the camera model used to
// place a world-frame traffic light in the camera image.
//
// Coordinate convention: world and body frames are X=forward, Y=left,
// Z=up. Only the yaw component of a transform's rotation is applied when
// projecting; the vehicle is assumed to drive on a near-planar road with
// negligible roll and pitch.
//
// Key types: Pose, Transform, Intrinsics, Projector.
package geometry
