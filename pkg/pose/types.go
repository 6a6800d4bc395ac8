// Package pose evaluates and applies arm rotation offsets on a rig.
//
// Offsets are always composed onto the captured rest rotation, never onto
// the live rotation, so re-applying them every frame does not drift.
package pose

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/teslashibe/go-avatar/pkg/rig"
)

// Offset is a rotation relative to a bone's rest rotation.
// Angles are in radians and compose as X * Y * Z.
type Offset struct {
	Pitch float64 `json:"pitch"` // about X
	Yaw   float64 `json:"yaw"`   // about Y
	Roll  float64 `json:"roll"`  // about Z
}

// OffsetDegrees builds an Offset from angles in degrees.
func OffsetDegrees(pitch, yaw, roll float64) Offset {
	return Offset{
		Pitch: mgl64.DegToRad(pitch),
		Yaw:   mgl64.DegToRad(yaw),
		Roll:  mgl64.DegToRad(roll),
	}
}

// Quat returns the offset as a quaternion.
func (o Offset) Quat() mgl64.Quat {
	return rig.EulerXYZ(o.Pitch, o.Yaw, o.Roll)
}

// IsZero reports whether the offset is the identity.
func (o Offset) IsZero() bool {
	return o == Offset{}
}

// Degrees returns pitch, yaw and roll in degrees.
func (o Offset) Degrees() (pitch, yaw, roll float64) {
	return mgl64.RadToDeg(o.Pitch), mgl64.RadToDeg(o.Yaw), mgl64.RadToDeg(o.Roll)
}

// ArmOffsets holds one offset per bone of an arm chain.
type ArmOffsets struct {
	Shoulder Offset `json:"shoulder"`
	UpperArm Offset `json:"upperArm"`
	LowerArm Offset `json:"lowerArm"`
}

// At returns the offset for slot i, in rig.ArmRoles order.
func (a ArmOffsets) At(i int) Offset {
	switch i {
	case 0:
		return a.Shoulder
	case 1:
		return a.UpperArm
	default:
		return a.LowerArm
	}
}

// ArmPose is the calibration outcome for one side.
type ArmPose struct {
	Offsets ArmOffsets `json:"offsets"`

	// Calibrated is false when the side was skipped (missing bones).
	Calibrated bool `json:"calibrated"`

	// RestElbowY and ElbowY are the elbow heights before and after the
	// offsets are applied.
	RestElbowY float64 `json:"restElbowY"`
	ElbowY     float64 `json:"elbowY"`
}

// CalibratedPose is the chosen arm pose for both sides.
type CalibratedPose struct {
	Left  ArmPose `json:"left"`
	Right ArmPose `json:"right"`
}

// Side returns the pose for one arm.
func (c CalibratedPose) Side(side rig.Side) ArmPose {
	if side == rig.Left {
		return c.Left
	}
	return c.Right
}

// Set replaces the pose for one arm.
func (c *CalibratedPose) Set(side rig.Side, p ArmPose) {
	if side == rig.Left {
		c.Left = p
		return
	}
	c.Right = p
}
