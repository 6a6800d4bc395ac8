// Package rig models a skeletal humanoid avatar.
//
// A rig is a bone hierarchy with humanoid role lookup (shoulders, arms, ...)
// and a set of blendable expression channels (blink, mouth visemes, moods).
// Rigs are described in YAML and loaded into a Skeleton, which owns the live
// local rotations and derives world transforms on demand.
package rig

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// BoneRole is a logical humanoid bone name mapped to a node of a loaded rig.
type BoneRole int

const (
	Hips BoneRole = iota
	Chest
	Head
	LeftShoulder
	RightShoulder
	LeftUpperArm
	RightUpperArm
	LeftLowerArm
	RightLowerArm
)

// roleNames uses VRM humanoid bone naming.
var roleNames = map[BoneRole]string{
	Hips:          "hips",
	Chest:         "chest",
	Head:          "head",
	LeftShoulder:  "leftShoulder",
	RightShoulder: "rightShoulder",
	LeftUpperArm:  "leftUpperArm",
	RightUpperArm: "rightUpperArm",
	LeftLowerArm:  "leftLowerArm",
	RightLowerArm: "rightLowerArm",
}

// String returns the VRM humanoid name of the role.
func (r BoneRole) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return "unknown"
}

// ParseRole looks up a role by its VRM humanoid name.
func ParseRole(name string) (BoneRole, bool) {
	for role, n := range roleNames {
		if n == name {
			return role, true
		}
	}
	return 0, false
}

// Roles returns every known role in declaration order.
func Roles() []BoneRole {
	return []BoneRole{
		Hips, Chest, Head,
		LeftShoulder, RightShoulder,
		LeftUpperArm, RightUpperArm,
		LeftLowerArm, RightLowerArm,
	}
}

// Side selects an arm.
type Side int

const (
	Left Side = iota
	Right
)

// Sides lists both arms, left first.
var Sides = [2]Side{Left, Right}

// String returns "left" or "right".
func (s Side) String() string {
	if s == Left {
		return "left"
	}
	return "right"
}

// ArmRoles returns the shoulder, upper-arm and lower-arm roles of a side,
// ordered from the torso outwards.
func ArmRoles(side Side) [3]BoneRole {
	if side == Left {
		return [3]BoneRole{LeftShoulder, LeftUpperArm, LeftLowerArm}
	}
	return [3]BoneRole{RightShoulder, RightUpperArm, RightLowerArm}
}

// ControlledRoles are the six arm bones the pose engine drives every frame.
func ControlledRoles() []BoneRole {
	l, r := ArmRoles(Left), ArmRoles(Right)
	return []BoneRole{l[0], r[0], l[1], r[1], l[2], r[2]}
}

// Expression channel names (VRM 1.0 presets).
const (
	ExpressionBlink = "blink"
	ExpressionAa    = "aa"
	ExpressionIh    = "ih"
	ExpressionOu    = "ou"
)

// Transform is a rigid transform: rotation followed by translation.
type Transform struct {
	Position mgl64.Vec3
	Rotation mgl64.Quat
}

// Identity returns the identity transform.
func Identity() Transform {
	return Transform{Rotation: mgl64.QuatIdent()}
}

// Mul composes a child's local transform onto t (t is the parent's world transform).
func (t Transform) Mul(local Transform) Transform {
	return Transform{
		Position: t.Position.Add(t.Rotation.Rotate(local.Position)),
		Rotation: t.Rotation.Mul(local.Rotation),
	}
}

// EulerXYZ builds a rotation from X, Y, Z angles in radians, composed as
// qX * qY * qZ.
func EulerXYZ(x, y, z float64) mgl64.Quat {
	qx := mgl64.QuatRotate(x, mgl64.Vec3{1, 0, 0})
	qy := mgl64.QuatRotate(y, mgl64.Vec3{0, 1, 0})
	qz := mgl64.QuatRotate(z, mgl64.Vec3{0, 0, 1})
	return qx.Mul(qy).Mul(qz)
}

// YawRotation returns a rotation of yaw radians about +Y.
func YawRotation(yaw float64) mgl64.Quat {
	return mgl64.QuatRotate(yaw, mgl64.Vec3{0, 1, 0})
}

func degToRad(deg float64) float64 {
	return deg * math.Pi / 180.0
}
