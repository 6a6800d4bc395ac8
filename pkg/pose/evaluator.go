package pose

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/teslashibe/go-avatar/pkg/rig"
)

type link struct {
	position mgl64.Vec3
	rest     mgl64.Quat
	slot     int // index into ArmOffsets, or -1 for an uncontrolled bone
}

// ArmChain is a detached copy of one arm's forward-kinematics inputs.
// Evaluating it never touches the skeleton it was built from.
type ArmChain struct {
	side  rig.Side
	base  rig.Transform
	links []link
}

// NewArmChain snapshots the arm of one side: the world transform of the
// shoulder's parent plus every bone from the shoulder down to the lower arm.
func NewArmChain(skel *rig.Skeleton, rest rig.RestPose, side rig.Side) (*ArmChain, error) {
	roles := rig.ArmRoles(side)

	var bones [3]*rig.Bone
	for i, role := range roles {
		b, err := skel.ResolveBone(role)
		if err != nil {
			return nil, err
		}
		bones[i] = b
	}

	slots := map[int]int{
		bones[0].Index(): 0,
		bones[1].Index(): 1,
		bones[2].Index(): 2,
	}

	// Walk up from the lower arm until the shoulder is reached.
	var path []*rig.Bone
	for b := bones[2]; ; {
		path = append(path, b)
		if b.Index() == bones[0].Index() {
			break
		}
		if b.Parent < 0 {
			return nil, fmt.Errorf("%w: %s is not an ancestor of %s", rig.ErrMissingBone, roles[0], roles[2])
		}
		b = skel.Bone(b.Parent)
	}

	chain := &ArmChain{
		side:  side,
		base:  skel.ParentWorld(bones[0].Index()),
		links: make([]link, 0, len(path)),
	}
	for i := len(path) - 1; i >= 0; i-- {
		b := path[i]
		l := link{position: b.Position, rest: b.Rotation, slot: -1}
		if slot, ok := slots[b.Index()]; ok {
			q, ok := rest.Rotation(roles[slot])
			if !ok {
				return nil, fmt.Errorf("%w: no rest rotation for %s", rig.ErrMissingBone, roles[slot])
			}
			l.rest = q
			l.slot = slot
		}
		chain.links = append(chain.links, l)
	}
	return chain, nil
}

// Side returns the arm this chain was built for.
func (c *ArmChain) Side() rig.Side {
	return c.side
}

// ElbowPosition returns the world position of the lower-arm origin with
// the given offsets applied on top of rest.
func (c *ArmChain) ElbowPosition(offsets ArmOffsets) mgl64.Vec3 {
	t := c.base
	for _, l := range c.links {
		rot := l.rest
		if l.slot >= 0 {
			rot = rot.Mul(offsets.At(l.slot).Quat())
		}
		t = t.Mul(rig.Transform{Position: l.position, Rotation: rot})
	}
	return t.Position
}

// EvaluateArm returns the elbow world height for a candidate.
func (c *ArmChain) EvaluateArm(offsets ArmOffsets) float64 {
	return c.ElbowPosition(offsets).Y()
}

// Evaluator scores candidate arm offsets for both sides.
type Evaluator struct {
	chains [2]*ArmChain
	errs   [2]error
}

// NewEvaluator builds arm chains for both sides. A side whose bones are
// missing stays unavailable; its error is kept for diagnostics.
func NewEvaluator(skel *rig.Skeleton, rest rig.RestPose) *Evaluator {
	e := &Evaluator{}
	for _, side := range rig.Sides {
		e.chains[side], e.errs[side] = NewArmChain(skel, rest, side)
	}
	return e
}

// Available reports whether a side can be evaluated.
func (e *Evaluator) Available(side rig.Side) bool {
	return e.chains[side] != nil
}

// Err returns why a side is unavailable, or nil.
func (e *Evaluator) Err(side rig.Side) error {
	return e.errs[side]
}

// EvaluateArm returns the elbow world height for a candidate, or +Inf for
// an unavailable side.
func (e *Evaluator) EvaluateArm(side rig.Side, candidate ArmOffsets) float64 {
	c := e.chains[side]
	if c == nil {
		return math.Inf(1)
	}
	return c.EvaluateArm(candidate)
}

// RestElbowY returns the elbow height with no offsets applied.
func (e *Evaluator) RestElbowY(side rig.Side) float64 {
	return e.EvaluateArm(side, ArmOffsets{})
}
