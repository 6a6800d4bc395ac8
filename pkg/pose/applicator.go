package pose

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/teslashibe/go-avatar/pkg/rig"
)

type appliedBone struct {
	index  int
	side   rig.Side
	slot   int
	rest   mgl64.Quat
	target mgl64.Quat
}

// Applicator writes a calibrated pose onto the live skeleton every frame.
type Applicator struct {
	skel  *rig.Skeleton
	bones []appliedBone
	pose  CalibratedPose
}

// NewApplicator binds the controlled bones present on the skeleton.
// Until SetPose is called it holds the zero pose, i.e. the raw rest pose.
func NewApplicator(skel *rig.Skeleton, rest rig.RestPose) *Applicator {
	a := &Applicator{skel: skel}
	for _, side := range rig.Sides {
		for slot, role := range rig.ArmRoles(side) {
			b, err := skel.ResolveBone(role)
			if err != nil {
				continue
			}
			q, ok := rest.Rotation(role)
			if !ok {
				continue
			}
			a.bones = append(a.bones, appliedBone{
				index:  b.Index(),
				side:   side,
				slot:   slot,
				rest:   q,
				target: q,
			})
		}
	}
	return a
}

// SetPose replaces the pose re-applied by ApplyFrame.
func (a *Applicator) SetPose(p CalibratedPose) {
	a.pose = p
	for i := range a.bones {
		b := &a.bones[i]
		off := p.Side(b.side).Offsets.At(b.slot)
		b.target = b.rest.Mul(off.Quat())
	}
}

// Pose returns the pose currently applied.
func (a *Applicator) Pose() CalibratedPose {
	return a.pose
}

// Bones returns the number of bound bones.
func (a *Applicator) Bones() int {
	return len(a.bones)
}

// ApplyFrame sets every bound bone to rest * offset. It must run every
// frame after any other animation has written the skeleton.
func (a *Applicator) ApplyFrame() {
	for _, b := range a.bones {
		a.skel.SetLocalRotation(b.index, b.target)
	}
}
