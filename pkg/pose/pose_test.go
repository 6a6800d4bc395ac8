package pose

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-avatar/pkg/rig"
)

func loadRig(t *testing.T, name string) (*rig.Skeleton, rig.RestPose) {
	t.Helper()
	def, err := rig.LoadEmbedded(name)
	require.NoError(t, err)
	skel, err := rig.NewSkeleton(def)
	require.NoError(t, err)
	rest, err := skel.CaptureRestPose()
	require.NoError(t, err)
	return skel, rest
}

func localRotations(skel *rig.Skeleton) []mgl64.Quat {
	out := make([]mgl64.Quat, skel.Len())
	for i := range out {
		out[i] = skel.Bone(i).Rotation
	}
	return out
}

func elbowWorld(t *testing.T, skel *rig.Skeleton, side rig.Side) mgl64.Vec3 {
	t.Helper()
	b, err := skel.ResolveBone(rig.ArmRoles(side)[2])
	require.NoError(t, err)
	return skel.WorldTransform(b.Index()).Position
}

func sampleOffsets() []ArmOffsets {
	return []ArmOffsets{
		{},
		{Shoulder: OffsetDegrees(0, 0, -35), UpperArm: OffsetDegrees(0, 0, -70), LowerArm: OffsetDegrees(10, 0, 0)},
		{Shoulder: OffsetDegrees(0, 0, 25), UpperArm: OffsetDegrees(-15, 0, 95), LowerArm: OffsetDegrees(34, 0, 0)},
		{Shoulder: OffsetDegrees(5, 10, 15), UpperArm: OffsetDegrees(8, -20, 105), LowerArm: OffsetDegrees(18, 3, 0)},
	}
}

func TestOffset(t *testing.T) {
	o := OffsetDegrees(90, 0, 180)
	assert.InDelta(t, math.Pi/2, o.Pitch, 1e-12)
	assert.InDelta(t, math.Pi, o.Roll, 1e-12)

	p, y, r := o.Degrees()
	assert.InDelta(t, 90.0, p, 1e-9)
	assert.InDelta(t, 0.0, y, 1e-9)
	assert.InDelta(t, 180.0, r, 1e-9)

	assert.True(t, Offset{}.IsZero())
	assert.False(t, o.IsZero())
	assert.True(t, Offset{}.Quat().ApproxEqual(mgl64.QuatIdent()))
}

func TestArmOffsetsAt(t *testing.T) {
	a := ArmOffsets{
		Shoulder: Offset{Roll: 1},
		UpperArm: Offset{Roll: 2},
		LowerArm: Offset{Roll: 3},
	}
	assert.Equal(t, 1.0, a.At(0).Roll)
	assert.Equal(t, 2.0, a.At(1).Roll)
	assert.Equal(t, 3.0, a.At(2).Roll)
}

func TestCalibratedPoseSide(t *testing.T) {
	var c CalibratedPose
	c.Set(rig.Left, ArmPose{Calibrated: true, ElbowY: 1})
	c.Set(rig.Right, ArmPose{ElbowY: 2})

	assert.True(t, c.Side(rig.Left).Calibrated)
	assert.False(t, c.Side(rig.Right).Calibrated)
	assert.Equal(t, 2.0, c.Side(rig.Right).ElbowY)
}

func TestEvaluatorRestMatchesSkeleton(t *testing.T) {
	for _, name := range []string{"tpose", "relaxed"} {
		t.Run(name, func(t *testing.T) {
			skel, rest := loadRig(t, name)
			e := NewEvaluator(skel, rest)

			for _, side := range rig.Sides {
				require.True(t, e.Available(side))
				require.NoError(t, e.Err(side))
				assert.InDelta(t, elbowWorld(t, skel, side).Y(), e.RestElbowY(side), 1e-12)
			}
		})
	}
}

// EvaluateArm must agree with actually writing the offsets to the rig.
func TestEvaluatorMatchesApplicator(t *testing.T) {
	skel, rest := loadRig(t, "relaxed")
	e := NewEvaluator(skel, rest)
	app := NewApplicator(skel, rest)

	for _, off := range sampleOffsets() {
		app.SetPose(CalibratedPose{
			Left:  ArmPose{Offsets: off},
			Right: ArmPose{Offsets: off},
		})
		app.ApplyFrame()

		for _, side := range rig.Sides {
			assert.InDelta(t, elbowWorld(t, skel, side).Y(), e.EvaluateArm(side, off), 1e-12)
		}
	}
}

func TestEvaluateLeavesRigUntouched(t *testing.T) {
	skel, rest := loadRig(t, "tpose")
	before := localRotations(skel)
	e := NewEvaluator(skel, rest)

	for i := 0; i < 50; i++ {
		for _, off := range sampleOffsets() {
			e.EvaluateArm(rig.Left, off)
			e.EvaluateArm(rig.Right, off)
		}
	}

	after := localRotations(skel)
	require.Equal(t, len(before), len(after))
	for i := range before {
		assert.Equal(t, before[i], after[i], "bone %s", skel.Bone(i).Name)
	}
	for _, role := range rig.ControlledRoles() {
		b, err := skel.ResolveBone(role)
		require.NoError(t, err)
		q, _ := rest.Rotation(role)
		assert.Equal(t, q, b.Rotation)
	}
}

func TestEvaluatorMissingSide(t *testing.T) {
	def, err := rig.LoadEmbedded("tpose")
	require.NoError(t, err)

	var bones []rig.BoneDef
	for _, b := range def.Bones {
		if b.Name == "rightLowerArm" {
			continue
		}
		if b.Parent == "rightLowerArm" {
			b.Parent = "rightUpperArm"
		}
		bones = append(bones, b)
	}
	def.Bones = bones

	skel, err := rig.NewSkeleton(def)
	require.NoError(t, err)
	rest, err := skel.CaptureRestPose()
	require.NoError(t, err)

	e := NewEvaluator(skel, rest)
	assert.True(t, e.Available(rig.Left))
	assert.False(t, e.Available(rig.Right))
	assert.ErrorIs(t, e.Err(rig.Right), rig.ErrMissingBone)
	assert.True(t, math.IsInf(e.EvaluateArm(rig.Right, ArmOffsets{}), 1))

	app := NewApplicator(skel, rest)
	assert.Equal(t, 5, app.Bones())
}

func TestArmChainIntermediateBone(t *testing.T) {
	def := &rig.Definition{Bones: []rig.BoneDef{
		{Name: "hips", Position: [3]float64{0, 1, 0}},
		{Name: "leftShoulder", Parent: "hips"},
		{Name: "leftUpperArm", Parent: "leftShoulder", Position: [3]float64{0.1, 0, 0}},
		{Name: "leftArmTwist", Parent: "leftUpperArm", Position: [3]float64{0.1, 0, 0}},
		{Name: "leftLowerArm", Parent: "leftArmTwist", Position: [3]float64{0.1, 0, 0}},
	}}
	skel, err := rig.NewSkeleton(def)
	require.NoError(t, err)
	rest, err := skel.CaptureRestPose()
	require.NoError(t, err)

	chain, err := NewArmChain(skel, rest, rig.Left)
	require.NoError(t, err)
	assert.Equal(t, rig.Left, chain.Side())

	pos := chain.ElbowPosition(ArmOffsets{})
	assert.True(t, pos.ApproxEqualThreshold(mgl64.Vec3{0.3, 1, 0}, 1e-12))

	// Lowering the upper arm swings the twist bone with it.
	pos = chain.ElbowPosition(ArmOffsets{UpperArm: OffsetDegrees(0, 0, -90)})
	assert.True(t, pos.ApproxEqualThreshold(mgl64.Vec3{0.1, 0.8, 0}, 1e-12))

	_, err = NewArmChain(skel, rest, rig.Right)
	assert.ErrorIs(t, err, rig.ErrMissingBone)
}

func TestArmChainBrokenHierarchy(t *testing.T) {
	def := &rig.Definition{Bones: []rig.BoneDef{
		{Name: "hips"},
		{Name: "leftShoulder", Parent: "hips"},
		{Name: "leftUpperArm", Parent: "hips"},
		{Name: "leftLowerArm", Parent: "leftUpperArm"},
	}}
	skel, err := rig.NewSkeleton(def)
	require.NoError(t, err)
	rest, err := skel.CaptureRestPose()
	require.NoError(t, err)

	_, err = NewArmChain(skel, rest, rig.Left)
	assert.ErrorIs(t, err, rig.ErrMissingBone)
}

func TestApplicatorZeroPoseIsRest(t *testing.T) {
	skel, rest := loadRig(t, "relaxed")
	app := NewApplicator(skel, rest)
	assert.Equal(t, 6, app.Bones())

	for _, role := range rig.ControlledRoles() {
		b, err := skel.ResolveBone(role)
		require.NoError(t, err)
		skel.SetLocalRotation(b.Index(), mgl64.QuatRotate(1, mgl64.Vec3{0, 1, 0}))
	}

	app.ApplyFrame()
	for _, role := range rig.ControlledRoles() {
		b, err := skel.ResolveBone(role)
		require.NoError(t, err)
		q, _ := rest.Rotation(role)
		assert.Equal(t, q, b.Rotation, role.String())
	}
}

func TestApplicatorIdempotent(t *testing.T) {
	skel, rest := loadRig(t, "tpose")
	app := NewApplicator(skel, rest)
	off := sampleOffsets()[3]
	app.SetPose(CalibratedPose{Left: ArmPose{Offsets: off, Calibrated: true}})
	assert.Equal(t, off, app.Pose().Left.Offsets)

	app.ApplyFrame()
	first := localRotations(skel)
	app.ApplyFrame()
	second := localRotations(skel)
	assert.Equal(t, first, second)

	// Other writers are overridden on the next frame.
	b, err := skel.ResolveBone(rig.LeftUpperArm)
	require.NoError(t, err)
	skel.SetLocalRotation(b.Index(), mgl64.QuatIdent())
	app.ApplyFrame()
	assert.Equal(t, first, localRotations(skel))
}

func TestApplicatorLeavesOtherBones(t *testing.T) {
	skel, rest := loadRig(t, "tpose")
	head, ok := skel.BoneByName("head")
	require.True(t, ok)
	nod := mgl64.QuatRotate(0.3, mgl64.Vec3{1, 0, 0})
	skel.SetLocalRotation(head.Index(), nod)

	app := NewApplicator(skel, rest)
	app.SetPose(CalibratedPose{Right: ArmPose{Offsets: sampleOffsets()[1]}})
	app.ApplyFrame()

	assert.Equal(t, nod, skel.Bone(head.Index()).Rotation)
}
