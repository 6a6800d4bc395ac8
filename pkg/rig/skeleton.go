package rig

import (
	"fmt"
	"sort"

	"github.com/go-gl/mathgl/mgl64"
)

// Bone is a node of the skeletal hierarchy.
type Bone struct {
	Name string

	// Parent is the index of the parent bone, or -1 for a root bone.
	Parent int

	// Position is the local translation relative to the parent.
	Position mgl64.Vec3

	// Rotation is the local rotation relative to the parent.
	Rotation mgl64.Quat

	index int
}

// Index returns the bone's position in the skeleton's evaluation order.
func (b *Bone) Index() int {
	return b.index
}

// Local returns the bone's local transform.
func (b *Bone) Local() Transform {
	return Transform{Position: b.Position, Rotation: b.Rotation}
}

// RestPose is the role -> local rotation snapshot taken once after load.
type RestPose struct {
	rotations map[BoneRole]mgl64.Quat
}

// Rotation returns the captured rest rotation of a role.
func (r RestPose) Rotation(role BoneRole) (mgl64.Quat, bool) {
	q, ok := r.rotations[role]
	return q, ok
}

// Roles returns the captured roles in declaration order.
func (r RestPose) Roles() []BoneRole {
	var roles []BoneRole
	for _, role := range Roles() {
		if _, ok := r.rotations[role]; ok {
			roles = append(roles, role)
		}
	}
	return roles
}

// Len returns the number of captured roles.
func (r RestPose) Len() int {
	return len(r.rotations)
}

// Skeleton is a loaded rig instance. It is not safe for concurrent use;
// all mutation happens on the render loop.
type Skeleton struct {
	name  string
	bones []*Bone
	names map[string]int
	roles map[BoneRole]int

	rootYaw float64
	world   []Transform
	dirty   bool

	expressions map[string]float64
	exprOrder   []string

	restCaptured bool
}

// NewSkeleton builds a skeleton from a rig definition. Bones are reordered
// so that every parent precedes its children.
func NewSkeleton(def *Definition) (*Skeleton, error) {
	if def == nil || len(def.Bones) == 0 {
		return nil, fmt.Errorf("%w: empty rig definition", ErrRigLoad)
	}

	ordered, err := sortBones(def.Bones)
	if err != nil {
		return nil, err
	}

	s := &Skeleton{
		name:        def.Name,
		bones:       make([]*Bone, 0, len(ordered)),
		names:       make(map[string]int, len(ordered)),
		roles:       make(map[BoneRole]int),
		world:       make([]Transform, len(ordered)),
		dirty:       true,
		expressions: make(map[string]float64, len(def.Expressions)),
	}

	for i, bd := range ordered {
		parent := -1
		if bd.Parent != "" {
			parent = s.names[bd.Parent]
		}
		s.bones = append(s.bones, &Bone{
			Name:     bd.Name,
			Parent:   parent,
			Position: mgl64.Vec3{bd.Position[0], bd.Position[1], bd.Position[2]},
			Rotation: restRotation(bd),
			index:    i,
		})
		s.names[bd.Name] = i
	}

	for _, role := range Roles() {
		if idx, ok := s.names[def.boneName(role)]; ok {
			s.roles[role] = idx
		}
	}

	for _, name := range def.Expressions {
		if _, dup := s.expressions[name]; dup {
			continue
		}
		s.expressions[name] = 0
		s.exprOrder = append(s.exprOrder, name)
	}

	return s, nil
}

// sortBones validates names and parents and returns the bones in
// parent-first order, keeping file order among siblings.
func sortBones(defs []BoneDef) ([]BoneDef, error) {
	byName := make(map[string]BoneDef, len(defs))
	for _, bd := range defs {
		if bd.Name == "" {
			return nil, fmt.Errorf("%w: bone without a name", ErrRigLoad)
		}
		if _, dup := byName[bd.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate bone %q", ErrRigLoad, bd.Name)
		}
		byName[bd.Name] = bd
	}
	for _, bd := range defs {
		if bd.Parent == "" {
			continue
		}
		if _, ok := byName[bd.Parent]; !ok {
			return nil, fmt.Errorf("%w: bone %q has unknown parent %q", ErrRigLoad, bd.Name, bd.Parent)
		}
	}

	placed := make(map[string]bool, len(defs))
	ordered := make([]BoneDef, 0, len(defs))
	for len(ordered) < len(defs) {
		progress := false
		for _, bd := range defs {
			if placed[bd.Name] {
				continue
			}
			if bd.Parent == "" || placed[bd.Parent] {
				ordered = append(ordered, bd)
				placed[bd.Name] = true
				progress = true
			}
		}
		if !progress {
			var stuck []string
			for _, bd := range defs {
				if !placed[bd.Name] {
					stuck = append(stuck, bd.Name)
				}
			}
			sort.Strings(stuck)
			return nil, fmt.Errorf("%w: cyclic bone hierarchy: %v", ErrRigLoad, stuck)
		}
	}
	return ordered, nil
}

func restRotation(bd BoneDef) mgl64.Quat {
	switch {
	case bd.Quaternion != nil:
		q := bd.Quaternion
		return mgl64.Quat{W: q[3], V: mgl64.Vec3{q[0], q[1], q[2]}}.Normalize()
	case bd.Rotation != nil:
		r := bd.Rotation
		return EulerXYZ(degToRad(r[0]), degToRad(r[1]), degToRad(r[2]))
	default:
		return mgl64.QuatIdent()
	}
}

// Name returns the rig name.
func (s *Skeleton) Name() string {
	return s.name
}

// Len returns the number of bones.
func (s *Skeleton) Len() int {
	return len(s.bones)
}

// Bone returns the bone at index i.
func (s *Skeleton) Bone(i int) *Bone {
	return s.bones[i]
}

// BoneByName looks up a bone by its rig name.
func (s *Skeleton) BoneByName(name string) (*Bone, bool) {
	idx, ok := s.names[name]
	if !ok {
		return nil, false
	}
	return s.bones[idx], true
}

// ResolveBone returns the bone bound to a humanoid role.
func (s *Skeleton) ResolveBone(role BoneRole) (*Bone, error) {
	idx, ok := s.roles[role]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingBone, role)
	}
	return s.bones[idx], nil
}

// HasArm reports whether all three bones of a side are present.
func (s *Skeleton) HasArm(side Side) bool {
	for _, role := range ArmRoles(side) {
		if _, ok := s.roles[role]; !ok {
			return false
		}
	}
	return true
}

// CaptureRestPose snapshots the local rotation of every resolved role.
// It must be called exactly once, before any offset is applied.
func (s *Skeleton) CaptureRestPose() (RestPose, error) {
	if s.restCaptured {
		return RestPose{}, ErrRestPoseCaptured
	}
	s.restCaptured = true

	rest := RestPose{rotations: make(map[BoneRole]mgl64.Quat, len(s.roles))}
	for role, idx := range s.roles {
		rest.rotations[role] = s.bones[idx].Rotation
	}
	return rest, nil
}

// SetLocalRotation replaces a bone's local rotation and marks world
// transforms dirty.
func (s *Skeleton) SetLocalRotation(i int, q mgl64.Quat) {
	s.bones[i].Rotation = q
	s.dirty = true
}

// RootYaw returns the avatar root rotation about +Y in radians.
func (s *Skeleton) RootYaw() float64 {
	return s.rootYaw
}

// SetRootYaw rotates the whole avatar about +Y.
func (s *Skeleton) SetRootYaw(yaw float64) {
	if yaw == s.rootYaw {
		return
	}
	s.rootYaw = yaw
	s.dirty = true
}

// Root returns the avatar root transform.
func (s *Skeleton) Root() Transform {
	return Transform{Rotation: YawRotation(s.rootYaw)}
}

// WorldTransform returns the world transform of bone i, propagating any
// pending local changes first.
func (s *Skeleton) WorldTransform(i int) Transform {
	s.UpdateWorld()
	return s.world[i]
}

// UpdateWorld recomputes world transforms if anything changed.
func (s *Skeleton) UpdateWorld() {
	if !s.dirty {
		return
	}
	root := s.Root()
	for i, b := range s.bones {
		parent := root
		if b.Parent >= 0 {
			parent = s.world[b.Parent]
		}
		s.world[i] = parent.Mul(b.Local())
	}
	s.dirty = false
}

// Dirty reports whether world transforms are stale.
func (s *Skeleton) Dirty() bool {
	return s.dirty
}

// ParentWorld returns the world transform of bone i's parent, or the root
// transform for a root bone.
func (s *Skeleton) ParentWorld(i int) Transform {
	if p := s.bones[i].Parent; p >= 0 {
		return s.WorldTransform(p)
	}
	return s.Root()
}

// SetExpression sets the weight of an expression channel.
func (s *Skeleton) SetExpression(name string, weight float64) error {
	if _, ok := s.expressions[name]; !ok {
		return fmt.Errorf("%w: %s", ErrMissingExpression, name)
	}
	s.expressions[name] = weight
	return nil
}

// Expression returns the weight of a channel.
func (s *Skeleton) Expression(name string) (float64, bool) {
	w, ok := s.expressions[name]
	return w, ok
}

// HasExpression reports whether the rig defines a channel.
func (s *Skeleton) HasExpression(name string) bool {
	_, ok := s.expressions[name]
	return ok
}

// Expressions returns a copy of all channel weights.
func (s *Skeleton) Expressions() map[string]float64 {
	out := make(map[string]float64, len(s.expressions))
	for k, v := range s.expressions {
		out[k] = v
	}
	return out
}

// ExpressionNames returns channel names in rig order.
func (s *Skeleton) ExpressionNames() []string {
	return append([]string(nil), s.exprOrder...)
}
