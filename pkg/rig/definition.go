package rig

import (
	"fmt"

	"github.com/tiendc/go-deepcopy"
)

// BoneDef describes one bone of a rig file.
type BoneDef struct {
	// Name is unique within the rig.
	Name string `yaml:"name"`

	// Parent is the parent bone name; empty for a root bone.
	Parent string `yaml:"parent,omitempty"`

	// Position is the local translation relative to the parent.
	Position [3]float64 `yaml:"position"`

	// Rotation is an optional rest rotation as X, Y, Z Euler degrees.
	Rotation *[3]float64 `yaml:"rotation,omitempty"`

	// Quaternion is an optional rest rotation as x, y, z, w.
	// It takes precedence over Rotation.
	Quaternion *[4]float64 `yaml:"quaternion,omitempty"`
}

// Definition is the parsed form of a rig file.
type Definition struct {
	Name string `yaml:"name"`

	Bones []BoneDef `yaml:"bones"`

	// Humanoid maps VRM role names to bone names. Roles absent from the map
	// resolve to a bone carrying the role's own name, if any.
	Humanoid map[string]string `yaml:"humanoid,omitempty"`

	// Expressions lists the blendable expression channels.
	Expressions []string `yaml:"expressions"`
}

// Clone returns a deep copy so that several avatars can be built from one
// template without sharing slices or maps.
func (d *Definition) Clone() (*Definition, error) {
	var out Definition
	if err := deepcopy.Copy(&out, *d); err != nil {
		return nil, fmt.Errorf("clone rig %q: %w", d.Name, err)
	}
	return &out, nil
}

// boneName resolves the bone name bound to a role.
func (d *Definition) boneName(role BoneRole) string {
	if name, ok := d.Humanoid[role.String()]; ok && name != "" {
		return name
	}
	return role.String()
}
