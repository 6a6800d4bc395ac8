package rig

import "errors"

var (
	// ErrMissingBone is returned when a rig has no bone for a requested role.
	ErrMissingBone = errors.New("bone not found")

	// ErrMissingExpression is returned when a rig has no such expression channel.
	ErrMissingExpression = errors.New("expression channel not found")

	// ErrRigLoad is returned when a rig description cannot be loaded or built.
	ErrRigLoad = errors.New("rig load failed")

	// ErrRestPoseCaptured is returned when the rest pose is captured twice.
	ErrRestPoseCaptured = errors.New("rest pose already captured")
)
