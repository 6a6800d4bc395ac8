// Package calibration finds arm offsets that bring a rig's arms down to a
// natural resting pose.
//
// The search is a bounded grid over shoulder roll, upper-arm roll,
// upper-arm pitch and elbow bend. Every candidate is scored by the world
// height of the elbow; the lowest elbow wins.
package calibration

import (
	"errors"
	"fmt"

	"github.com/teslashibe/go-avatar/internal/log"
	"github.com/teslashibe/go-avatar/pkg/pose"
	"github.com/teslashibe/go-avatar/pkg/rig"
)

// ErrEmptySearchSpace is returned when a search dimension has no values.
var ErrEmptySearchSpace = errors.New("empty search space")

// SearchSpace lists candidate angles in degrees. Roll values are given as
// magnitudes; the sign is chosen per side.
type SearchSpace struct {
	ShoulderRoll  []float64 `mapstructure:"shoulder_roll" yaml:"shoulder_roll" json:"shoulderRoll"`
	UpperArmRoll  []float64 `mapstructure:"upper_arm_roll" yaml:"upper_arm_roll" json:"upperArmRoll"`
	UpperArmPitch []float64 `mapstructure:"upper_arm_pitch" yaml:"upper_arm_pitch" json:"upperArmPitch"`
	ElbowBend     []float64 `mapstructure:"elbow_bend" yaml:"elbow_bend" json:"elbowBend"`
}

// DefaultSearchSpace returns the grid tuned for VRM avatars exported in
// T-pose or A-pose.
func DefaultSearchSpace() SearchSpace {
	return SearchSpace{
		ShoulderRoll:  []float64{0, 15, 25, 35},
		UpperArmRoll:  []float64{70, 85, 95, 105},
		UpperArmPitch: []float64{-15, -8, 0, 8, 15},
		ElbowBend:     []float64{10, 18, 26, 34},
	}
}

// Validate checks that every dimension has at least one value.
func (s SearchSpace) Validate() error {
	dims := []struct {
		name   string
		values []float64
	}{
		{"shoulder_roll", s.ShoulderRoll},
		{"upper_arm_roll", s.UpperArmRoll},
		{"upper_arm_pitch", s.UpperArmPitch},
		{"elbow_bend", s.ElbowBend},
	}
	for _, d := range dims {
		if len(d.values) == 0 {
			return fmt.Errorf("%w: %s", ErrEmptySearchSpace, d.name)
		}
	}
	return nil
}

// Size returns the number of candidates evaluated per side.
func (s SearchSpace) Size() int {
	return len(s.ShoulderRoll) * len(s.UpperArmRoll) * len(s.UpperArmPitch) * len(s.ElbowBend)
}

// Candidate builds the arm offsets for one grid point.
func Candidate(side rig.Side, shoulderRoll, upperRoll, upperPitch, elbowBend float64) pose.ArmOffsets {
	sign := 1.0
	if side == rig.Left {
		sign = -1
	}
	return pose.ArmOffsets{
		Shoulder: pose.OffsetDegrees(0, 0, sign*shoulderRoll),
		UpperArm: pose.OffsetDegrees(upperPitch, 0, sign*upperRoll),
		LowerArm: pose.OffsetDegrees(elbowBend, 0, 0),
	}
}

// ArmEvaluator scores candidate offsets. *pose.Evaluator implements it.
type ArmEvaluator interface {
	Available(side rig.Side) bool
	EvaluateArm(side rig.Side, candidate pose.ArmOffsets) float64
}

// Searcher runs the grid search.
type Searcher struct {
	space SearchSpace
}

// New creates a Searcher over the given space.
func New(space SearchSpace) (*Searcher, error) {
	if err := space.Validate(); err != nil {
		return nil, err
	}
	return &Searcher{space: space}, nil
}

// Space returns the configured search space.
func (s *Searcher) Space() SearchSpace {
	return s.space
}

// Calibrate returns the best offsets for one side. An unavailable side
// yields the zero pose and is not evaluated.
func (s *Searcher) Calibrate(eval ArmEvaluator, side rig.Side) pose.ArmPose {
	if !eval.Available(side) {
		reason := "missing bones"
		if e, ok := eval.(interface{ Err(rig.Side) error }); ok && e.Err(side) != nil {
			reason = e.Err(side).Error()
		}
		log.Warn("arm calibration skipped", "side", side, "reason", reason)
		return pose.ArmPose{}
	}

	restY := eval.EvaluateArm(side, pose.ArmOffsets{})
	result := pose.ArmPose{Calibrated: true, RestElbowY: restY}

	first := true
	for _, sh := range s.space.ShoulderRoll {
		for _, upZ := range s.space.UpperArmRoll {
			for _, upX := range s.space.UpperArmPitch {
				for _, loX := range s.space.ElbowBend {
					cand := Candidate(side, sh, upZ, upX, loX)
					y := eval.EvaluateArm(side, cand)
					// Strict comparison keeps the first of equal candidates.
					if first || y < result.ElbowY {
						result.Offsets = cand
						result.ElbowY = y
						first = false
					}
				}
			}
		}
	}

	log.Debug("arm calibrated",
		"side", side,
		"candidates", s.space.Size(),
		"rest_elbow_y", restY,
		"elbow_y", result.ElbowY,
	)
	return result
}

// CalibrateAll calibrates both arms.
func (s *Searcher) CalibrateAll(eval ArmEvaluator) pose.CalibratedPose {
	var out pose.CalibratedPose
	for _, side := range rig.Sides {
		out.Set(side, s.Calibrate(eval, side))
	}
	return out
}
