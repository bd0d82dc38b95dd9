package goupf

import (
	"fmt"
	"math"
)

// GroundTruth computes the error of an estimate from the known pose of the object.
type GroundTruth struct {
	pose Pose
}

// NewGroundTruth initializes a new ground truth.
func NewGroundTruth(pose Pose) *GroundTruth {
	return &GroundTruth{pose}
}

// Pose returns the true pose.
func (t *GroundTruth) Pose() Pose {
	return t.pose
}

// Error returns the error of the provided estimate with respect to the ground truth.
func (t *GroundTruth) Error(est *Estimate) PoseError {
	return t.ErrorWithOffset(est, nil)
}

// ErrorWithOffset returns the error of the provided estimate, after adding the offset to its state.
func (t *GroundTruth) ErrorWithOffset(est *Estimate, offset []float64) PoseError {
	state := est.Pose.State()
	if offset != nil {
		if len(offset) != StateDim {
			panic(fmt.Errorf("offset has %d components instead of %d", len(offset), StateDim))
		}
		for i := range state {
			state[i] += offset[i]
		}
		wrapState(state)
	}
	truth := t.pose.State()
	e := PoseError{Components: make([]float64, StateDim)}
	stateDiff(e.Components, state, truth)
	e.Position = math.Sqrt(e.Components[0]*e.Components[0] + e.Components[1]*e.Components[1] + e.Components[2]*e.Components[2])
	e.Angle = FromState(state).RotationAngle(t.pose.Transform())
	return e
}

// PoseError is the difference between an estimated pose and the true one.
type PoseError struct {
	Position   float64   // Euclidean distance between positions
	Angle      float64   // Angle of the relative rotation, in radians
	Components []float64 // Component wise state difference, angles as shortest differences
}

func (e PoseError) String() string {
	return fmt.Sprintf("PoseError{position=%.6f angle=%.6f}", e.Position, e.Angle)
}
