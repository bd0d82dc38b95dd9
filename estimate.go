package goupf

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"
)

// Estimate is the terminal output of a run, valid once Finalize returned.
type Estimate struct {
	Pose       Pose
	Covariance *mat.SymDense // Corrected covariance of the selected particle
	FitIndex   float64       // Mean distance of the measured points to the surface at Pose
	Density    float64       // Selection score of the selected particle
	Likelihood float64       // Likelihood of the selected particle normalized over the population
	Particle   int           // Index of the selected particle
	Steps      int
	Skipped    int
	Duration   time.Duration // Total stepping time
}

// State returns the pose as a state vector.
func (e Estimate) State() *mat.VecDense {
	return mat.NewVecDense(StateDim, e.Pose.State())
}

// Transform returns the homogeneous transform of the estimated pose.
func (e Estimate) Transform() Homogeneous {
	return e.Pose.Transform()
}

// IsWithinNσ returns whether the provided state is within the N*σ bounds of the estimate.
// Angles are compared by their shortest difference.
func (e Estimate) IsWithinNσ(truth []float64, N float64) bool {
	d := make([]float64, StateDim)
	stateDiff(d, truth, e.Pose.State())
	for i := 0; i < StateDim; i++ {
		bound := N * math.Sqrt(e.Covariance.At(i, i))
		if math.Abs(d[i]) > bound {
			return false
		}
	}
	return true
}

func (e Estimate) String() string {
	return fmt.Sprintf("%s\nP=%v\nfit=%.6f density=%g likelihood=%g particle=%d steps=%d skipped=%d in %s",
		e.Pose, mat.Formatted(e.Covariance, mat.Prefix("  ")), e.FitIndex, e.Density, e.Likelihood,
		e.Particle, e.Steps, e.Skipped, e.Duration)
}

// StepResult holds the diagnostics of one step.
type StepResult struct {
	Step              int // One based step counter
	Points            int // Number of points in the batch
	Skipped           bool
	Terminal          bool
	ESS               float64 // Effective sample size 1/Σw²
	MaxWeight         float64
	SumSquaredWeights float64
	Duration          time.Duration
}
