package goupf

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// SelectionPolicy defines how the terminal pose estimate is picked from the particle cloud.
type SelectionPolicy string

const (
	// SelectDensity picks the particle maximizing the weighted kernel density of the cloud.
	SelectDensity SelectionPolicy = "density"
	// SelectMaxWeight picks the particle with the highest weight.
	SelectMaxWeight SelectionPolicy = "max_weight"
	// SelectNeighborhood restricts the density to the particles with the most populated neighborhoods.
	SelectNeighborhood SelectionPolicy = "neighborhood"
)

// Parameters are the immutable parameters of a filter run.
type Parameters struct {
	Particles     int // N
	PointsPerStep int // measurement dimension p divided by 3

	// Unscented transform scaling.
	Alpha, Beta, Kappa float64

	Q  *mat.SymDense // Process noise covariance, StateDim x StateDim.
	R  float64       // Measurement noise scale.
	P0 *mat.SymDense // Initial covariance of every particle.

	// Particles are seeded uniformly in Center ± Radius. Angles cover their full range.
	Center, Radius r3.Vector

	Selection         SelectionPolicy
	Neighborhood      [StateDim]float64
	DensityPercentile float64

	// WindowWidth is the number of past batches folded in the likelihood. Zero means all of them.
	WindowWidth int
	// MinBatchPoints is the smallest batch which is used for a correction; smaller ones are skipped.
	MinBatchPoints int

	Workers int    // Particle workers per step, zero means GOMAXPROCS.
	Seed    uint64 // Seed of every random draw of the run.
}

// DefaultParameters returns the parameters used when nothing else is specified.
func DefaultParameters() Parameters {
	return Parameters{
		Particles:         600,
		PointsPerStep:     1,
		Alpha:             1,
		Beta:              35,
		Kappa:             2,
		Q:                 Diagonal([]float64{1e-4, 1e-4, 1e-4, 1e-3, 1e-3, 1e-3}),
		R:                 1e-4,
		P0:                Diagonal([]float64{0.04, 0.04, 0.04, math.Pi * math.Pi, math.Pi * math.Pi / 4, math.Pi * math.Pi}),
		Center:            r3.Vector{X: 0.2, Y: 0.2, Z: 0.2},
		Radius:            r3.Vector{X: 0.2, Y: 0.2, Z: 0.2},
		Selection:         SelectDensity,
		Neighborhood:      [StateDim]float64{0.08, 0.08, 0.08, 0.3, 0.3, 0.3},
		DensityPercentile: 0.85,
		MinBatchPoints:    1,
	}
}

// VisionParameters returns the defaults tuned for dense point clouds from a camera.
func VisionParameters() Parameters {
	p := DefaultParameters()
	p.Q = Diagonal([]float64{1e-4, 1e-4, 1e-4, 1e-2, 1e-2, 1e-2})
	p.PointsPerStep = 10
	return p
}

// TactileParameters returns the defaults tuned for sparse contact points.
func TactileParameters() Parameters {
	p := DefaultParameters()
	p.Q = Diagonal([]float64{1e-5, 1e-5, 1e-8, 1e-2, 1e-6, 1e-6})
	p.Alpha = 0.3
	p.MinBatchPoints = 2
	return p
}

// MeasurementDim returns the nominal measurement dimension p.
func (p Parameters) MeasurementDim() int {
	return 3 * p.PointsPerStep
}

// Lambda returns the unscented transform scaling α²(n+κ)-n.
func (p Parameters) Lambda() float64 {
	return p.Alpha*p.Alpha*(StateDim+p.Kappa) - StateDim
}

// Validate returns an ErrConfiguration error describing the first invalid parameter.
func (p Parameters) Validate() error {
	invalid := func(format string, args ...interface{}) error {
		return errors.Wrapf(ErrConfiguration, format, args...)
	}
	if p.Particles <= 0 {
		return invalid("particle count must be positive, got %d", p.Particles)
	}
	if p.PointsPerStep <= 0 {
		return invalid("points per step must be positive, got %d", p.PointsPerStep)
	}
	if !isFinite(p.Alpha, p.Beta, p.Kappa) || p.Alpha == 0 {
		return invalid("invalid unscented scaling alpha=%g beta=%g kappa=%g", p.Alpha, p.Beta, p.Kappa)
	}
	if StateDim+p.Lambda() <= 0 {
		return invalid("n+lambda must be positive, got %g", StateDim+p.Lambda())
	}
	if p.Q == nil {
		return invalid("process noise Q is not set")
	}
	if err := checkMatDims(p.Q, Identity(StateDim), "Q", "I6", rowsAndcols); err != nil {
		return invalid("%v", err)
	}
	for i := 0; i < StateDim; i++ {
		if q := p.Q.At(i, i); q < 0 || !isFinite(q) {
			return invalid("process noise Q(%d,%d)=%g must be finite and non negative", i, i, q)
		}
	}
	if p.R <= 0 || !isFinite(p.R) {
		return invalid("measurement noise R must be positive, got %g", p.R)
	}
	if p.P0 == nil {
		return invalid("initial covariance P0 is not set")
	}
	if err := checkMatDims(p.P0, Identity(StateDim), "P0", "I6", rowsAndcols); err != nil {
		return invalid("%v", err)
	}
	for i := 0; i < StateDim; i++ {
		if v := p.P0.At(i, i); v <= 0 || !isFinite(v) {
			return invalid("initial covariance P0(%d,%d)=%g must be positive", i, i, v)
		}
	}
	if err := checkPSD(p.P0, "P0", 1e-12); err != nil {
		return invalid("%v", err)
	}
	if !isFinite(p.Center.X, p.Center.Y, p.Center.Z) {
		return invalid("initial center %v is not finite", p.Center)
	}
	if p.Radius.X < 0 || p.Radius.Y < 0 || p.Radius.Z < 0 || !isFinite(p.Radius.X, p.Radius.Y, p.Radius.Z) {
		return invalid("initial radius %v must be finite and non negative", p.Radius)
	}
	switch p.Selection {
	case SelectDensity, SelectMaxWeight:
	case SelectNeighborhood:
		for i, r := range p.Neighborhood {
			if r < 0 || !isFinite(r) {
				return invalid("neighborhood radius %d must be non negative, got %g", i, r)
			}
		}
		if p.DensityPercentile <= 0 || p.DensityPercentile > 1 {
			return invalid("density percentile must be in (0, 1], got %g", p.DensityPercentile)
		}
	default:
		return invalid("unknown selection policy %q", p.Selection)
	}
	if p.WindowWidth < 0 {
		return invalid("window width must not be negative, got %d", p.WindowWidth)
	}
	if p.MinBatchPoints < 0 {
		return invalid("minimum batch points must not be negative, got %d", p.MinBatchPoints)
	}
	if p.Workers < 0 {
		return invalid("worker count must not be negative, got %d", p.Workers)
	}
	return nil
}

func isFinite(vals ...float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
