package goupf

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// selectEstimate returns the index of the particle chosen as the pose estimate by the policy,
// and the density it was selected with (its weight for SelectMaxWeight).
func selectEstimate(particles []Particle, params Parameters, workers int) (int, float64, error) {
	switch params.Selection {
	case SelectMaxWeight:
		w := make([]float64, len(particles))
		for i, p := range particles {
			w[i] = p.Weight
		}
		best := floats.MaxIdx(w)
		return best, w[best], nil
	case SelectNeighborhood:
		neighbors := neighborhoods(particles, params.Neighborhood)
		maxCount := 0
		for _, nb := range neighbors {
			maxCount = max(maxCount, len(nb))
		}
		candidates := make([][]int, len(particles))
		for i, nb := range neighbors {
			if float64(len(nb)) >= params.DensityPercentile*float64(maxCount) {
				candidates[i] = nb
			}
		}
		return densityArgmax(particles, candidates, workers)
	default:
		return densityArgmax(particles, nil, workers)
	}
}

// densityArgmax computes, for every particle i, the weighted kernel density
// Σ_j w_j·exp(-0.5·dᵀ·P_j⁻¹·d) with d the state difference of i and j, and returns its argmax.
// With a non nil restrict, only particles with a non empty restrict[i] are candidates and j
// ranges over restrict[i].
func densityArgmax(particles []Particle, restrict [][]int, workers int) (int, float64, error) {
	n := len(particles)
	inv := make([]*mat.Dense, n)
	for j, p := range particles {
		inv[j] = new(mat.Dense)
		if err := inv[j].Inverse(p.Covariance); err != nil {
			return 0, 0, errors.Wrapf(ErrNumerical, "could not invert covariance of particle %d: %v", j, err)
		}
	}

	density := make([]float64, n)
	for i := range density {
		density[i] = math.Inf(-1)
	}
	var g errgroup.Group
	g.SetLimit(workers)
	for i := 0; i < n; i++ {
		if restrict != nil && len(restrict[i]) == 0 {
			continue
		}
		g.Go(func() error {
			d := mat.NewVecDense(StateDim, nil)
			var md mat.VecDense
			var sum float64
			kernel := func(j int) {
				stateDiff(d.RawVector().Data, particles[i].State, particles[j].State)
				md.MulVec(inv[j], d)
				sum += particles[j].Weight * math.Exp(-0.5*mat.Dot(d, &md))
			}
			if restrict != nil {
				for _, j := range restrict[i] {
					kernel(j)
				}
			} else {
				for j := 0; j < n; j++ {
					kernel(j)
				}
			}
			density[i] = sum
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, 0, err
	}
	best := floats.MaxIdx(density)
	return best, density[best], nil
}

// neighborhoods returns, for each particle, the indices of the particles (itself included) lying
// within radii of it along every dimension. Angles are compared by their shortest difference.
func neighborhoods(particles []Particle, radii [StateDim]float64) [][]int {
	out := make([][]int, len(particles))
	d := make([]float64, StateDim)
	for i := range particles {
		for j := range particles {
			stateDiff(d, particles[i].State, particles[j].State)
			inside := true
			for k := range d {
				if math.Abs(d[k]) > radii[k] {
					inside = false
					break
				}
			}
			if inside {
				out[i] = append(out[i], j)
			}
		}
	}
	return out
}

// fitIndex returns the mean distance from every measured point to the surface placed at state.
func fitIndex(s Surface, state []float64, batches [][]r3.Vector) (float64, error) {
	inv := FromState(state).Inverse()
	var sum float64
	count := 0
	for _, batch := range batches {
		for i, m := range batch {
			_, d2, err := s.ClosestPoint(inv.Apply(m))
			if err != nil {
				return 0, errors.Wrapf(ErrSurfaceQuery, "point %d: %v", i, err)
			}
			sum += math.Sqrt(d2)
			count++
		}
	}
	if count == 0 {
		return 0, nil
	}
	return sum / float64(count), nil
}
