package goupf

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestResampleIndices(t *testing.T) {
	assert.Equal(t, []int{0, 1}, resampleIndices([]float64{0.5, 0.5}, 0.1))
	assert.Equal(t, []int{2, 2, 2, 2}, resampleIndices([]float64{0, 0, 1, 0}, 0.2))
	assert.Equal(t, []int{0, 0, 0, 1}, resampleIndices([]float64{0.7, 0.3, 0, 0}, 0.05))
	// Cumulative sums falling short of 1 never index past the last particle.
	assert.Equal(t, []int{1, 1}, resampleIndices([]float64{0.3, 0.6}, 0.45))
}

func TestResamplePopulation(t *testing.T) {
	n := 8
	kf := newTestFilter(t, testParameters(n), originSurface, Batches{{{}}, {{}}})
	require.NoError(t, kf.Init())
	for i := range kf.pop.cur {
		p := &kf.pop.cur[i]
		p.Weight = 0
		p.Covariance.CopySym(ScaledIdentity(StateDim, 0.001*float64(i+1)))
	}
	heavy := 5
	kf.pop.cur[heavy].Weight = 1
	parent := kf.pop.cur[heavy].Clone()
	covs := make([]*mat.SymDense, n)
	for i, p := range kf.Particles() {
		covs[i] = p.Covariance
	}

	kf.resample(rand.NewPCG(1, 2))
	ps := kf.Particles()
	require.Len(t, ps, n)
	assert.InDelta(t, 1, sumWeights(ps), 1e-12)
	half := parent.Covariance.At(0, 0)
	d := make([]float64, StateDim)
	for j, p := range ps {
		assert.Equal(t, 1/float64(n), p.Weight)
		assert.True(t, mat.Equal(covs[j], p.Covariance), "slot %d covariance was reindexed", j)
		stateDiff(d, p.State, parent.State)
		for k := range d {
			assert.LessOrEqual(t, abs(d[k]), half+1e-12, "slot %d component %d left the jitter box", j, k)
		}
		for k := angularStart; k < StateDim; k++ {
			assert.True(t, p.State[k] >= 0 && p.State[k] < twoPi)
		}
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
