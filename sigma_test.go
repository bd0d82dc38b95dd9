package goupf

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

func TestSigmaWeights(t *testing.T) {
	w := NewSigmaWeights(StateDim, 1, 35, 2)
	require.Len(t, w.Mean, 2*StateDim+1)
	assert.InDelta(t, 8, w.Scale, 1e-12)
	assert.InDelta(t, 0.25, w.Mean[0], 1e-12)
	assert.InDelta(t, 35.25, w.Cov[0], 1e-12)
	assert.InDelta(t, 1.0/16, w.Mean[5], 1e-12)
	assert.InDelta(t, 1, floats.Sum(w.Mean), 1e-12)

	tactile := NewSigmaWeights(StateDim, 0.3, 35, 2)
	assert.InDelta(t, 1, floats.Sum(tactile.Mean), 1e-12)
	assert.Less(t, tactile.Mean[0], 0.0)
}

func TestSigmaPointsExact(t *testing.T) {
	x := []float64{0.1, -0.2, 0.3, 0.05, 1.0, 6.2}
	P := Diagonal([]float64{0.01, 0.02, 0.03, 0.02, 0.01, 0.03})
	P.SetSym(0, 1, 0.005)
	P.SetSym(3, 5, -0.004)
	w := NewSigmaWeights(StateDim, 1, 35, 2)

	chi := mat.NewDense(StateDim, 2*StateDim+1, nil)
	require.NoError(t, sigmaPoints(chi, x, P, w.Scale))

	crossed := false
	for j := 0; j < 2*StateDim+1; j++ {
		for r := angularStart; r < StateDim; r++ {
			v := chi.At(r, j)
			require.True(t, v >= 0 && v < twoPi, "sigma point %d angle %d = %g", j, r, v)
			if r == 3 && v > 5 {
				crossed = true
			}
		}
	}
	assert.True(t, crossed, "expected a yaw sigma point to wrap past 0")

	// An identity process without noise must give back the source statistics.
	mean := stateMean(chi, w.Mean)
	d := make([]float64, StateDim)
	stateDiff(d, mean, x)
	assert.InDeltaSlice(t, make([]float64, StateDim), d, 1e-12)

	cov, err := stateCovariance(chi, mean, w.Cov)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(cov, P, 1e-12), "covariance\n%v\nexpected\n%v", mat.Formatted(cov), mat.Formatted(P))
}

func TestSigmaPointsRejectsInvalidCovariance(t *testing.T) {
	chi := mat.NewDense(StateDim, 2*StateDim+1, nil)
	P := Diagonal([]float64{1, 1, 1, 1, 1, 1})
	P.SetSym(0, 1, 3)
	err := sigmaPoints(chi, make([]float64, StateDim), P, 8)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNumerical))
}
