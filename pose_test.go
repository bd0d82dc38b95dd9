package goupf

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestWrapAngle(t *testing.T) {
	cases := []struct {
		in, exp float64
	}{
		{0, 0},
		{math.Pi, math.Pi},
		{twoPi, 0},
		{-0.5, twoPi - 0.5},
		{7 * math.Pi, math.Pi},
		{-1e-18, 0},
	}
	for _, c := range cases {
		got := WrapAngle(c.in)
		assert.InDelta(t, c.exp, got, 1e-12, "WrapAngle(%g)", c.in)
		assert.True(t, got >= 0 && got < twoPi, "WrapAngle(%g)=%g out of range", c.in, got)
	}
	assert.InDelta(t, -0.5, SignedAngle(twoPi-0.5), 1e-12)
	assert.InDelta(t, math.Pi, SignedAngle(-math.Pi), 1e-12)
}

func TestEulerRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 200; i++ {
		p := Pose{
			Position: r3.Vector{X: rng.Float64() - 0.5, Y: rng.Float64() - 0.5, Z: rng.Float64() - 0.5},
			Yaw:      rng.Float64() * twoPi,
			Pitch:    0.01 + rng.Float64()*(math.Pi-0.02),
			Roll:     rng.Float64() * twoPi,
		}
		h := p.Transform()
		require.True(t, h.IsValid(1e-9), "invalid transform for %s", p)
		got := h.Decompose()
		assert.InDelta(t, 0, got.Position.Sub(p.Position).Norm(), 1e-12)
		assert.InDelta(t, 0, SignedAngle(got.Yaw-p.Yaw), 1e-9, "yaw of %s", p)
		assert.InDelta(t, p.Pitch, got.Pitch, 1e-9, "pitch of %s", p)
		assert.InDelta(t, 0, SignedAngle(got.Roll-p.Roll), 1e-9, "roll of %s", p)
	}
}

func TestEulerGimbal(t *testing.T) {
	for _, pitch := range []float64{0, math.Pi} {
		p := Pose{Yaw: 1.2, Pitch: pitch, Roll: 0.4}
		h := p.Transform()
		got := h.Decompose()
		assert.Equal(t, 0.0, got.Roll)
		assert.InDelta(t, pitch, got.Pitch, 1e-12)
		again := got.Transform()
		for i := range h {
			assert.InDelta(t, h[i], again[i], 1e-9, "element %d for pitch %g", i, pitch)
		}
	}
}

func TestHomogeneousInverse(t *testing.T) {
	h := Pose{Position: r3.Vector{X: 0.1, Y: -0.3, Z: 2}, Yaw: 0.3, Pitch: 1.1, Roll: 5}.Transform()
	id := h.Compose(h.Inverse())
	exp := HomogeneousIdentity()
	for i := range id {
		assert.InDelta(t, exp[i], id[i], 1e-12)
	}
	q := r3.Vector{X: 1, Y: 2, Z: 3}
	back := h.Inverse().Apply(h.Apply(q))
	assert.InDelta(t, 0, back.Sub(q).Norm(), 1e-12)
	assert.InDelta(t, 0, h.RotationAngle(h), 1e-6)

	rz := Pose{Yaw: 0.5}.Transform()
	assert.InDelta(t, 0.5, rz.RotationAngle(HomogeneousIdentity()), 1e-9)

	bad := h
	bad[15] = 2
	assert.False(t, bad.IsValid(1e-9))
}

func TestWrapAngularBlock(t *testing.T) {
	m := Diagonal([]float64{9, 9, 9, 7, 1, 13})
	m.SetSym(3, 4, 0.5)
	m.SetSym(3, 5, 2)
	m.SetSym(0, 3, 0.3)
	require.NoError(t, checkPSD(m, "m", psdTol))

	wrapAngularBlock(m)
	v3, v5 := 7-twoPi, 13-2*twoPi
	s3, s5 := math.Sqrt(v3/7), math.Sqrt(v5/13)
	assert.Equal(t, 9.0, m.At(0, 0), "translation block must not be wrapped")
	assert.InDelta(t, v3, m.At(3, 3), 1e-12)
	assert.Equal(t, 1.0, m.At(4, 4), "variances below 2π are kept")
	assert.InDelta(t, v5, m.At(5, 5), 1e-12)
	assert.InDelta(t, 0.5*s3, m.At(4, 3), 1e-12)
	assert.InDelta(t, 2*s3*s5, m.At(5, 3), 1e-12)
	assert.InDelta(t, 0.3*s3, m.At(3, 0), 1e-12)
	assert.True(t, mat.EqualApprox(m, m.T(), 0))
	assert.NoError(t, checkPSD(m, "wrapped m", psdTol))
}

func TestWrapAngularBlockKeepsPSD(t *testing.T) {
	rng := rand.New(rand.NewPCG(8, 9))
	for trial := 0; trial < 50; trial++ {
		// Random covariances with angular variances up to 30 rad².
		a := mat.NewDense(StateDim, StateDim, nil)
		for i := 0; i < StateDim; i++ {
			for j := 0; j < StateDim; j++ {
				a.Set(i, j, rng.NormFloat64())
			}
			if i >= angularStart {
				for j := 0; j < StateDim; j++ {
					a.Set(i, j, 2.2*a.At(i, j))
				}
			}
		}
		var m mat.SymDense
		m.SymOuterK(1, a)
		wrapAngularBlock(&m)
		require.NoError(t, checkPSD(&m, "wrapped", psdTol), "trial %d", trial)
		for i := angularStart; i < StateDim; i++ {
			assert.Less(t, m.At(i, i), twoPi)
		}
	}
}

func TestStateDiff(t *testing.T) {
	d := make([]float64, StateDim)
	stateDiff(d, []float64{1, 2, 3, 0.1, 0, twoPi - 0.1}, []float64{0, 0, 0, twoPi - 0.1, 0, 0.1})
	assert.InDeltaSlice(t, []float64{1, 2, 3, 0.2, 0, -0.2}, d, 1e-12)
}
