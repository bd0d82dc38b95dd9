package goupf

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

// resample replaces the population by systematic resampling. A replacement is not a copy of its
// parent: it is drawn uniformly in the box parent ± diag(P) of the parent covariance, keeping the
// cloud exploring. Slot j keeps the covariance of the previous slot j, it is not reindexed.
func (f *Filter) resample(src rand.Source) {
	cur, next := f.pop.cur, f.pop.next
	n := len(cur)
	u0 := distuv.Uniform{Min: 0, Max: 1 / float64(n), Src: src}.Rand()
	for j, i := range resampleIndices(f.pop.weights(), u0) {
		jitter(next[j].State, cur[i], src)
		next[j].Covariance.CopySym(cur[j].Covariance)
		next[j].Weight = 1 / float64(n)
	}
	f.pop.swap()
}

// jitter draws a state uniformly in parent ± diag(parent covariance).
func jitter(dst []float64, parent Particle, src rand.Source) {
	for d := 0; d < StateDim; d++ {
		half := parent.Covariance.At(d, d)
		dst[d] = distuv.Uniform{Min: parent.State[d] - half, Max: parent.State[d] + half, Src: src}.Rand()
	}
	wrapState(dst)
}

// resampleIndices returns the parent index of each slot for a systematic resampling of w with
// the offset u0 in [0, 1/N).
func resampleIndices(w []float64, u0 float64) []int {
	n := len(w)
	cum := floats.CumSum(make([]float64, n), w)
	idx := make([]int, n)
	i := 0
	for j := 0; j < n; j++ {
		u := u0 + float64(j)/float64(n)
		for i < n-1 && u > cum[i] {
			i++
		}
		idx[j] = i
	}
	return idx
}
