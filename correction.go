package goupf

import (
	"math"
	"math/rand/v2"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// unscentedUpdate holds the working matrices of one particle update. None of it outlives the step.
type unscentedUpdate struct {
	chi   *mat.Dense    // sigma points, propagated in place
	gamma *mat.Dense    // measurement sigma points
	xPred []float64     // predicted state
	yPred []float64     // predicted measurement
	pPred *mat.SymDense // predicted covariance
	pyy   *mat.SymDense // innovation covariance
	pxy   *mat.Dense    // cross covariance
	gain  *mat.Dense    // Kalman gain
}

// predict generates the sigma points of p, propagates them through the static process model
// with noise drawn from src, evaluates the measurement function on each of them and reduces the
// clouds to the predicted statistics.
func (f *Filter) predict(p *Particle, batch []r3.Vector, src rand.Source) (*unscentedUpdate, error) {
	cols := 2*StateDim + 1
	u := &unscentedUpdate{chi: mat.NewDense(StateDim, cols, nil)}
	if err := sigmaPoints(u.chi, p.State, p.Covariance, f.weights.Scale); err != nil {
		return nil, err
	}

	col := make([]float64, StateDim)
	for j := 0; j < cols; j++ {
		w := f.noise.Process(src)
		mat.Col(col, j, u.chi)
		floats.Add(col, w)
		wrapState(col)
		u.chi.SetCol(j, col)
	}

	m := 3 * len(batch)
	u.gamma = mat.NewDense(m, cols, nil)
	y := make([]float64, m)
	for j := 0; j < cols; j++ {
		mat.Col(col, j, u.chi)
		if err := measure(f.surface, col, batch, y); err != nil {
			return nil, err
		}
		u.gamma.SetCol(j, y)
	}

	u.xPred = stateMean(u.chi, f.weights.Mean)
	u.yPred = measurementMean(u.gamma, f.weights.Mean)
	var err error
	if u.pPred, err = stateCovariance(u.chi, u.xPred, f.weights.Cov); err != nil {
		return nil, err
	}

	dx := weightedColumns(stateDeviations(u.chi, u.xPred), f.weights.Cov)
	dy := measurementDeviations(u.gamma, u.yPred)
	var pyy mat.Dense
	pyy.Mul(weightedColumns(dy, f.weights.Cov), dy.T())
	// R·I regularizes the gain: without it Pyy is singular whenever the sigma points project on
	// the same surface points, as with a single contact.
	for i := 0; i < m; i++ {
		pyy.Set(i, i, pyy.At(i, i)+f.params.R)
	}
	if u.pyy, err = AsSymDense(&pyy, symTol); err != nil {
		return nil, errors.Wrapf(ErrNumerical, "innovation covariance: %v", err)
	}
	u.pxy = mat.NewDense(StateDim, m, nil)
	u.pxy.Mul(dx, dy.T())
	return u, nil
}

// correct computes the Kalman gain and updates the particle state and covariance from z.
// The corrected covariance is derived from the unwrapped predicted covariance and only then has its
// angular block wrapped. On error the particle is left untouched.
func (f *Filter) correct(p *Particle, u *unscentedUpdate, z []float64) error {
	if err := checkMatDims(u.pxy, u.pyy, "Pxy", "Pyy", cols2cols); err != nil {
		return errors.Wrap(ErrNumerical, err.Error())
	}
	if err := checkMatDims(u.pxy, u.pPred, "Pxy", "P", rows2rows); err != nil {
		return errors.Wrap(ErrNumerical, err.Error())
	}
	if m := u.pyy.SymmetricDim(); len(z) != m || len(u.yPred) != m {
		return errors.Wrapf(ErrNumerical, "measurement of size %d and prediction of size %d for Pyy(%dx%d)",
			len(z), len(u.yPred), m, m)
	}
	var pyyInv mat.Dense
	if err := pyyInv.Inverse(u.pyy); err != nil {
		return errors.Wrapf(ErrNumerical, "could not invert Pyy: %v", err)
	}
	u.gain = mat.NewDense(StateDim, len(z), nil)
	u.gain.Mul(u.pxy, &pyyInv)

	var kpyy, kpyyk, pc mat.Dense
	kpyy.Mul(u.gain, u.pyy)
	kpyyk.Mul(&kpyy, u.gain.T())
	pc.Sub(u.pPred, &kpyyk)
	cov, err := AsSymDense(&pc, symTol)
	if err != nil {
		return errors.Wrapf(ErrNumerical, "corrected covariance: %v", err)
	}
	wrapAngularBlock(cov)
	if err := checkPSD(cov, "corrected covariance", psdTol); err != nil {
		return err
	}

	innovation := mat.NewVecDense(len(z), nil)
	innovation.SubVec(mat.NewVecDense(len(z), z), mat.NewVecDense(len(u.yPred), u.yPred))
	var dx mat.VecDense
	dx.MulVec(u.gain, innovation)
	for i := 0; i < StateDim; i++ {
		p.State[i] = u.xPred[i] + dx.AtVec(i)
	}
	wrapState(p.State)
	p.Covariance.CopySym(cov)
	return nil
}

// logLikelihood returns the log likelihood of a corrected state against the batches of the
// active window ending at the current step. On the terminal step the exponent of the c-th batch
// of the window is multiplied by c, which sharpens the final weights.
func (f *Filter) logLikelihood(state []float64, terminal bool) (float64, error) {
	inv := FromState(state).Inverse()
	first := 0
	if f.params.WindowWidth > 0 && f.t > f.params.WindowWidth {
		first = f.t - f.params.WindowWidth
	}
	var ll float64
	count := 0
	for k := first; k < f.t; k++ {
		batch := f.used[k]
		if batch == nil {
			continue
		}
		count++
		sq, err := sumSquaredDistance(f.surface, inv, batch)
		if err != nil {
			return 0, err
		}
		e := -0.5 * sq / f.params.R
		if terminal {
			e *= float64(count)
		}
		ll += e
	}
	return ll, nil
}

// reweight multiplies each weight by its likelihood, in log space, and renormalizes.
// It returns the sum of the squared normalized weights.
func reweight(w, logLik []float64) (float64, error) {
	logw := make([]float64, len(w))
	for i := range w {
		logw[i] = math.Log(w[i]) + logLik[i]
	}
	lse := floats.LogSumExp(logw)
	if math.IsInf(lse, 0) || math.IsNaN(lse) {
		return 0, errors.Wrapf(ErrNumerical, "particle weights vanished (log normalizer %g)", lse)
	}
	for i := range w {
		w[i] = math.Exp(logw[i] - lse)
	}
	return normalizeWeights(w)
}

// normalizeWeights scales w so it sums to 1 and returns the sum of the squared weights.
func normalizeWeights(w []float64) (float64, error) {
	sum := floats.Sum(w)
	if sum <= 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		return 0, errors.Wrapf(ErrNumerical, "cannot normalize weights summing to %g", sum)
	}
	floats.Scale(1/sum, w)
	return floats.Dot(w, w), nil
}
