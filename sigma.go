package goupf

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// SigmaWeights are the mean and covariance weights of the 2n+1 sigma points.
// They only depend on n, alpha, beta and kappa and are shared by all particles.
type SigmaWeights struct {
	Mean, Cov []float64
	Scale     float64 // n+λ
}

// NewSigmaWeights returns the scaled unscented transform weights.
func NewSigmaWeights(n int, alpha, beta, kappa float64) SigmaWeights {
	lambda := alpha*alpha*(float64(n)+kappa) - float64(n)
	scale := float64(n) + lambda
	w := SigmaWeights{
		Mean:  make([]float64, 2*n+1),
		Cov:   make([]float64, 2*n+1),
		Scale: scale,
	}
	w.Mean[0] = lambda / scale
	w.Cov[0] = w.Mean[0] + 1 - alpha*alpha + beta
	for i := 1; i < 2*n+1; i++ {
		w.Mean[i] = 1 / (2 * scale)
		w.Cov[i] = w.Mean[i]
	}
	return w
}

// sigmaPoints stores the 2n+1 sigma points of (x, P) as the columns of dst: x, then x plus and
// minus each column of the square root of scale·P obtained from its SVD. Angles are wrapped.
func sigmaPoints(dst *mat.Dense, x []float64, P mat.Symmetric, scale float64) error {
	if err := checkPSD(P, "P", psdTol); err != nil {
		return err
	}
	var scaled mat.SymDense
	scaled.ScaleSym(scale, P)
	var svd mat.SVD
	if ok := svd.Factorize(&scaled, mat.SVDFull); !ok {
		return errors.Wrap(ErrNumerical, "SVD of the scaled covariance failed")
	}
	var u mat.Dense
	svd.UTo(&u)
	s := svd.Values(nil)

	n := len(x)
	dst.SetCol(0, x)
	col := make([]float64, n)
	for i := 0; i < n; i++ {
		root := math.Sqrt(s[i])
		for r := 0; r < n; r++ {
			col[r] = x[r] + root*u.At(r, i)
		}
		wrapState(col)
		dst.SetCol(1+i, col)
		for r := 0; r < n; r++ {
			col[r] = x[r] - root*u.At(r, i)
		}
		wrapState(col)
		dst.SetCol(1+n+i, col)
	}
	return nil
}

// stateMean returns the weighted mean of the state sigma points. Angles are averaged as signed
// offsets from the first sigma point so that a cloud straddling 0 is not torn apart.
func stateMean(chi mat.Matrix, w []float64) []float64 {
	n, cols := chi.Dims()
	mean := make([]float64, n)
	for r := 0; r < n; r++ {
		ref := chi.At(r, 0)
		var acc float64
		for j := 0; j < cols; j++ {
			if r >= angularStart {
				acc += w[j] * SignedAngle(chi.At(r, j)-ref)
			} else {
				acc += w[j] * chi.At(r, j)
			}
		}
		if r >= angularStart {
			mean[r] = WrapAngle(ref + acc)
		} else {
			mean[r] = acc
		}
	}
	return mean
}

// stateDeviations returns the sigma point deviations from mean, one per column.
func stateDeviations(chi mat.Matrix, mean []float64) *mat.Dense {
	n, cols := chi.Dims()
	dev := mat.NewDense(n, cols, nil)
	col := make([]float64, n)
	d := make([]float64, n)
	for j := 0; j < cols; j++ {
		mat.Col(col, j, chi)
		stateDiff(d, col, mean)
		dev.SetCol(j, d)
	}
	return dev
}

// measurementMean returns the weighted mean of the measurement sigma points.
func measurementMean(gamma mat.Matrix, w []float64) []float64 {
	m, _ := gamma.Dims()
	var mean mat.VecDense
	mean.MulVec(gamma, mat.NewVecDense(len(w), w))
	out := make([]float64, m)
	for i := range out {
		out[i] = mean.AtVec(i)
	}
	return out
}

// measurementDeviations returns the measurement sigma point deviations from mean.
func measurementDeviations(gamma mat.Matrix, mean []float64) *mat.Dense {
	m, cols := gamma.Dims()
	dev := mat.NewDense(m, cols, nil)
	for i := 0; i < m; i++ {
		for j := 0; j < cols; j++ {
			dev.Set(i, j, gamma.At(i, j)-mean[i])
		}
	}
	return dev
}

// weightedColumns returns dev with each column j scaled by w[j].
func weightedColumns(dev *mat.Dense, w []float64) *mat.Dense {
	r, c := dev.Dims()
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out.Set(i, j, w[j]*dev.At(i, j))
		}
	}
	return out
}

// stateCovariance reduces the state sigma points to their weighted covariance. The angular
// block is left unwrapped: the correction subtracts a term built from the same deviations.
func stateCovariance(chi mat.Matrix, mean, w []float64) (*mat.SymDense, error) {
	dev := stateDeviations(chi, mean)
	var cov mat.Dense
	cov.Mul(weightedColumns(dev, w), dev.T())
	sym, err := AsSymDense(&cov, symTol)
	if err != nil {
		return nil, errors.Wrapf(ErrNumerical, "predicted covariance: %v", err)
	}
	return sym, nil
}
