package goupf

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Identity returns an identity matrix of the provided size.
func Identity(n int) *mat.SymDense {
	return ScaledIdentity(n, 1)
}

// ScaledIdentity returns an identity matrix time a scaling factor of the provided size.
func ScaledIdentity(n int, s float64) *mat.SymDense {
	vals := make([]float64, n*n)
	for j := 0; j < n*n; j++ {
		if j%(n+1) == 0 {
			vals[j] = s
		}
	}
	return mat.NewSymDense(n, vals)
}

// Diagonal returns a symmetric matrix with the provided values on its diagonal.
func Diagonal(d []float64) *mat.SymDense {
	m := mat.NewSymDense(len(d), nil)
	for i, v := range d {
		m.SetSym(i, i, v)
	}
	return m
}

// IsNil returns whether the provided matrix only has zero values
func IsNil(m mat.Matrix) bool {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if m.At(i, j) != 0 {
				return false
			}
		}
	}
	return true
}

// IsDiagonal returns whether all off diagonal values of m are zero.
func IsDiagonal(m mat.Matrix) bool {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if i != j && m.At(i, j) != 0 {
				return false
			}
		}
	}
	return true
}

// AsSymDense returns a SymDense from the provided matrix, averaging the mirrored entries.
// It errors if the matrix is not square or if mirrored entries differ by more than tol
// relative to the largest entry.
func AsSymDense(m mat.Matrix, tol float64) (*mat.SymDense, error) {
	r, c := m.Dims()
	if r != c {
		return nil, errors.New("matrix must be square")
	}
	scale := math.Max(1, mat.Norm(m, math.Inf(1)))
	sym := mat.NewSymDense(r, nil)
	for i := 0; i < r; i++ {
		for j := i; j < c; j++ {
			a, b := m.At(i, j), m.At(j, i)
			if math.Abs(a-b) > tol*scale {
				return nil, errors.Errorf("matrix is not symmetric: (%d,%d)=%g (%d,%d)=%g", i, j, a, j, i, b)
			}
			sym.SetSym(i, j, 0.5*(a+b))
		}
	}
	return sym, nil
}

// checkPSD returns an ErrNumerical error if the symmetric matrix has an eigenvalue below
// -tol times its spectral radius, or contains a non finite value.
func checkPSD(m mat.Symmetric, name string, tol float64) error {
	n := m.SymmetricDim()
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			if v := m.At(i, j); math.IsNaN(v) || math.IsInf(v, 0) {
				return errors.Wrapf(ErrNumerical, "%s(%d,%d) is not finite", name, i, j)
			}
		}
	}
	var eig mat.EigenSym
	if ok := eig.Factorize(m, false); !ok {
		return errors.Wrapf(ErrNumerical, "eigen decomposition of %s failed", name)
	}
	vals := eig.Values(nil)
	radius := 0.0
	for _, v := range vals {
		radius = math.Max(radius, math.Abs(v))
	}
	for _, v := range vals {
		if v < -tol*math.Max(1, radius) {
			return errors.Wrapf(ErrNumerical, "%s is not positive semi-definite (eigenvalue %g)", name, v)
		}
	}
	return nil
}

const (
	// psdTol is the relative tolerance on negative eigenvalues of a covariance.
	psdTol = 1e-9
	// symTol is the relative tolerance on the asymmetry of a computed covariance.
	symTol = 1e-9
)
