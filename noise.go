package goupf

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Noise allows to handle the process noise injected in the sigma points.
type Noise interface {
	Process(src rand.Source) []float64 // Returns a process noise sample w drawn from src
	ProcessMatrix() mat.Symmetric      // Returns the process noise matrix Q
	String() string                    // Stringer interface implementation
}

// NewProcessNoise returns the Noise matching Q: Noiseless for a zero Q, DiagonalAWGN for a
// diagonal Q and AWGN otherwise.
func NewProcessNoise(Q *mat.SymDense) (Noise, error) {
	switch {
	case IsNil(Q):
		return NewNoiseless(Q), nil
	case IsDiagonal(Q):
		return NewDiagonalAWGN(Q)
	default:
		return NewAWGN(Q)
	}
}

// Noiseless is noiseless and implements the Noise interface.
type Noiseless struct {
	Q           mat.Symmetric
	processSize int
}

// NewNoiseless creates a noiseless process of the size of Q.
func NewNoiseless(Q mat.Symmetric) *Noiseless {
	if Q == nil {
		panic("Q must be specified")
	}
	return &Noiseless{Q, Q.SymmetricDim()}
}

// Process returns a zero vector of the correct size.
func (n Noiseless) Process(src rand.Source) []float64 {
	return make([]float64, n.processSize)
}

// ProcessMatrix implements the Noise interface.
func (n Noiseless) ProcessMatrix() mat.Symmetric {
	return n.Q
}

// String implements the Stringer interface.
func (n Noiseless) String() string {
	return fmt.Sprintf("Noiseless{\nQ=%v}\n", mat.Formatted(n.Q, mat.Prefix("  ")))
}

// DiagonalAWGN implements the Noise interface for a diagonal Q: each component is an
// independent unit normal draw scaled by the square root of Q(i,i).
type DiagonalAWGN struct {
	Q   mat.Symmetric
	std []float64
}

// NewDiagonalAWGN creates new diagonal AWGN noise from the provided Q.
func NewDiagonalAWGN(Q mat.Symmetric) (*DiagonalAWGN, error) {
	n := Q.SymmetricDim()
	std := make([]float64, n)
	for i := 0; i < n; i++ {
		v := Q.At(i, i)
		if v < 0 {
			return nil, errors.Wrapf(ErrConfiguration, "process noise Q(%d,%d)=%g is negative", i, i, v)
		}
		std[i] = math.Sqrt(v)
	}
	return &DiagonalAWGN{Q, std}, nil
}

// Process implements the Noise interface.
func (n DiagonalAWGN) Process(src rand.Source) []float64 {
	unit := distuv.Normal{Mu: 0, Sigma: 1, Src: src}
	w := make([]float64, len(n.std))
	for i, s := range n.std {
		w[i] = s * unit.Rand()
	}
	return w
}

// ProcessMatrix implements the Noise interface.
func (n DiagonalAWGN) ProcessMatrix() mat.Symmetric {
	return n.Q
}

// String implements the Stringer interface.
func (n DiagonalAWGN) String() string {
	return fmt.Sprintf("DiagonalAWGN{\nQ=%v}\n", mat.Formatted(n.Q, mat.Prefix("  ")))
}

// AWGN implements the Noise interface and generates an additive white Gaussian noise
// with a full covariance Q, as L·z where L is the Cholesky factor of Q and z a unit normal draw.
type AWGN struct {
	Q mat.Symmetric
	L *mat.TriDense
}

// NewAWGN creates new AWGN noise from the provided Q, which must be positive definite.
func NewAWGN(Q mat.Symmetric) (*AWGN, error) {
	var chol mat.Cholesky
	if ok := chol.Factorize(Q); !ok {
		return nil, errors.Wrap(ErrConfiguration, "process noise Q is not positive definite")
	}
	var L mat.TriDense
	chol.LTo(&L)
	return &AWGN{Q, &L}, nil
}

// Process implements the Noise interface.
func (n AWGN) Process(src rand.Source) []float64 {
	unit := distuv.Normal{Mu: 0, Sigma: 1, Src: src}
	dim, _ := n.L.Dims()
	z := mat.NewVecDense(dim, nil)
	for i := 0; i < dim; i++ {
		z.SetVec(i, unit.Rand())
	}
	var w mat.VecDense
	w.MulVec(n.L, z)
	return w.RawVector().Data
}

// ProcessMatrix implements the Noise interface.
func (n AWGN) ProcessMatrix() mat.Symmetric {
	return n.Q
}

// String implements the Stringer interface.
func (n AWGN) String() string {
	return fmt.Sprintf("AWGN{\nQ=%v}\n", mat.Formatted(n.Q, mat.Prefix("  ")))
}
