package goupf

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

var (
	// ErrConfiguration is returned when the filter parameters cannot be used; the run never starts.
	ErrConfiguration = errors.New("invalid filter configuration")
	// ErrNumerical is returned when a step hits a failed factorization, an invalid covariance
	// or a vanishing weight population. The run is aborted.
	ErrNumerical = errors.New("numerical failure")
	// ErrSurfaceQuery is returned when the surface could not answer a closest point query.
	ErrSurfaceQuery = errors.New("surface query failed")
	// ErrLifecycle is returned when filter methods are called out of order.
	ErrLifecycle = errors.New("invalid filter lifecycle")
	// ErrFinished is returned by Step once every measurement batch has been consumed.
	ErrFinished = errors.New("filter finished")
)

// DimensionAgreement defines how two matrices' dimensions should agree.
type DimensionAgreement uint8

const (
	dimErrMsg                    = "dimensions must agree: "
	cols2cols DimensionAgreement = iota + 1
	rows2rows
	rowsAndcols
)

// checkMatDims checks the matrix dimensions match provided a DimensionAgreement. Returns an error if not.
func checkMatDims(m1, m2 mat.Matrix, name1, name2 string, method DimensionAgreement) error {
	r1, c1 := m1.Dims()
	r2, c2 := m2.Dims()
	switch method {
	case cols2cols:
		if c1 != c2 {
			return errors.Errorf("%s%s(...x%d) %s(...x%d)", dimErrMsg, name1, c1, name2, c2)
		}
	case rows2rows:
		if r1 != r2 {
			return errors.Errorf("%s%s(%dx...) %s(%dx...)", dimErrMsg, name1, r1, name2, r2)
		}
	case rowsAndcols:
		if c1 != c2 || r1 != r2 {
			return errors.Errorf("%s%s(%dx%d) %s(%dx%d)", dimErrMsg, name1, r1, c1, name2, r2, c2)
		}
	}
	return nil
}
