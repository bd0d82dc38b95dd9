package goupf

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func TestCheckDims(t *testing.T) {
	i22 := mat.NewDense(2, 2, []float64{1, 0, 0, 1})
	i33 := mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
	methods := []DimensionAgreement{cols2cols, rows2rows, rowsAndcols}
	for _, meth := range methods {
		if err := checkMatDims(i22, i22, "i22", "i22", meth); err != nil {
			t.Fatalf("method %+v fails: %s", meth, err)
		}
		if err := checkMatDims(i22, i33, "i22", "i33", meth); err == nil {
			t.Fatalf("method %+v does not error when using i22 and i33 ", meth)
		}
	}
	// A 2x3 against a 3x3 only disagrees on rows.
	i23 := mat.NewDense(2, 3, nil)
	if err := checkMatDims(i23, i33, "i23", "i33", cols2cols); err != nil {
		t.Fatalf("cols2cols fails on agreeing columns: %s", err)
	}
	if err := checkMatDims(i23, i33, "i23", "i33", rows2rows); err == nil {
		t.Fatal("rows2rows does not error on 2 and 3 rows")
	}
}

func TestErrorKinds(t *testing.T) {
	err := errors.Wrapf(ErrNumerical, "could not invert Pyy of particle %d", 3)
	assert.True(t, errors.Is(err, ErrNumerical))
	assert.False(t, errors.Is(err, ErrConfiguration))
	assert.Contains(t, err.Error(), "particle 3")
}
