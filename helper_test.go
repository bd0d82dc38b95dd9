package goupf

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func assertPanic(t *testing.T, f func()) {
	defer func() {
		if r := recover(); r == nil {
			t.Errorf("code did not panic")
		}
	}()
	f()
}

func TestIdentity(t *testing.T) {
	n := 3
	i33 := Identity(n)
	if r, c := i33.Dims(); r != n || r != c {
		t.Fatalf("i33 has dimensions (%dx%d)", r, c)
	}
	for i := 0; i < n; i++ {
		if i33.At(i, i) != 1 {
			t.Fatalf("i33(%d,%d) != 1", i, i)
		}
		for j := 0; j < n; j++ {
			if i != j && i33.At(i, j) != 0 {
				t.Fatalf("i33(%d,%d) != 0", i, j)
			}
		}
	}
	if !IsDiagonal(ScaledIdentity(4, 2.5)) {
		t.Fatal("scaled identity is not diagonal")
	}
	if !IsNil(mat.NewDense(2, 2, nil)) {
		t.Fatal("zero matrix is not nil")
	}
}

func TestAsSymDense(t *testing.T) {
	_, err := AsSymDense(mat.NewDense(2, 3, nil), 1e-12)
	require.Error(t, err)

	_, err = AsSymDense(mat.NewDense(2, 2, []float64{1, 2, 3, 1}), 1e-12)
	require.Error(t, err)

	sym, err := AsSymDense(mat.NewDense(2, 2, []float64{1, 2, 2 + 1e-14, 1}), 1e-12)
	require.NoError(t, err)
	assert.InDelta(t, 2, sym.At(0, 1), 1e-12)
	assert.Equal(t, sym.At(0, 1), sym.At(1, 0))
}

func TestCheckPSD(t *testing.T) {
	require.NoError(t, checkPSD(Diagonal([]float64{1, 0, 3}), "P", 1e-9))
	err := checkPSD(mat.NewSymDense(2, []float64{1, 2, 2, 1}), "P", 1e-9)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNumerical))
}
