package goupf

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// Surface answers closest point queries against the static surface of the tracked object,
// expressed in the object frame. Implementations must be safe for concurrent queries.
type Surface interface {
	// ClosestPoint returns the surface point closest to q and its squared distance to q.
	ClosestPoint(q r3.Vector) (r3.Vector, float64, error)
}

// SurfaceFunc adapts a function to the Surface interface.
type SurfaceFunc func(q r3.Vector) (r3.Vector, float64, error)

// ClosestPoint implements the Surface interface.
func (f SurfaceFunc) ClosestPoint(q r3.Vector) (r3.Vector, float64, error) {
	return f(q)
}

// measure evaluates the measurement function of a state: each point of the batch is moved into
// the candidate object frame, projected on the surface and moved back. The result is stored in
// dst, which must hold 3*len(batch) values.
func measure(s Surface, state []float64, batch []r3.Vector, dst []float64) error {
	h := FromState(state)
	inv := h.Inverse()
	for i, m := range batch {
		c, _, err := s.ClosestPoint(inv.Apply(m))
		if err != nil {
			return errors.Wrapf(ErrSurfaceQuery, "point %d: %v", i, err)
		}
		back := h.Apply(c)
		dst[3*i] = back.X
		dst[3*i+1] = back.Y
		dst[3*i+2] = back.Z
	}
	return nil
}

// sumSquaredDistance returns the sum of squared distances from the batch points to the surface,
// inv being the inverse transform of the candidate pose.
func sumSquaredDistance(s Surface, inv Homogeneous, batch []r3.Vector) (float64, error) {
	var sum float64
	for i, m := range batch {
		_, d2, err := s.ClosestPoint(inv.Apply(m))
		if err != nil {
			return 0, errors.Wrapf(ErrSurfaceQuery, "point %d: %v", i, err)
		}
		sum += d2
	}
	return sum, nil
}
