package mesh

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// BruteForce answers closest point queries by scanning every triangle.
type BruteForce struct {
	tris []Triangle
}

// NewBruteForce returns a linear scan surface over the mesh.
func NewBruteForce(m *Mesh) (*BruteForce, error) {
	if len(m.Faces) == 0 {
		return nil, errors.New("mesh has no face")
	}
	return &BruteForce{tris: m.Triangles()}, nil
}

// ClosestPoint returns the closest surface point to q and its squared distance.
func (b *BruteForce) ClosestPoint(q r3.Vector) (r3.Vector, float64, error) {
	best, bestD2 := r3.Vector{}, math.Inf(1)
	for _, t := range b.tris {
		c := t.ClosestPoint(q)
		if d2 := c.Sub(q).Norm2(); d2 < bestD2 {
			best, bestD2 = c, d2
		}
	}
	return best, bestD2, nil
}
