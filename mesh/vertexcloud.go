package mesh

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/spatial/kdtree"
)

// VertexCloud approximates the surface by its vertices, indexed in a k-d tree.
// It suits densely sampled scans where the vertex spacing is below the measurement noise.
type VertexCloud struct {
	tree *kdtree.Tree
}

// NewVertexCloud indexes the points of the surface.
func NewVertexCloud(points []r3.Vector) (*VertexCloud, error) {
	if len(points) == 0 {
		return nil, errors.New("no surface point")
	}
	pts := make(kdtree.Points, len(points))
	for i, p := range points {
		pts[i] = kdtree.Point{p.X, p.Y, p.Z}
	}
	return &VertexCloud{tree: kdtree.New(pts, false)}, nil
}

// ClosestPoint returns the closest indexed point to q and its squared distance.
func (v *VertexCloud) ClosestPoint(q r3.Vector) (r3.Vector, float64, error) {
	c, d2 := v.tree.Nearest(kdtree.Point{q.X, q.Y, q.Z})
	p, ok := c.(kdtree.Point)
	if !ok || len(p) != 3 {
		return r3.Vector{}, 0, errors.Errorf("unexpected k-d tree point %v", c)
	}
	return r3.Vector{X: p[0], Y: p[1], Z: p[2]}, d2, nil
}
