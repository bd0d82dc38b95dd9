// Package mesh provides triangle meshes and closest point structures over their surface.
package mesh

import (
	"math"
	"math/rand/v2"
	"sort"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// Triangle is a triangle of the surface.
type Triangle struct {
	A, B, C r3.Vector
}

// Area returns the area of the triangle.
func (t Triangle) Area() float64 {
	return 0.5 * t.B.Sub(t.A).Cross(t.C.Sub(t.A)).Norm()
}

// Centroid returns the centroid of the triangle.
func (t Triangle) Centroid() r3.Vector {
	return t.A.Add(t.B).Add(t.C).Mul(1.0 / 3)
}

// ClosestPoint returns the point of the triangle closest to p.
func (t Triangle) ClosestPoint(p r3.Vector) r3.Vector {
	return ClosestPointTriangle(p, t.A, t.B, t.C)
}

// Mesh is an indexed triangle mesh.
type Mesh struct {
	Vertices []r3.Vector
	Faces    [][3]int
}

// New returns a mesh after checking every face references existing vertices.
func New(vertices []r3.Vector, faces [][3]int) (*Mesh, error) {
	for i, f := range faces {
		for _, v := range f {
			if v < 0 || v >= len(vertices) {
				return nil, errors.Errorf("face %d references vertex %d of %d", i, v, len(vertices))
			}
		}
	}
	return &Mesh{Vertices: vertices, Faces: faces}, nil
}

// Triangles returns the triangles of the mesh.
func (m *Mesh) Triangles() []Triangle {
	out := make([]Triangle, len(m.Faces))
	for i, f := range m.Faces {
		out[i] = Triangle{m.Vertices[f[0]], m.Vertices[f[1]], m.Vertices[f[2]]}
	}
	return out
}

// Bounds returns the axis aligned bounding box of the vertices.
func (m *Mesh) Bounds() (lo, hi r3.Vector) {
	return boundsOf(m.Vertices)
}

// Area returns the total surface area.
func (m *Mesh) Area() float64 {
	var a float64
	for _, t := range m.Triangles() {
		a += t.Area()
	}
	return a
}

// Sample draws n points uniformly over the surface area.
func (m *Mesh) Sample(n int, rng *rand.Rand) []r3.Vector {
	tris := m.Triangles()
	areas := make([]float64, len(tris))
	for i, t := range tris {
		areas[i] = t.Area()
	}
	cum := floats.CumSum(make([]float64, len(areas)), areas)
	total := cum[len(cum)-1]
	pts := make([]r3.Vector, n)
	for i := range pts {
		k := sort.SearchFloat64s(cum, rng.Float64()*total)
		if k >= len(tris) {
			k = len(tris) - 1
		}
		t := tris[k]
		r1, r2 := math.Sqrt(rng.Float64()), rng.Float64()
		pts[i] = t.A.Mul(1 - r1).Add(t.B.Mul(r1 * (1 - r2))).Add(t.C.Mul(r1 * r2))
	}
	return pts
}

// Transformed returns a copy of the mesh with every vertex mapped by f.
func (m *Mesh) Transformed(f func(r3.Vector) r3.Vector) *Mesh {
	v := make([]r3.Vector, len(m.Vertices))
	for i, p := range m.Vertices {
		v[i] = f(p)
	}
	faces := make([][3]int, len(m.Faces))
	copy(faces, m.Faces)
	return &Mesh{Vertices: v, Faces: faces}
}

// Merge concatenates meshes into one.
func Merge(meshes ...*Mesh) *Mesh {
	out := &Mesh{}
	for _, m := range meshes {
		off := len(out.Vertices)
		out.Vertices = append(out.Vertices, m.Vertices...)
		for _, f := range m.Faces {
			out.Faces = append(out.Faces, [3]int{f[0] + off, f[1] + off, f[2] + off})
		}
	}
	return out
}

// Box returns the closed box of the given edge lengths centered on the origin.
func Box(size r3.Vector) *Mesh {
	h := size.Mul(0.5)
	v := make([]r3.Vector, 0, 8)
	for i := 0; i < 8; i++ {
		p := r3.Vector{X: -h.X, Y: -h.Y, Z: -h.Z}
		if i&1 != 0 {
			p.X = h.X
		}
		if i&2 != 0 {
			p.Y = h.Y
		}
		if i&4 != 0 {
			p.Z = h.Z
		}
		v = append(v, p)
	}
	faces := [][3]int{
		{0, 2, 1}, {1, 2, 3}, // z-
		{4, 5, 6}, {5, 7, 6}, // z+
		{0, 1, 4}, {1, 5, 4}, // y-
		{2, 6, 3}, {3, 6, 7}, // y+
		{0, 4, 2}, {2, 4, 6}, // x-
		{1, 3, 5}, {3, 7, 5}, // x+
	}
	return &Mesh{Vertices: v, Faces: faces}
}

func boundsOf(pts []r3.Vector) (lo, hi r3.Vector) {
	inf := math.Inf(1)
	lo = r3.Vector{X: inf, Y: inf, Z: inf}
	hi = r3.Vector{X: -inf, Y: -inf, Z: -inf}
	for _, p := range pts {
		lo = r3.Vector{X: math.Min(lo.X, p.X), Y: math.Min(lo.Y, p.Y), Z: math.Min(lo.Z, p.Z)}
		hi = r3.Vector{X: math.Max(hi.X, p.X), Y: math.Max(hi.Y, p.Y), Z: math.Max(hi.Z, p.Z)}
	}
	return lo, hi
}

// ClosestPointTriangle returns the point of triangle abc closest to p, by locating p in the
// Voronoi regions of the vertices, edges and face of the triangle.
func ClosestPointTriangle(p, a, b, c r3.Vector) r3.Vector {
	ab, ac, ap := b.Sub(a), c.Sub(a), p.Sub(a)
	d1, d2 := ab.Dot(ap), ac.Dot(ap)
	if d1 <= 0 && d2 <= 0 {
		return a
	}

	bp := p.Sub(b)
	d3, d4 := ab.Dot(bp), ac.Dot(bp)
	if d3 >= 0 && d4 <= d3 {
		return b
	}

	vc := d1*d4 - d3*d2
	if vc <= 0 && d1 >= 0 && d3 <= 0 {
		return a.Add(ab.Mul(d1 / (d1 - d3)))
	}

	cp := p.Sub(c)
	d5, d6 := ab.Dot(cp), ac.Dot(cp)
	if d6 >= 0 && d5 <= d6 {
		return c
	}

	vb := d5*d2 - d1*d6
	if vb <= 0 && d2 >= 0 && d6 <= 0 {
		return a.Add(ac.Mul(d2 / (d2 - d6)))
	}

	va := d3*d6 - d5*d4
	if va <= 0 && d4-d3 >= 0 && d5-d6 >= 0 {
		w := (d4 - d3) / ((d4 - d3) + (d5 - d6))
		return b.Add(c.Sub(b).Mul(w))
	}

	sum := va + vb + vc
	if sum == 0 {
		// Degenerate triangle.
		return a
	}
	v, w := vb/sum, vc/sum
	return a.Add(ab.Mul(v)).Add(ac.Mul(w))
}
