package mesh

import (
	"math"
	"sort"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

const leafSize = 4

type bvhNode struct {
	lo, hi      r3.Vector
	left, right int // children, -1 for leaves
	start, end  int // triangle range of leaves
}

// BVH is an axis aligned bounding box hierarchy over the triangles of a mesh.
// It is immutable once built and safe for concurrent queries.
type BVH struct {
	nodes []bvhNode
	tris  []Triangle
}

// NewBVH builds the hierarchy, splitting nodes at the median centroid of their longest axis.
func NewBVH(m *Mesh) (*BVH, error) {
	if len(m.Faces) == 0 {
		return nil, errors.New("mesh has no face")
	}
	b := &BVH{tris: m.Triangles()}
	b.build(0, len(b.tris))
	return b, nil
}

func (b *BVH) build(start, end int) int {
	pts := make([]r3.Vector, 0, 3*(end-start))
	for _, t := range b.tris[start:end] {
		pts = append(pts, t.A, t.B, t.C)
	}
	lo, hi := boundsOf(pts)
	idx := len(b.nodes)
	b.nodes = append(b.nodes, bvhNode{lo: lo, hi: hi, left: -1, right: -1, start: start, end: end})
	if end-start <= leafSize {
		return idx
	}

	ext := hi.Sub(lo)
	axis := func(v r3.Vector) float64 { return v.X }
	switch {
	case ext.Y >= ext.X && ext.Y >= ext.Z:
		axis = func(v r3.Vector) float64 { return v.Y }
	case ext.Z >= ext.X && ext.Z >= ext.Y:
		axis = func(v r3.Vector) float64 { return v.Z }
	}
	sub := b.tris[start:end]
	sort.Slice(sub, func(i, j int) bool { return axis(sub[i].Centroid()) < axis(sub[j].Centroid()) })

	mid := (start + end) / 2
	left := b.build(start, mid)
	right := b.build(mid, end)
	b.nodes[idx].left, b.nodes[idx].right = left, right
	return idx
}

// ClosestPoint returns the closest surface point to q and its squared distance.
func (b *BVH) ClosestPoint(q r3.Vector) (r3.Vector, float64, error) {
	best, bestD2 := r3.Vector{}, math.Inf(1)
	stack := []int{0}
	for len(stack) > 0 {
		n := b.nodes[stack[len(stack)-1]]
		stack = stack[:len(stack)-1]
		if boxDistance2(q, n.lo, n.hi) >= bestD2 {
			continue
		}
		if n.left < 0 {
			for _, t := range b.tris[n.start:n.end] {
				c := t.ClosestPoint(q)
				if d2 := c.Sub(q).Norm2(); d2 < bestD2 {
					best, bestD2 = c, d2
				}
			}
			continue
		}
		// Push the farthest child first so the nearest one is visited first.
		l, r := b.nodes[n.left], b.nodes[n.right]
		if boxDistance2(q, l.lo, l.hi) < boxDistance2(q, r.lo, r.hi) {
			stack = append(stack, n.right, n.left)
		} else {
			stack = append(stack, n.left, n.right)
		}
	}
	return best, bestD2, nil
}

// Len returns the number of triangles.
func (b *BVH) Len() int {
	return len(b.tris)
}

func boxDistance2(p, lo, hi r3.Vector) float64 {
	axis := func(v, l, h float64) float64 {
		switch {
		case v < l:
			return l - v
		case v > h:
			return v - h
		}
		return 0
	}
	dx, dy, dz := axis(p.X, lo.X, hi.X), axis(p.Y, lo.Y, hi.Y), axis(p.Z, lo.Z, hi.Z)
	return dx*dx + dy*dy + dz*dz
}
