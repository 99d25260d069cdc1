package geom

import (
	"sort"

	"github.com/golang/geo/r3"
	"github.com/orcatree/treesupport/scalar"
)

// Segment is one indexed 2-D line: the unit LineAABBTree stores and the
// organic smoother queries against.
type Segment struct {
	A, B scalar.Point
}

func (s Segment) min() (x, y scalar.Coord) {
	x, y = s.A.X, s.A.Y
	if s.B.X < x {
		x = s.B.X
	}
	if s.B.Y < y {
		y = s.B.Y
	}
	return
}

func (s Segment) max() (x, y scalar.Coord) {
	x, y = s.A.X, s.A.Y
	if s.B.X > x {
		x = s.B.X
	}
	if s.B.Y > y {
		y = s.B.Y
	}
	return
}

// ClosestPointSquared returns the squared distance from pt to the segment
// and the closest point itself.
func (s Segment) ClosestPointSquared(pt scalar.Point) (distSq float64, closest scalar.Point) {
	closest = closestPointOnSegment(pt, s.A, s.B)
	d := closest.DistanceTo(pt)
	return d * d, closest
}

// lineBVHNode is a bounding-volume-hierarchy node over 2-D segments,
// structurally grounded on the from-scratch BVH in
// other_examples/...viamrobotics-rdk__spatialmath-bvh.go.go (AABB min/max,
// left/right children, leaf payload list) but specialised to line
// segments and squared-distance queries instead of ray casts.
type lineBVHNode struct {
	minX, minY, maxX, maxY scalar.Coord
	left, right *lineBVHNode
	segIdx []int // leaf only
}

// maxSegsPerLeaf mirrors the maxGeomsPerLeaf threshold used by the BVH
// this tree is adapted from.
const maxSegsPerLeaf = 8

// LineAABBTree is an AABB-accelerated index over a fixed set of line
// segments. Built once per layer from the collision contour.
type LineAABBTree struct {
	segs []Segment
	root *lineBVHNode
}

// NewLineAABBTree builds a tree over a polygon set's boundary edges.
func NewLineAABBTree(s PolygonSet) *LineAABBTree {
	var segs []Segment
	for _, poly := range s {
		n := len(poly)
		for i := 0; i < n; i++ {
			segs = append(segs, Segment{A: poly[i], B: poly[(i+1)%n]})
		}
	}
	return NewLineAABBTreeFromSegments(segs)
}

// NewLineAABBTreeFromSegments builds a tree directly over a segment list.
func NewLineAABBTreeFromSegments(segs []Segment) *LineAABBTree {
	t := &LineAABBTree{segs: segs}
	idx := make([]int, len(segs))
	for i := range idx {
		idx[i] = i
	}
	t.root = t.build(idx)
	return t
}

func (t *LineAABBTree) build(idx []int) *lineBVHNode {
	n := &lineBVHNode{}
	first := true
	for _, i := range idx {
		mnx, mny := t.segs[i].min()
		mxx, mxy := t.segs[i].max()
		if first {
			n.minX, n.minY, n.maxX, n.maxY = mnx, mny, mxx, mxy
			first = false
			continue
		}
		if mnx < n.minX {
			n.minX = mnx
		}
		if mny < n.minY {
			n.minY = mny
		}
		if mxx > n.maxX {
			n.maxX = mxx
		}
		if mxy > n.maxY {
			n.maxY = mxy
		}
	}
	if len(idx) <= maxSegsPerLeaf {
		n.segIdx = idx
		return n
	}
	// median split on the longer axis, same heuristic family as the
	// teacher's SAH-or-median BVH builder.
	spanX := n.maxX - n.minX
	spanY := n.maxY - n.minY
	axisX := spanX >= spanY
	sort.Slice(idx, func(i, j int) bool {
		ai, aj := t.segs[idx[i]], t.segs[idx[j]]
		if axisX {
			return (ai.A.X + ai.B.X) < (aj.A.X + aj.B.X)
		}
		return (ai.A.Y + ai.B.Y) < (aj.A.Y + aj.B.Y)
	})
	mid := len(idx) / 2
	n.left = t.build(idx[:mid])
	n.right = t.build(idx[mid:])
	return n
}

// NearestSquared returns the squared distance from pt to the closest
// segment in the tree, and that segment's index.
func (t *LineAABBTree) NearestSquared(pt scalar.Point) (distSq float64, segIdx int, closest scalar.Point) {
	if t.root == nil {
		return -1, -1, pt
	}
	best := -1.0
	bestIdx := -1
	var bestPt scalar.Point
	var walk func(n *lineBVHNode)
	walk = func(n *lineBVHNode) {
		if n == nil {
			return
		}
		if best >= 0 && nodeDistSq(n, pt) > best {
			return
		}
		if n.segIdx != nil {
			for _, i := range n.segIdx {
				d, cp := t.segs[i].ClosestPointSquared(pt)
				if best < 0 || d < best {
					best = d
					bestIdx = i
					bestPt = cp
				}
			}
			return
		}
		walk(n.left)
		walk(n.right)
	}
	walk(t.root)
	return best, bestIdx, bestPt
}

func nodeDistSq(n *lineBVHNode, pt scalar.Point) float64 {
	dx := 0.0
	if float64(pt.X) < float64(n.minX) {
		dx = float64(n.minX) - float64(pt.X)
	} else if float64(pt.X) > float64(n.maxX) {
		dx = float64(pt.X) - float64(n.maxX)
	}
	dy := 0.0
	if float64(pt.Y) < float64(n.minY) {
		dy = float64(n.minY) - float64(pt.Y)
	} else if float64(pt.Y) > float64(n.maxY) {
		dy = float64(pt.Y) - float64(n.maxY)
	}
	return dx*dx + dy*dy
}

// Triangle is one indexed 3-D face of a branch-mesh capsule.
type Triangle struct {
	A, B, C r3.Vector
}

func (tr Triangle) bounds() (min, max r3.Vector) {
	min, max = tr.A, tr.A
	for _, v := range []r3.Vector{tr.B, tr.C} {
		min = r3.Vector{X: fmin(min.X, v.X), Y: fmin(min.Y, v.Y), Z: fmin(min.Z, v.Z)}
		max = r3.Vector{X: fmax(max.X, v.X), Y: fmax(max.Y, v.Y), Z: fmax(max.Z, v.Z)}
	}
	return
}

func fmin(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func fmax(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// TriAABBTree indexes a triangle soup by Z-range for slicing queries.
// It keeps triangles with their Z-spans rather than a full hierarchy:
// mesh slicing only ever needs a Z-range membership test, not
// nearest-neighbour queries. TrianglesNearZ tests every triangle's span,
// so one slice query is O(n).
type TriAABBTree struct {
	tris []Triangle
	zMin []float64
	order []int
}

// NewTriAABBTree indexes tris for per-Z-plane queries.
func NewTriAABBTree(tris []Triangle) *TriAABBTree {
	t := &TriAABBTree{tris: tris}
	t.zMin = make([]float64, len(tris))
	t.order = make([]int, len(tris))
	for i, tr := range tris {
		min, _ := tr.bounds()
		t.zMin[i] = min.Z
		t.order[i] = i
	}
	sort.Slice(t.order, func(i, j int) bool { return t.zMin[t.order[i]] < t.zMin[t.order[j]] })
	return t
}

// TrianglesNearZ returns every triangle whose Z-span includes z.
func (t *TriAABBTree) TrianglesNearZ(z float64) []Triangle {
	var out []Triangle
	for _, i := range t.order {
		tr := t.tris[i]
		min, max := tr.bounds()
		if min.Z <= z && z <= max.Z {
			out = append(out, tr)
		}
	}
	return out
}
