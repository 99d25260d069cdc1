// Package mesh implements the branch mesher & re-slicer: it extrudes each branch path as a capsule (hemisphere-tube-
// hemisphere), slices the resulting triangle soup at the model's layer Z
// heights, and assembles the final per-layer base / bottom-contact /
// top-contact support polygons.
package mesh

import (
	"math"
	"sort"

	"github.com/golang/geo/r3"
	"github.com/orcatree/treesupport/extract"
	"github.com/orcatree/treesupport/geom"
	"github.com/orcatree/treesupport/interfaceplacer"
	"github.com/orcatree/treesupport/oracle"
	"github.com/orcatree/treesupport/propagate"
	"github.com/orcatree/treesupport/scalar"
)

// Settings are the mesher's tunables.
type Settings struct {
	AngleStepEpsilon float64 // mm, controls ring discretisation density
	LineWidth scalar.Coord
	SimplifyTolerance scalar.Coord
	RestAreaThreshold float64 // mm², stop propagating a rest polygon below this
}

// Slice is one layer's accumulated support contribution for a tree.
type Slice struct {
	Polygons geom.PolygonSet
	BottomContacts geom.PolygonSet
	NumBranches int
}

// TreeSlices is a tree's Slice array indexed by absolute layer id,
// offset so negative (raft) layers are representable.
type TreeSlices struct {
	slices []Slice
	raftOffset int
}

func newTreeSlices(raftLayers, topLayer int) *TreeSlices {
	n := raftLayers + topLayer + 2
	if n < 1 {
		n = 1
	}
	return &TreeSlices{slices: make([]Slice, n), raftOffset: raftLayers}
}

func (t *TreeSlices) at(layer scalar.LayerIndex) *Slice {
	i := int(layer) + t.raftOffset
	if i < 0 || i >= len(t.slices) {
		return nil
	}
	return &t.slices[i]
}

// ringSegments returns the number of polar segments for a hemisphere cap
// given radius and an angle-step epsilon: angle_step = 2*acos(1 - eps/r),
// segments = ceil(pi / (2*angle_step)).
func ringSegments(radiusMM float64, eps float64) int {
	if radiusMM <= 0 {
		radiusMM = eps
	}
	ratio := 1 - eps/radiusMM
	ratio = math.Max(-1, math.Min(1, ratio))
	angleStep := 2 * math.Acos(ratio)
	if angleStep <= 0 {
		return 4
	}
	n := int(math.Ceil(math.Pi / (2 * angleStep)))
	if n < 3 {
		n = 3
	}
	return n
}

const ringPoints = 12

// centrelinePoint is one vertex of a branch's 3-D centreline with its
// radius.
type centrelinePoint struct {
	pos r3.Vector
	radius float64
}

// ExtrudeBranch builds the capsule triangle mesh for one branch: bottom
// hemisphere, tube along the path, top hemisphere.
func ExtrudeBranch(path []centrelinePoint, settings Settings) []geom.Triangle {
	if len(path) == 0 {
		return nil
	}
	var tris []geom.Triangle

	tangent := func(i int) r3.Vector {
		var t r3.Vector
		if i > 0 {
			t = t.Add(path[i].pos.Sub(path[i-1].pos))
		}
		if i < len(path)-1 {
			t = t.Add(path[i+1].pos.Sub(path[i].pos))
		}
		if t.Norm() < 1e-9 {
			return r3.Vector{Z: 1}
		}
		return t.Mul(1 / t.Norm())
	}

	rings := make([][]r3.Vector, len(path))
	for i, p := range path {
		rings[i] = ringAt(p.pos, tangent(i), p.radius, ringPoints)
	}

	first := path[0]
	apex := first.pos.Sub(tangent(0).Mul(first.radius))
	bottomSegs := ringSegments(first.radius, settings.AngleStepEpsilon)
	tris = append(tris, hemisphereCap(apex, rings[0], tangent(0).Mul(-1), first.radius, bottomSegs, true)...)

	for i := 1; i < len(rings); i++ {
		tris = append(tris, zigZagStrip(rings[i-1], rings[i])...)
	}

	last := path[len(path)-1]
	apexTop := last.pos.Add(tangent(len(path)-1).Mul(last.radius))
	topSegs := ringSegments(last.radius, settings.AngleStepEpsilon)
	tris = append(tris, hemisphereCap(apexTop, rings[len(rings)-1], tangent(len(path)-1), last.radius, topSegs, false)...)

	return tris
}

func ringAt(center, axis r3.Vector, radius float64, n int) []r3.Vector {
	u, v := orthonormalBasis(axis)
	ring := make([]r3.Vector, n)
	for i := 0; i < n; i++ {
		a := 2 * math.Pi * float64(i) / float64(n)
		offset := u.Mul(radius * math.Cos(a)).Add(v.Mul(radius * math.Sin(a)))
		ring[i] = center.Add(offset)
	}
	return ring
}

func orthonormalBasis(axis r3.Vector) (u, v r3.Vector) {
	if axis.Norm() < 1e-9 {
		axis = r3.Vector{Z: 1}
	}
	axis = axis.Mul(1 / axis.Norm())
	ref := r3.Vector{X: 1}
	if math.Abs(axis.X) > 0.9 {
		ref = r3.Vector{Y: 1}
	}
	u = axis.Cross(ref)
	u = u.Mul(1 / u.Norm())
	v = axis.Cross(u)
	return u, v
}

// zigZagStrip triangulates between two rings of equal point count,
// picking the shorter of the two diagonals at each step.
func zigZagStrip(a, b []r3.Vector) []geom.Triangle {
	n := len(a)
	if n == 0 || len(b) != n {
		return nil
	}
	var tris []geom.Triangle
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		d1 := a[i].Sub(b[j]).Norm()
		d2 := b[i].Sub(a[j]).Norm()
		if d1 <= d2 {
			tris = append(tris,
				geom.Triangle{A: a[i], B: b[j], C: a[j]},
				geom.Triangle{A: a[i], B: b[i], C: b[j]},
			)
		} else {
			tris = append(tris,
				geom.Triangle{A: a[i], B: b[i], C: a[j]},
				geom.Triangle{A: a[j], B: b[i], C: b[j]},
			)
		}
	}
	return tris
}

// hemisphereCap closes ring with a hemisphere of the given radius: segs-1
// intermediate rings follow a quarter circle from ring towards apex along
// axis, joined by zig-zag strips, and a fan to apex closes the pole.
func hemisphereCap(apex r3.Vector, ring []r3.Vector, axis r3.Vector, radius float64, segs int, _ bool) []geom.Triangle {
	n := len(ring)
	var tris []geom.Triangle
	centre := apex.Sub(axis.Mul(radius))
	prev := ring
	for k := 1; k < segs; k++ {
		phi := math.Pi / 2 * float64(k) / float64(segs)
		next := make([]r3.Vector, n)
		for i, p := range ring {
			next[i] = centre.Add(p.Sub(centre).Mul(math.Cos(phi))).Add(axis.Mul(radius * math.Sin(phi)))
		}
		tris = append(tris, zigZagStrip(prev, next)...)
		prev = next
	}
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		tris = append(tris, geom.Triangle{A: apex, B: prev[i], C: prev[j]})
	}
	return tris
}

// SliceBranch re-slices a branch's extruded mesh at layerZ heights
// spanning [fromLayer, toLayer], differencing against collision and
// intersecting with machineBorder.
func SliceBranch(tris []geom.Triangle, layerZ []float64, fromLayer, toLayer scalar.LayerIndex, volumes *oracle.Volumes, machineBorder geom.PolygonSet) map[scalar.LayerIndex]geom.PolygonSet {
	m := geom.NewMesh(tris)
	out := make(map[scalar.LayerIndex]geom.PolygonSet)
	for l := fromLayer; l <= toLayer; l++ {
		i := int(l)
		if i < 0 || i >= len(layerZ) {
			continue
		}
		poly := m.SliceAtZ(layerZ[i])
		if poly.Empty() {
			continue
		}
		poly = geom.Difference(poly, volumes.Collision(0, l, false))
		if !machineBorder.Empty() {
			poly = geom.Intersection(poly, machineBorder)
		}
		if !poly.Empty() {
			out[l] = poly
		}
	}
	return out
}

// Assemble folds one branch's per-layer slices into tree, unioning with
// any prior branch's contribution on the same layer and marking
// NumBranches>1.
func Assemble(tree *TreeSlices, perLayer map[scalar.LayerIndex]geom.PolygonSet) {
	for layer, poly := range perLayer {
		s := tree.at(layer)
		if s == nil {
			continue
		}
		if s.NumBranches == 0 {
			s.Polygons = poly
		} else {
			s.Polygons = geom.Union(s.Polygons, poly)
		}
		s.NumBranches++
	}
}

// AddBottomContact unions area into tree's bottom-contact accumulator
// for layer.
func (t *TreeSlices) AddBottomContact(layer scalar.LayerIndex, area geom.PolygonSet) {
	s := t.at(layer)
	if s == nil {
		return
	}
	s.BottomContacts = geom.Union(s.BottomContacts, area)
}

// AddExtraBottomSlice folds an extra rest-propagation slice into
// tree's base polygons for layer, the same way Assemble folds a
// branch's regular slices.
func (t *TreeSlices) AddExtraBottomSlice(layer scalar.LayerIndex, area geom.PolygonSet) {
	s := t.at(layer)
	if s == nil {
		return
	}
	if s.NumBranches == 0 {
		s.Polygons = area
	} else {
		s.Polygons = geom.Union(s.Polygons, area)
	}
	s.NumBranches++
}

// BottomContact computes a branch root's bottom-contact polygon: graceful roots intersect the first
// non-empty slice with placeable area; non-graceful roots propagate a
// shrinking "rest" polygon downward until it falls below
// RestAreaThreshold.
func BottomContact(root *extract.Branch, firstSlice geom.PolygonSet, volumes *oracle.Volumes, settings Settings) (contacts map[scalar.LayerIndex]geom.PolygonSet, extraBottoms map[scalar.LayerIndex]geom.PolygonSet) {
	contacts = make(map[scalar.LayerIndex]geom.PolygonSet)
	extraBottoms = make(map[scalar.LayerIndex]geom.PolygonSet)
	if len(root.Elements) == 0 {
		return
	}
	rootEl := root.Elements[0]
	layer := rootEl.LayerIdx

	if rootEl.ToModelGracious {
		placeable := volumes.PlaceableArea(0, layer)
		contacts[layer] = geom.Intersection(firstSlice, placeable)
		return
	}

	cur := firstSlice
	for l := layer; ; l-- {
		if cur.Area() < settings.RestAreaThreshold {
			break
		}
		placeable := volumes.PlaceableArea(0, l)
		contact := geom.Intersection(cur, placeable)
		if !contact.Empty() {
			contacts[l] = contact
		}
		extraBottoms[l] = cur
		cur = geom.Difference(cur, volumes.Collision(0, l-1, false))
		if l <= 0 {
			break
		}
	}
	return
}

// FinalAssembly produces the final per-layer base/bottom-contact output
// for one tree, subtracting published top contacts from base and bottom
// contacts, and smoothing/simplifying the base outline.
func FinalAssembly(tree *TreeSlices, placer *interfaceplacer.Placer, settings Settings) map[scalar.LayerIndex]Slice {
	out := make(map[scalar.LayerIndex]Slice)
	for i := range tree.slices {
		layer := scalar.LayerIndex(i - tree.raftOffset)
		s := tree.slices[i]
		if s.NumBranches == 0 {
			continue
		}
		base := geom.Offset(s.Polygons, settings.LineWidth, geom.JoinRound)
		base = geom.Simplify(base, settings.SimplifyTolerance)
		if placer != nil {
			top := placer.TopContact(layer)
			base = geom.Difference(base, top)
			s.BottomContacts = geom.Difference(s.BottomContacts, top)
		}
		base = geom.Difference(base, s.BottomContacts)
		out[layer] = Slice{Polygons: base, BottomContacts: s.BottomContacts, NumBranches: s.NumBranches}
	}
	return out
}

// NewTreeSlices exposes the constructor for callers assembling a forest
// of trees (kept separate from TreeSlices' private fields).
func NewTreeSlices(raftLayers, topLayer int) *TreeSlices {
	return newTreeSlices(raftLayers, topLayer)
}

// CentrelineFromBranch converts a branch's elements (already smoothed by
// organic.Smooth) into extrusion path points, walking root to tip.
func CentrelineFromBranch(branch *extract.Branch, propSettings propagate.Settings, layerZ []float64) []centrelinePoint {
	pts := make([]centrelinePoint, 0, len(branch.Elements))
	for _, el := range branch.Elements {
		z := 0.0
		if i := int(el.LayerIdx); i >= 0 && i < len(layerZ) {
			z = layerZ[i]
		}
		pts = append(pts, centrelinePoint{
			pos: r3.Vector{X: float64(el.ResultOnLayer.X) / scalar.Unscale, Y: float64(el.ResultOnLayer.Y) / scalar.Unscale, Z: z},
			radius: el.Radius(propSettings),
		})
	}
	sort.SliceStable(pts, func(i, j int) bool { return pts[i].pos.Z < pts[j].pos.Z })
	return pts
}
