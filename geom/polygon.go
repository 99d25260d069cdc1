package geom

import (
	"github.com/orcatree/treesupport/scalar"
)

// Polygon is a single closed, simple contour. The last vertex implicitly
// connects back to the first.
type Polygon []scalar.Point

// PolygonSet is an unordered collection of simple polygons, interpreted
// under the even-odd fill rule (a point is "inside" the set if it is
// inside an odd number of member polygons). Outer contours and holes are
// both ordinary members; orientation is not significant to this
// implementation.
type PolygonSet []Polygon

// JoinType selects the corner treatment used by Offset.
type JoinType int

const (
	JoinRound JoinType = iota
	JoinMiter
	JoinSquare
)

// Empty reports whether the set contains no area.
func (s PolygonSet) Empty() bool {
	return len(s) == 0
}

// BoundingBox returns the axis-aligned bounding box of s. ok is false for
// an empty set.
func (s PolygonSet) BoundingBox() (min, max scalar.Point, ok bool) {
	first := true
	for _, poly := range s {
		for _, p := range poly {
			if first {
				min, max = p, p
				first = false
				continue
			}
			if p.X < min.X {
				min.X = p.X
			}
			if p.Y < min.Y {
				min.Y = p.Y
			}
			if p.X > max.X {
				max.X = p.X
			}
			if p.Y > max.Y {
				max.Y = p.Y
			}
		}
	}
	return min, max, !first
}

// Area returns the total area of the set in mm², accounting for even-odd
// overlap (i.e. the area of the union of filled cells, not the sum of
// per-polygon areas).
func (s PolygonSet) Area() float64 {
	if s.Empty() {
		return 0
	}
	g := rasterize(s, defaultResolution)
	return g.area()
}

// Contains reports whether pt lies inside the filled region of s.
func (s PolygonSet) Contains(pt scalar.Point) bool {
	if s.Empty() {
		return false
	}
	count := 0
	for _, poly := range s {
		if poly.crossingNumber(pt)%2 == 1 {
			count++
		}
	}
	return count%2 == 1
}

// crossingNumber counts edge crossings of a rightward ray from pt,
// the standard even-odd point-in-polygon test.
func (poly Polygon) crossingNumber(pt scalar.Point) int {
	n := len(poly)
	if n < 3 {
		return 0
	}
	count := 0
	for i := 0; i < n; i++ {
		a := poly[i]
		b := poly[(i+1)%n]
		if (a.Y > pt.Y) != (b.Y > pt.Y) {
			// x-coordinate where the edge crosses pt.Y
			t := float64(pt.Y-a.Y) / float64(b.Y-a.Y)
			xCross := float64(a.X) + t*float64(b.X-a.X)
			if xCross > float64(pt.X) {
				count++
			}
		}
	}
	return count
}

// Union returns the union of all given sets.
func Union(sets ...PolygonSet) PolygonSet {
	all := PolygonSet{}
	for _, s := range sets {
		all = append(all, s...)
	}
	if all.Empty() {
		return nil
	}
	// Each input is filled on its own and the grids are OR-ed, so
	// overlapping inputs do not cancel under the even-odd rule.
	minP, maxP, _ := all.BoundingBox()
	g := newGrid(minP, maxP, defaultResolution, 2)
	for _, s := range sets {
		g.or(rasterizeOnGrid(s, g.res, g.originX, g.originY, g.w, g.h))
	}
	return g.trace()
}

// Difference returns a minus b.
func Difference(a, b PolygonSet) PolygonSet {
	if a.Empty() {
		return nil
	}
	if b.Empty() {
		return cloneSet(a)
	}
	ga := rasterize(a, defaultResolution)
	gb := rasterizeOnGrid(b, ga.res, ga.originX, ga.originY, ga.w, ga.h)
	ga.andNot(gb)
	return ga.trace()
}

// Intersection returns the overlap of a and b.
func Intersection(a, b PolygonSet) PolygonSet {
	if a.Empty() || b.Empty() {
		return nil
	}
	ga := rasterize(a, defaultResolution)
	gb := rasterizeOnGrid(b, ga.res, ga.originX, ga.originY, ga.w, ga.h)
	ga.and(gb)
	return ga.trace()
}

// Offset grows (delta>0) or shrinks (delta<0) s by delta, measured in
// Coord units. The join argument is ignored: the raster kernel used by
// this reference implementation always produces round corners. The
// parameter is accepted so callers written against a production
// Clipper-backed kernel compile unchanged.
func Offset(s PolygonSet, delta scalar.Coord, _ JoinType) PolygonSet {
	if s.Empty() {
		if delta <= 0 {
			return nil
		}
		return nil
	}
	minP, maxP, _ := s.BoundingBox()
	margin := 2
	if delta > 0 {
		// leave room on the grid for the grown region
		margin += int(delta/defaultResolution) + 1
	}
	g := newGrid(minP, maxP, defaultResolution, margin)
	fillScanline(g, s)
	g.grow(delta)
	return g.trace()
}

// Shrink is Offset(s, -delta, JoinRound) with delta taken as positive
// magnitude; a convenience for the common "shrink(avoidance(...),
// max_move(L))" pattern used when building one layer's avoidance from
// the layer below.
func Shrink(s PolygonSet, delta scalar.Coord) PolygonSet {
	if delta < 0 {
		delta = -delta
	}
	return Offset(s, -delta, JoinRound)
}

// Simplify removes vertices that deviate from their neighbours by less
// than tolerance (Douglas-Peucker).
func Simplify(s PolygonSet, tolerance scalar.Coord) PolygonSet {
	out := make(PolygonSet, 0, len(s))
	for _, poly := range s {
		simplified := douglasPeucker(poly, float64(tolerance))
		if len(simplified) >= 3 {
			out = append(out, simplified)
		}
	}
	return out
}

func douglasPeucker(poly Polygon, tol float64) Polygon {
	if len(poly) < 3 || tol <= 0 {
		return poly
	}
	tolSq := tol * tol
	keep := make([]bool, len(poly))
	keep[0] = true
	keep[len(poly)-1] = true
	var recur func(lo, hi int)
	recur = func(lo, hi int) {
		if hi <= lo+1 {
			return
		}
		a, b := poly[lo], poly[hi]
		maxDist := -1.0
		maxIdx := -1
		for i := lo + 1; i < hi; i++ {
			d := perpendicularDistance(poly[i], a, b)
			if d > maxDist {
				maxDist = d
				maxIdx = i
			}
		}
		if maxDist > tolSq {
			keep[maxIdx] = true
			recur(lo, maxIdx)
			recur(maxIdx, hi)
		}
	}
	recur(0, len(poly)-1)
	out := make(Polygon, 0, len(poly))
	for i, k := range keep {
		if k {
			out = append(out, poly[i])
		}
	}
	return out
}

// perpendicularDistance returns the squared distance from p to the line
// through a/b (or, if a==b, the squared distance to a). Callers compare
// against a squared tolerance so the square root is never needed.
func perpendicularDistance(p, a, b scalar.Point) float64 {
	dx := float64(b.X - a.X)
	dy := float64(b.Y - a.Y)
	length := dx*dx + dy*dy
	if length == 0 {
		d := p.DistanceTo(a)
		return d * d
	}
	t := (float64(p.X-a.X)*dx + float64(p.Y-a.Y)*dy) / length
	projX := float64(a.X) + t*dx
	projY := float64(a.Y) + t*dy
	ex := float64(p.X) - projX
	ey := float64(p.Y) - projY
	return ex*ex + ey*ey
}

// ProjectToContour returns the closest point on the boundary of s to pt.
func ProjectToContour(s PolygonSet, pt scalar.Point) scalar.Point {
	best := pt
	bestDist := -1.0
	for _, poly := range s {
		n := len(poly)
		for i := 0; i < n; i++ {
			a := poly[i]
			b := poly[(i+1)%n]
			cand := closestPointOnSegment(pt, a, b)
			d := cand.DistanceTo(pt)
			if bestDist < 0 || d < bestDist {
				bestDist = d
				best = cand
			}
		}
	}
	return best
}

func closestPointOnSegment(p, a, b scalar.Point) scalar.Point {
	dx := float64(b.X - a.X)
	dy := float64(b.Y - a.Y)
	length := dx*dx + dy*dy
	if length == 0 {
		return a
	}
	t := (float64(p.X-a.X)*dx + float64(p.Y-a.Y)*dy) / length
	if t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	return scalar.Point{
		X: a.X + scalar.Coord(t*dx),
		Y: a.Y + scalar.Coord(t*dy),
	}
}

// MoveInsideIfOutside returns pt unchanged if s contains it. Otherwise it
// projects pt onto the nearest boundary point of s; because Contains is a
// crossing-number test that counts part of the boundary as outside, a
// projected point that Contains rejects is stepped a further 1, 2, 4 or 8
// Coord units away from pt (into s) until Contains accepts it. A point
// returned inside s is returned unchanged by a second call.
func MoveInsideIfOutside(pt scalar.Point, s PolygonSet) scalar.Point {
	if s.Empty() || s.Contains(pt) {
		return pt
	}
	p := ProjectToContour(s, pt)
	if d := p.DistanceTo(pt); d > 0 && !s.Contains(p) {
		for k := 1.0; k <= 8; k *= 2 {
			q := scalar.Point{
				X: p.X + scalar.Coord(float64(p.X-pt.X)*k/d),
				Y: p.Y + scalar.Coord(float64(p.Y-pt.Y)*k/d),
			}
			if s.Contains(q) {
				return q
			}
		}
	}
	return p
}

func cloneSet(s PolygonSet) PolygonSet {
	out := make(PolygonSet, len(s))
	for i, p := range s {
		out[i] = append(Polygon(nil), p...)
	}
	return out
}
