package geom

import (
	"math"

	"github.com/orcatree/treesupport/scalar"
)

// Polyline is an open chain of points.
type Polyline []scalar.Point

// Polylines is a collection of open chains, e.g. the zig-zag tip pattern
// produced inside one overhang area.
type Polylines []Polyline

// InfillPattern selects the line-fill pattern used by LineInfill.
type InfillPattern int

const (
	// PatternZigZag connects consecutive scan lines alternately, which is
	// what the tip seeder needs: a single connected path sampling the
	// overhang area at `spacing`, step 4.
	PatternZigZag InfillPattern = iota
	// PatternLines emits disconnected parallel scan-line segments.
	PatternLines
)

// LineInfill fills boundary with parallel lines at spacing, oriented at
// angleRadians, optionally stitched into one zig-zag path. density scales
// the number of lines inversely (density==1 uses spacing as-is; doubling
// density halves the spacing actually used). anchorLength extends the
// first/last segment of the zig-zag path by that length along its own
// direction, matching a typical line-infill generator's anchor behaviour.
func LineInfill(boundary PolygonSet, pattern InfillPattern, spacing scalar.Coord, density float64, angleRadians float64, anchorLength scalar.Coord) Polylines {
	if boundary.Empty() || spacing <= 0 {
		return nil
	}
	if density <= 0 {
		density = 1
	}
	effSpacing := scalar.Coord(float64(spacing) / density)
	if effSpacing <= 0 {
		effSpacing = 1
	}

	minP, maxP, ok := boundary.BoundingBox()
	if !ok {
		return nil
	}
	cx := float64(minP.X+maxP.X) / 2
	cy := float64(minP.Y+maxP.Y) / 2
	diag := math.Hypot(float64(maxP.X-minP.X), float64(maxP.Y-minP.Y)) + float64(effSpacing)

	cos, sin := math.Cos(angleRadians), math.Sin(angleRadians)
	perpX, perpY := -sin, cos

	var allSegs []Polyline
	n := int(diag/float64(effSpacing)) + 2
	for i := -n; i <= n; i++ {
		offset := float64(i) * float64(effSpacing)
		ox := cx + perpX*offset
		oy := cy + perpY*offset
		p0 := scalar.Point{X: scalar.Coord(ox - cos*diag), Y: scalar.Coord(oy - sin*diag)}
		p1 := scalar.Point{X: scalar.Coord(ox + cos*diag), Y: scalar.Coord(oy + sin*diag)}
		seg := Segment{A: p0, B: p1}
		pts := clipSegmentToPolygonSet(seg, boundary)
		for _, pl := range pts {
			allSegs = append(allSegs, pl)
		}
	}

	switch pattern {
	case PatternLines:
		return Polylines(allSegs)
	default:
		return zigZagStitch(allSegs, anchorLength)
	}
}

// clipSegmentToPolygonSet intersects an infinite scan segment with a
// polygon set's interior, returning the interior sub-chords sorted along
// the segment.
func clipSegmentToPolygonSet(seg Segment, s PolygonSet) []Polyline {
	type hit struct{ t float64 }
	var ts []float64
	dx := float64(seg.B.X - seg.A.X)
	dy := float64(seg.B.Y - seg.A.Y)
	length2 := dx*dx + dy*dy
	if length2 == 0 {
		return nil
	}
	for _, poly := range s {
		n := len(poly)
		for i := 0; i < n; i++ {
			a := poly[i]
			b := poly[(i+1)%n]
			if t, ok := segmentIntersectT(seg.A, seg.B, a, b); ok {
				ts = append(ts, t)
			}
		}
	}
	if len(ts) < 2 {
		return nil
	}
	insertionSortFloats(ts)
	// de-duplicate near-identical crossings (tangential touches)
	dedup := ts[:1]
	for _, t := range ts[1:] {
		if t-dedup[len(dedup)-1] > 1e-9 {
			dedup = append(dedup, t)
		}
	}
	ts = dedup

	var out []Polyline
	for i := 0; i+1 < len(ts); i += 2 {
		a := lerp(seg.A, seg.B, ts[i])
		b := lerp(seg.A, seg.B, ts[i+1])
		mid := lerp(seg.A, seg.B, (ts[i]+ts[i+1])/2)
		if s.Contains(mid) {
			out = append(out, Polyline{a, b})
		}
	}
	return out
}

func lerp(a, b scalar.Point, t float64) scalar.Point {
	return scalar.Point{
		X: a.X + scalar.Coord(t*float64(b.X-a.X)),
		Y: a.Y + scalar.Coord(t*float64(b.Y-a.Y)),
	}
}

// segmentIntersectT returns the parametric t along p0->p1 where it
// crosses segment a->b, if any.
func segmentIntersectT(p0, p1, a, b scalar.Point) (float64, bool) {
	rX, rY := float64(p1.X-p0.X), float64(p1.Y-p0.Y)
	sX, sY := float64(b.X-a.X), float64(b.Y-a.Y)
	denom := rX*sY - rY*sX
	if denom == 0 {
		return 0, false
	}
	qpX, qpY := float64(a.X-p0.X), float64(a.Y-p0.Y)
	t := (qpX*sY - qpY*sX) / denom
	u := (qpX*rY - qpY*rX) / denom
	if u < 0 || u > 1 {
		return 0, false
	}
	return t, true
}

// zigZagStitch joins same-side endpoints of successive parallel chords
// into one connected zig-zag path, optionally extending the first and
// last leg by anchorLength.
func zigZagStitch(segs []Polyline, anchorLength scalar.Coord) Polylines {
	if len(segs) == 0 {
		return nil
	}
	path := make(Polyline, 0, len(segs)*2)
	for i, seg := range segs {
		if i%2 == 1 {
			seg = Polyline{seg[1], seg[0]}
		}
		path = append(path, seg...)
	}
	if anchorLength > 0 && len(path) >= 2 {
		path[0] = extendAlong(path[1], path[0], anchorLength)
		last := len(path) - 1
		path[last] = extendAlong(path[last-1], path[last], anchorLength)
	}
	return Polylines{path}
}

func extendAlong(from, to scalar.Point, length scalar.Coord) scalar.Point {
	d := to.DistanceTo(from)
	if d == 0 {
		return to
	}
	dx := float64(to.X-from.X) / d
	dy := float64(to.Y-from.Y) / d
	return scalar.Point{
		X: to.X + scalar.Coord(dx*float64(length)),
		Y: to.Y + scalar.Coord(dy*float64(length)),
	}
}

// Resample inserts points along pl so no two consecutive points are more
// than maxSpacing apart.
func (pl Polyline) Resample(maxSpacing scalar.Coord) Polyline {
	if len(pl) < 2 || maxSpacing <= 0 {
		return pl
	}
	out := Polyline{pl[0]}
	for i := 1; i < len(pl); i++ {
		a, b := pl[i-1], pl[i]
		d := a.DistanceTo(b)
		steps := int(math.Ceil(d / float64(maxSpacing)))
		for s := 1; s <= steps; s++ {
			out = append(out, lerp(a, b, float64(s)/float64(steps)))
		}
	}
	return out
}
