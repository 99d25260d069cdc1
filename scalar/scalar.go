// Package scalar defines the fixed-point coordinate and layer conventions
// shared by every component of the tree-support core.
//
// Planar coordinates are scaled integers: one Coord unit equals 1/Unscale
// millimetres. Heights, radii and distances that need sub-micron precision
// are kept as float64 millimetres; anything that must round-trip exactly
// through the geometry kernel stays a Coord.
package scalar

import "math"

// Unscale is the number of Coord units per millimetre. All polygon vertex
// coordinates handed to the geometry kernel use this scale.
const Unscale = 1000.0

// Coord is a scaled planar coordinate or length, always an exact integer
// multiple of 1/Unscale mm.
type Coord int64

// FromMM converts a millimetre value to a Coord, rounding to the nearest
// unit.
func FromMM(mm float64) Coord {
	return Coord(math.Round(mm * Unscale))
}

// MM converts a Coord back to millimetres.
func (c Coord) MM() float64 {
	return float64(c) / Unscale
}

// Point is a planar point in scaled Coord units.
type Point struct {
	X, Y Coord
}

// MM returns the point's coordinates in millimetres.
func (p Point) MM() (x, y float64) {
	return p.X.MM(), p.Y.MM()
}

// Sub returns p-q.
func (p Point) Sub(q Point) Point {
	return Point{p.X - q.X, p.Y - q.Y}
}

// Add returns p+q.
func (p Point) Add(q Point) Point {
	return Point{p.X + q.X, p.Y + q.Y}
}

// DistanceTo returns the Euclidean distance between p and q, in Coord
// units (computed in floating point to avoid overflow on the square).
func (p Point) DistanceTo(q Point) float64 {
	dx := float64(p.X - q.X)
	dy := float64(p.Y - q.Y)
	return math.Hypot(dx, dy)
}

// LayerIndex is 0 at the first printed layer; negative values are raft
// layers counted upward toward 0.
type LayerIndex int32

// IsRaft reports whether this layer belongs to the raft rather than the
// printed model.
func (l LayerIndex) IsRaft() bool {
	return l < 0
}

// LayerHeights converts a per-layer list of slice heights (mm, indexed by
// LayerIndex starting at the first raft or model layer) into absolute Z
// positions in millimetres, accumulating from the bottom up.
func LayerHeights(heights []float64) []float64 {
	z := make([]float64, len(heights))
	acc := 0.0
	for i, h := range heights {
		acc += h
		z[i] = acc
	}
	return z
}

// RoundUpToMultiple rounds v up to the nearest multiple of step. Used to
// bucket branch radii to the oracle's sample resolution.
func RoundUpToMultiple(v, step Coord) Coord {
	if step <= 0 {
		return v
	}
	if v <= 0 {
		return 0
	}
	rem := v % step
	if rem == 0 {
		return v
	}
	return v + (step - rem)
}
