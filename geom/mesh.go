package geom

import (
	"github.com/golang/geo/r3"
	"github.com/orcatree/treesupport/scalar"
)

// Mesh is a triangle soup produced by the branch mesher and
// re-sliced back into per-layer polygons — "positive" slicing mode only,
// i.e. a closed, outward-facing capsule surface with no self-intersection
// the slicer must resolve.
type Mesh struct {
	Triangles []Triangle
	index *TriAABBTree
}

// NewMesh builds a mesh and its Z-range index.
func NewMesh(tris []Triangle) *Mesh {
	return &Mesh{Triangles: tris, index: NewTriAABBTree(tris)}
}

// SliceAtZ intersects the mesh with the horizontal plane at height z and
// returns the resulting closed polygons, by cutting every triangle whose
// span includes z into a chord and stitching chords end-to-end.
func (m *Mesh) SliceAtZ(z float64) PolygonSet {
	tris := m.index.TrianglesNearZ(z)
	if len(tris) == 0 {
		return nil
	}
	type chord struct{ a, b scalar.Point }
	var chords []chord
	for _, tr := range tris {
		pts := triPlaneChord(tr, z)
		if len(pts) == 2 {
			chords = append(chords, chord{toPoint(pts[0]), toPoint(pts[1])})
		}
	}
	if len(chords) == 0 {
		return nil
	}
	return stitchChords(chords)
}

func toPoint(v r3.Vector) scalar.Point {
	return scalar.Point{X: scalar.FromMM(v.X), Y: scalar.FromMM(v.Y)}
}

// triPlaneChord returns the 0 or 2 points where triangle tr crosses the
// horizontal plane z, interpolated along the crossing edges.
func triPlaneChord(tr Triangle, z float64) []r3.Vector {
	verts := [3]r3.Vector{tr.A, tr.B, tr.C}
	var pts []r3.Vector
	for i := 0; i < 3; i++ {
		a := verts[i]
		b := verts[(i+1)%3]
		if (a.Z > z) != (b.Z > z) {
			t := (z - a.Z) / (b.Z - a.Z)
			pts = append(pts, r3.Vector{
				X: a.X + t*(b.X-a.X),
				Y: a.Y + t*(b.Y-a.Y),
				Z: z,
			})
		}
	}
	return pts
}

// stitchChords assembles unordered 2-point segments into closed polygons
// by endpoint proximity, the standard "triangle soup slicing" technique.
func stitchChords(chords []struct{ a, b scalar.Point }) PolygonSet {
	used := make([]bool, len(chords))
	var out PolygonSet
	const snapTol = scalar.Coord(scalar.Unscale / 100) // 0.01mm endpoint snap

	key := func(p scalar.Point) [2]int64 {
		return [2]int64{int64(p.X) / int64(snapTol), int64(p.Y) / int64(snapTol)}
	}
	index := make(map[[2]int64][]int)
	for i, c := range chords {
		index[key(c.a)] = append(index[key(c.a)], i)
		index[key(c.b)] = append(index[key(c.b)], i)
	}

	for start := range chords {
		if used[start] {
			continue
		}
		used[start] = true
		poly := Polygon{chords[start].a, chords[start].b}
		cur := chords[start].b
		for steps := 0; steps < len(chords)+1; steps++ {
			candidates := index[key(cur)]
			next := -1
			for _, ci := range candidates {
				if !used[ci] {
					next = ci
					break
				}
			}
			if next == -1 {
				break
			}
			used[next] = true
			c := chords[next]
			if c.a.DistanceTo(cur) <= c.b.DistanceTo(cur) {
				cur = c.b
			} else {
				cur = c.a
			}
			poly = append(poly, cur)
			if cur.DistanceTo(poly[0]) < float64(snapTol) {
				break
			}
		}
		if len(poly) >= 3 {
			out = append(out, poly)
		}
	}
	return out
}
