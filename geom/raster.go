package geom

import (
	"github.com/bits-and-blooms/bitset"
	"github.com/orcatree/treesupport/scalar"
)

// defaultResolution is the cell size used by the reference raster kernel.
// Real deployments replace this whole file with a wrapped exact-arithmetic
// clipping library; this constant only bounds the reference kernel's
// rounding error.
const defaultResolution = scalar.Coord(scalar.Unscale / 20) // 0.05 mm

// grid is a coarse occupancy raster used to implement polygon Boolean
// algebra without depending on an external clipping library — this
// package stands in for the geometry kernel an outer slicer would
// normally supply. Occupancy is packed into a bitset.BitSet rather than
// a []bool so the per-cell and/or/andNot combinators below run as word-
// at-a-time bitwise ops instead of a cell-by-cell loop.
type grid struct {
	res scalar.Coord
	originX, originY scalar.Coord
	w, h int
	cells *bitset.BitSet
}

func newGrid(minP, maxP scalar.Point, res scalar.Coord, margin int) *grid {
	ox := minP.X - scalar.Coord(margin)*res
	oy := minP.Y - scalar.Coord(margin)*res
	w := int((maxP.X-minP.X)/res) + 2*margin + 2
	h := int((maxP.Y-minP.Y)/res) + 2*margin + 2
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return &grid{res: res, originX: ox, originY: oy, w: w, h: h, cells: bitset.New(uint(w * h))}
}

func (g *grid) at(ix, iy int) bool {
	if ix < 0 || iy < 0 || ix >= g.w || iy >= g.h {
		return false
	}
	return g.cells.Test(uint(iy*g.w + ix))
}

func (g *grid) set(ix, iy int, v bool) {
	if ix < 0 || iy < 0 || ix >= g.w || iy >= g.h {
		return
	}
	i := uint(iy*g.w + ix)
	if v {
		g.cells.Set(i)
	} else {
		g.cells.Clear(i)
	}
}

func (g *grid) cellCenter(ix, iy int) scalar.Point {
	return scalar.Point{
		X: g.originX + scalar.Coord(ix)*g.res + g.res/2,
		Y: g.originY + scalar.Coord(iy)*g.res + g.res/2,
	}
}

func (g *grid) corner(ix, iy int) scalar.Point {
	return scalar.Point{X: g.originX + scalar.Coord(ix)*g.res, Y: g.originY + scalar.Coord(iy)*g.res}
}

// rasterize converts a polygon set into a freshly-bounded grid using a
// scanline even-odd fill.
func rasterize(s PolygonSet, res scalar.Coord) *grid {
	minP, maxP, ok := s.BoundingBox()
	if !ok {
		return &grid{res: res, w: 0, h: 0, cells: bitset.New(0)}
	}
	g := newGrid(minP, maxP, res, 2)
	fillScanline(g, s)
	return g
}

// rasterizeOnGrid rasterizes s onto a grid sharing another grid's
// resolution/origin/dimensions, so two sets can be combined cell-for-cell.
func rasterizeOnGrid(s PolygonSet, res, originX, originY scalar.Coord, w, h int) *grid {
	g := &grid{res: res, originX: originX, originY: originY, w: w, h: h, cells: bitset.New(uint(w * h))}
	fillScanline(g, s)
	return g
}

func fillScanline(g *grid, s PolygonSet) {
	if g.w == 0 || g.h == 0 {
		return
	}
	for iy := 0; iy < g.h; iy++ {
		y := g.originY + scalar.Coord(iy)*g.res + g.res/2
		xs := scanlineCrossings(s, y)
		for i := 0; i+1 < len(xs); i += 2 {
			// fill the cells whose centres lie between the two crossings
			lo := int((xs[i]-float64(g.originX))/float64(g.res) + 0.5)
			hi := int((xs[i+1]-float64(g.originX))/float64(g.res)+0.5) - 1
			for ix := lo; ix <= hi; ix++ {
				g.set(ix, iy, true)
			}
		}
	}
}

// scanlineCrossings returns the sorted X coordinates (in mm-scale Coord
// float) where the horizontal line at height y crosses the boundary of s,
// merged across all member polygons and deduplicated under the even-odd
// rule (each crossing is reported once per polygon edge crossed).
func scanlineCrossings(s PolygonSet, y scalar.Coord) []float64 {
	var xs []float64
	for _, poly := range s {
		n := len(poly)
		for i := 0; i < n; i++ {
			a := poly[i]
			b := poly[(i+1)%n]
			if (a.Y > y) != (b.Y > y) {
				t := float64(y-a.Y) / float64(b.Y-a.Y)
				xs = append(xs, float64(a.X)+t*float64(b.X-a.X))
			}
		}
	}
	insertionSortFloats(xs)
	return xs
}

func insertionSortFloats(xs []float64) {
	for i := 1; i < len(xs); i++ {
		v := xs[i]
		j := i - 1
		for j >= 0 && xs[j] > v {
			xs[j+1] = xs[j]
			j--
		}
		xs[j+1] = v
	}
}

func (g *grid) and(o *grid) {
	g.cells.InPlaceIntersection(o.cells)
}

func (g *grid) andNot(o *grid) {
	g.cells.InPlaceDifference(o.cells)
}

func (g *grid) or(o *grid) {
	g.cells.InPlaceUnion(o.cells)
}

func (g *grid) area() float64 {
	cellArea := g.res.MM() * g.res.MM()
	return float64(g.cells.Count()) * cellArea
}

// grow dilates (delta>0) or erodes (delta<0) the occupied region by
// |delta|, using a disc structuring element, round join (the only join
// this reference kernel supports — see Offset's doc comment).
func (g *grid) grow(delta scalar.Coord) {
	if delta == 0 || g.w == 0 {
		return
	}
	r := int(delta / g.res)
	if r == 0 && delta != 0 {
		if delta > 0 {
			r = 1
		} else {
			r = -1
		}
	}
	if r > 0 {
		g.dilate(r)
	} else {
		g.erode(-r)
	}
}

func (g *grid) dilate(r int) {
	out := bitset.New(uint(g.w * g.h))
	r2 := r * r
	for iy := 0; iy < g.h; iy++ {
		for ix := 0; ix < g.w; ix++ {
			if !g.at(ix, iy) {
				continue
			}
			for dy := -r; dy <= r; dy++ {
				for dx := -r; dx <= r; dx++ {
					if dx*dx+dy*dy > r2 {
						continue
					}
					nx, ny := ix+dx, iy+dy
					if nx < 0 || ny < 0 || nx >= g.w || ny >= g.h {
						continue
					}
					out.Set(uint(ny*g.w + nx))
				}
			}
		}
	}
	g.cells = out
}

func (g *grid) erode(r int) {
	n := uint(g.w * g.h)
	invGrid := &grid{res: g.res, originX: g.originX, originY: g.originY, w: g.w, h: g.h, cells: complementWithin(g.cells, n)}
	invGrid.dilate(r)
	g.cells = complementWithin(invGrid.cells, n)
}

// complementWithin returns the bitwise complement of b restricted to the
// first n bits (BitSet.Complement flips every bit up to b.Len(), which
// tracks allocation size rather than n, so callers normalise with this
// helper instead).
func complementWithin(b *bitset.BitSet, n uint) *bitset.BitSet {
	out := bitset.New(n)
	for i := uint(0); i < n; i++ {
		if !b.Test(i) {
			out.Set(i)
		}
	}
	return out
}

// trace extracts the boundary of the occupied region as a PolygonSet by
// stitching unit-cell boundary edges into closed loops.
func (g *grid) trace() PolygonSet {
	if g.w == 0 || g.h == 0 {
		return nil
	}
	type vertex struct{ x, y int }
	type edge struct{ a, b vertex }

	var edges []edge
	addEdgeIfBoundary := func(ix, iy, nx, ny int, a, b vertex) {
		if g.at(ix, iy) && !g.at(nx, ny) {
			edges = append(edges, edge{a, b})
		}
	}
	for iy := 0; iy < g.h; iy++ {
		for ix := 0; ix < g.w; ix++ {
			if !g.at(ix, iy) {
				continue
			}
			// top edge
			addEdgeIfBoundary(ix, iy, ix, iy-1, vertex{ix, iy}, vertex{ix + 1, iy})
			// bottom edge
			addEdgeIfBoundary(ix, iy, ix, iy+1, vertex{ix, iy + 1}, vertex{ix + 1, iy + 1})
			// left edge
			addEdgeIfBoundary(ix, iy, ix-1, iy, vertex{ix, iy}, vertex{ix, iy + 1})
			// right edge
			addEdgeIfBoundary(ix, iy, ix+1, iy, vertex{ix + 1, iy}, vertex{ix + 1, iy + 1})
		}
	}
	if len(edges) == 0 {
		return nil
	}

	adj := make(map[vertex][]int)
	for i, e := range edges {
		adj[e.a] = append(adj[e.a], i)
		adj[e.b] = append(adj[e.b], i)
	}
	visited := make([]bool, len(edges))
	other := func(e edge, v vertex) vertex {
		if e.a == v {
			return e.b
		}
		return e.a
	}

	var out PolygonSet
	for start := range edges {
		if visited[start] {
			continue
		}
		loopVerts := []vertex{edges[start].a}
		cur := edges[start].a
		next := edges[start].b
		visited[start] = true
		for steps := 0; steps < 4*len(edges)+4; steps++ {
			loopVerts = append(loopVerts, next)
			if next == loopVerts[0] {
				break
			}
			found := -1
			for _, ei := range adj[next] {
				if !visited[ei] {
					found = ei
					break
				}
			}
			if found == -1 {
				break
			}
			visited[found] = true
			nv := other(edges[found], next)
			cur = next
			next = nv
			_ = cur
		}
		if len(loopVerts) >= 4 {
			poly := make(Polygon, 0, len(loopVerts)-1)
			for _, v := range loopVerts[:len(loopVerts)-1] {
				poly = append(poly, g.corner(v.x, v.y))
			}
			out = append(out, poly)
		}
	}
	return out
}
