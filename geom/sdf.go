package geom

import "github.com/orcatree/treesupport/scalar"

// SignedDistance reports the signed distance from pt to the boundary of
// s: negative inside, positive outside, zero on the boundary. Used by
// raft tip trimming.
func SignedDistance(s PolygonSet, pt scalar.Point) float64 {
	if s.Empty() {
		return 1e18
	}
	nearest := ProjectToContour(s, pt)
	d := pt.DistanceTo(nearest)
	if s.Contains(pt) {
		return -d
	}
	return d
}
