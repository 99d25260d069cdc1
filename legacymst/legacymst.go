// Package legacymst describes, as an external-collaborator interface
// only, the minimum-spanning-tree helper used by the classic
// (non-organic) support path.
// No implementation lives here: this package exists so callers that
// still run the classic path have a documented seam to plug one in,
// shaped the way github.com/katalvlaran/lvlath's prim_kruskal package
// names its MST operation.
package legacymst

import "github.com/orcatree/treesupport/scalar"

// Edge is one spanning-tree edge between two classic-path nodes,
// identified by position rather than by the organic path's element
// indices.
type Edge struct {
	From, To scalar.Point
	Weight float64
}

// Builder is the seam the classic support path would call through; the
// organic core described by this module never calls it.
type Builder interface {
	// MinimumSpanningTree returns the edges of a minimum spanning tree
	// connecting points, under whatever distance metric the classic path
	// uses for drop/smooth node placement.
	MinimumSpanningTree(points []scalar.Point) ([]Edge, error)
}
