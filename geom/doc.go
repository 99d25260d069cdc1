// Package geom is the geometry-kernel seam: the set of primitives the
// tree-support core consumes but does not own — polygon Boolean algebra,
// polylines, AABB-accelerated nearest-line and nearest-triangle queries,
// and positive-mode mesh slicing. The core treats these as opaque,
// well-specified operations.
//
// This package supplies one concrete implementation, built on the
// standard library plus bits-and-blooms/bitset and golang/geo/r3 (a
// coarse occupancy raster for polygon Boolean ops, a slab-based AABB
// tree for line/triangle queries, and segment-stitching mesh slicing).
// It is not, and is not meant to be, a general-purpose CSG engine — a
// production build would swap this package's implementation for a
// wrapped Clipper2/Boost.Geometry style library without touching any
// other package in this module.
package geom
