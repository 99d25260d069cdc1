// Package organic implements the organic smoother: it
// represents each centreline vertex of every surviving branch as a
// collision sphere in 3-D, then iteratively nudges spheres away from
// per-layer collision boundaries and applies a weighted Laplacian
// between parent/child spheres, writing the final positions back as
// each element's result_on_layer.
package organic

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/orcatree/treesupport/extract"
	"github.com/orcatree/treesupport/geom"
	"github.com/orcatree/treesupport/propagate"
	"github.com/orcatree/treesupport/scalar"
)

// Settings are the smoother's tunables.
type Settings struct {
	MaxIterations int
	MaxNudgeCollision float64 // mm
	MaxNudgeSmoothing float64 // mm
	SmoothingFactor float64
	ConvergenceEpsilon float64 // mm
}

// DefaultSettings returns representative constants for the smoother.
func DefaultSettings() Settings {
	return Settings{
		MaxIterations: 100,
		MaxNudgeCollision: 0.5,
		MaxNudgeSmoothing: 0.2,
		SmoothingFactor: 0.5,
		ConvergenceEpsilon: 1e-4,
	}
}

// Sphere is one collision sphere, one per element of a surviving branch.
type Sphere struct {
	element *propagate.SupportElement

	Position r3.Vector
	prevPosition r3.Vector
	Radius float64 // mm, unscaled

	Locked bool

	LayerBegin, LayerEnd scalar.LayerIndex
	MinZ, MaxZ float64

	parent *Sphere
	children []*Sphere
}

// CollisionIndex supplies, per layer, a 2-D line AABB tree built from
// that layer's collision boundary.
type CollisionIndex interface {
	LineTree(layer scalar.LayerIndex) *geom.LineAABBTree
}

// BuildSpheres converts every branch of forest into a chain of linked
// Spheres. Each sphere's collision-test span is its own layer
// ±minSlopeLayers and its Z span is its centre height ± its radius; the
// spans are not propagated from the tree's tip or root.
func BuildSpheres(forest *extract.Forest, propSettings propagate.Settings, layerZ []float64, minSlopeLayers int) []*Sphere {
	var all []*Sphere
	for _, tree := range forest.Trees {
		walkBranch(tree.Root, nil, propSettings, layerZ, minSlopeLayers, &all)
	}
	for _, s := range all {
		s.prevPosition = s.Position
	}
	return all
}

func walkBranch(b *extract.Branch, downLink *Sphere, propSettings propagate.Settings, layerZ []float64, minSlopeLayers int, all *[]*Sphere) {
	var prev *Sphere = downLink
	for i, el := range b.Elements {
		z := zAt(layerZ, el.LayerIdx)
		s := &Sphere{
			element: el,
			Position: r3.Vector{
				X: float64(el.ResultOnLayer.X) / scalar.Unscale,
				Y: float64(el.ResultOnLayer.Y) / scalar.Unscale,
				Z: z,
			},
			Radius: el.Radius(propSettings),
			parent: prev,
		}
		s.Locked = (i == 0 && b.HasRoot() && el.LayerIdx > 0) || (i == len(b.Elements)-1 && b.HasTip() && len(b.Up) == 0)
		lo := el.LayerIdx - scalar.LayerIndex(minSlopeLayers)
		hi := el.LayerIdx + scalar.LayerIndex(minSlopeLayers)
		s.LayerBegin, s.LayerEnd = lo, hi+1
		s.MinZ, s.MaxZ = z-s.Radius, z+s.Radius
		if prev != nil {
			prev.children = append(prev.children, s)
		}
		*all = append(*all, s)
		prev = s
	}
	for i, up := range b.Up {
		_ = i
		walkBranch(up, prev, propSettings, layerZ, minSlopeLayers, all)
	}
}

func zAt(layerZ []float64, idx scalar.LayerIndex) float64 {
	i := int(idx)
	if i < 0 {
		i = 0
	}
	if i >= len(layerZ) {
		if len(layerZ) == 0 {
			return 0
		}
		i = len(layerZ) - 1
	}
	return layerZ[i]
}

// Smooth runs up to settings.MaxIterations rounds over spheres, exiting
// early once no sphere moved more than ConvergenceEpsilon.
func Smooth(spheres []*Sphere, index CollisionIndex, settings Settings) {
	for iter := 0; iter < settings.MaxIterations; iter++ {
		for _, s := range spheres {
			s.prevPosition = s.Position
		}

		maxShift := 0.0
		for _, s := range spheres {
			if s.Locked {
				continue
			}
			shift := nudgeFromCollision(s, index, settings)
			if shift > maxShift {
				maxShift = shift
			}
		}
		for _, s := range spheres {
			if s.Locked {
				continue
			}
			shift := laplacian(s, settings)
			if shift > maxShift {
				maxShift = shift
			}
		}

		if maxShift < settings.ConvergenceEpsilon {
			break
		}
	}

	for _, s := range spheres {
		s.element.ResultOnLayer = scalar.Point{
			X: scalar.Coord(math.Round(s.Position.X * scalar.Unscale)),
			Y: scalar.Coord(math.Round(s.Position.Y * scalar.Unscale)),
		}
	}
}

// nudgeFromCollision pushes s away from the deepest collision boundary
// penetration across its [LayerBegin, LayerEnd) span, clamped to MaxNudgeCollision.
func nudgeFromCollision(s *Sphere, index CollisionIndex, settings Settings) float64 {
	if index == nil {
		return 0
	}
	pt := scalar.Point{
		X: scalar.Coord(math.Round(s.prevPosition.X * scalar.Unscale)),
		Y: scalar.Coord(math.Round(s.prevPosition.Y * scalar.Unscale)),
	}

	deepest := 0.0
	var away r3.Vector
	for l := s.LayerBegin; l < s.LayerEnd; l++ {
		tree := index.LineTree(l)
		if tree == nil {
			continue
		}
		distSq, _, closest := tree.NearestSquared(pt)
		dist := math.Sqrt(distSq) / scalar.Unscale
		depth := s.Radius - dist
		if depth > deepest {
			deepest = depth
			dx := float64(pt.X-closest.X) / scalar.Unscale
			dy := float64(pt.Y-closest.Y) / scalar.Unscale
			away = r3.Vector{X: dx, Y: dy}
		}
	}
	if deepest <= 0 {
		return 0
	}
	mag := away.Norm()
	if mag < 1e-9 {
		return 0
	}
	nudge := math.Min(deepest+1e-6, settings.MaxNudgeCollision)
	dir := away.Mul(1.0 / mag)
	s.Position = s.Position.Add(dir.Mul(nudge))
	return nudge
}

// laplacian blends s toward a radius-weighted average of its parent and
// children's prevPosition, clamped to
// MaxNudgeSmoothing.
func laplacian(s *Sphere, settings Settings) float64 {
	totalWeight := 0.0
	var sum r3.Vector
	if s.parent != nil {
		w := s.parent.Radius + s.Radius
		sum = sum.Add(s.parent.prevPosition.Mul(w))
		totalWeight += w
	}
	for _, c := range s.children {
		w := c.Radius
		sum = sum.Add(c.prevPosition.Mul(w))
		totalWeight += w
	}
	if totalWeight <= 0 {
		return 0
	}
	target := sum.Mul(1.0 / totalWeight)
	blended := s.prevPosition.Mul(1 - settings.SmoothingFactor).Add(target.Mul(settings.SmoothingFactor))
	delta := blended.Sub(s.prevPosition)
	dist := delta.Norm()
	if dist <= 0 {
		return 0
	}
	if dist > settings.MaxNudgeSmoothing {
		delta = delta.Mul(settings.MaxNudgeSmoothing / dist)
		dist = settings.MaxNudgeSmoothing
	}
	s.Position = s.Position.Add(delta)
	return dist
}
