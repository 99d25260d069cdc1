// Package extract implements the centreline extractor: once the
// propagator's DAG reaches the build plate, it assigns a single 2-D
// "result on layer" point to every surviving element, deletes elements
// that cannot be anchored, and walks the remaining parent edges to emit
// a forest of branches with bifurcation records.
package extract

import (
	"github.com/orcatree/treesupport/geom"
	"github.com/orcatree/treesupport/oracle"
	"github.com/orcatree/treesupport/propagate"
	"github.com/orcatree/treesupport/scalar"
)

// Settings are the extractor's tunables.
type Settings struct {
	MinDttToModel int // "distance_to_top >= min_dtt_to_model"
}

// Forest is the result of extraction: every root branch discovered
// across every tree.
type Forest struct {
	Trees []*Tree
}

// Tree is one connected support structure rooted at the build plate or a
// graceful/non-graceful model anchor.
type Tree struct {
	Root *Branch
}

// Branch is a maximal run of elements with no bifurcation in its
// interior ("Branch (post-extraction)"), ordered from root
// (index 0, closest to the build plate) to tip.
type Branch struct {
	Elements []*propagate.SupportElement
	Down *Branch // nil iff HasRoot
	Up []*Branch // empty iff HasTip
	// UpRadii[i] is the real radius of Up[i]'s first element, recorded at
	// the bifurcation.
	UpRadii []float64
}

// HasRoot reports whether this branch has no parent branch.
func (b *Branch) HasRoot() bool { return b.Down == nil }

// HasTip reports whether this branch has no child branches.
func (b *Branch) HasTip() bool { return len(b.Up) == 0 }

// Extract runs passes 1 and 2 over the arena layers from bottomLayer
// (inclusive) to topLayer (inclusive), then compacts and walks parent
// edges into a Forest.
func Extract(arena *propagate.Arena, volumes *oracle.Volumes, propSettings propagate.Settings, settings Settings, bottomLayer, topLayer int) *Forest {
	assignResults(arena, bottomLayer, topLayer)
	cleanup(arena, volumes, propSettings, settings, bottomLayer, topLayer)
	compactAll(arena, bottomLayer, topLayer)
	return buildForest(arena, propSettings, bottomLayer, topLayer)
}

// assignResults is pass 1 + pass 2: bottom layer gets
// move_inside_if_outside(next_position, influence_area); every layer
// above projects its already-resolved children's results into parent
// influence areas.
func assignResults(arena *propagate.Arena, bottomLayer, topLayer int) {
	bottom := arena.Layer(bottomLayer)
	if bottom != nil {
		for _, e := range bottom.Elements {
			if e.Deleted {
				continue
			}
			e.ResultOnLayer = geom.MoveInsideIfOutside(e.NextPosition, e.InfluenceArea)
			e.HasResult = true
		}
	}

	for l := bottomLayer; l < topLayer; l++ {
		cur := arena.Layer(l)
		parent := arena.Layer(l + 1)
		if cur == nil || parent == nil {
			continue
		}
		for _, e := range cur.Elements {
			if e.Deleted || !e.HasResult {
				continue
			}
			for _, pIdx := range e.Parents {
				p := parent.Get(pIdx)
				if p == nil || p.Deleted || p.HasResult {
					continue
				}
				p.ResultOnLayer = geom.MoveInsideIfOutside(e.ResultOnLayer, p.InfluenceArea)
				p.HasResult = true
			}
		}
	}
}

// cleanup marks elements whose result was never set as deleted, unless
// they lead to the build plate or have DistanceToTop >= MinDttToModel and
// support a roof. It then demotes non-gracious model-anchored subtrees to
// their effective root: walking up from bottomLayer, an element with no
// surviving child on the layer below whose influence area misses the
// placeable area is deleted, so the lowest element that touches the
// placeable area becomes the root.
func cleanup(arena *propagate.Arena, volumes *oracle.Volumes, propSettings propagate.Settings, settings Settings, bottomLayer, topLayer int) {
	for l := bottomLayer; l <= topLayer; l++ {
		layer := arena.Layer(l)
		if layer == nil {
			continue
		}
		for _, e := range layer.Elements {
			if e.Deleted || e.HasResult {
				continue
			}
			if e.ToBuildPlate {
				continue
			}
			if e.DistanceToTop >= settings.MinDttToModel && e.SupportsRoof {
				continue
			}
			e.Deleted = true
		}
	}

	for l := bottomLayer; l <= topLayer; l++ {
		layer := arena.Layer(l)
		if layer == nil {
			continue
		}
		// Elements still referenced by a surviving element on the layer
		// below sit above their subtree's effective root and are kept.
		hasChild := map[propagate.ElementIndex]bool{}
		if below := arena.Layer(l - 1); below != nil && l > bottomLayer {
			for _, c := range below.Elements {
				if !c.Deleted {
					for _, p := range c.Parents {
						hasChild[p] = true
					}
				}
			}
		}
		for i, e := range layer.Elements {
			if e.Deleted || e.ToBuildPlate || e.ToModelGracious || hasChild[propagate.ElementIndex(i)] {
				continue
			}
			radius := scalar.FromMM(e.Radius(propSettings))
			placeable := volumes.PlaceableArea(radius, e.LayerIdx)
			if geom.Intersection(e.InfluenceArea, placeable).Empty() {
				e.Deleted = true
			}
		}
	}
}

// compactAll removes flag-deleted elements from every layer and remaps
// parent indices.
func compactAll(arena *propagate.Arena, bottomLayer, topLayer int) {
	remaps := make(map[int][]propagate.ElementIndex, topLayer-bottomLayer+1)
	for l := bottomLayer; l <= topLayer; l++ {
		layer := arena.Layer(l)
		if layer == nil {
			continue
		}
		remaps[l] = layer.Compact()
	}
	for l := bottomLayer; l < topLayer; l++ {
		cur := arena.Layer(l)
		if cur == nil {
			continue
		}
		if remap, ok := remaps[l+1]; ok {
			cur.RemapParents(remap)
		}
	}
}

// buildForest walks every surviving element's Parents edges to split the
// DAG into maximal non-bifurcating branches. Roots are elements that no
// surviving child references as a parent (ordinarily the bottom layer,
// but a non-gracious subtree's effective root can sit higher once
// cleanup deletes everything below it).
func buildForest(arena *propagate.Arena, propSettings propagate.Settings, bottomLayer, topLayer int) *Forest {
	referenced := make(map[*propagate.SupportElement]bool)
	for l := bottomLayer; l < topLayer; l++ {
		cur := arena.Layer(l)
		parent := arena.Layer(l + 1)
		if cur == nil || parent == nil {
			continue
		}
		for _, e := range cur.Elements {
			for _, pIdx := range e.Parents {
				if p := parent.Get(pIdx); p != nil {
					referenced[p] = true
				}
			}
		}
	}

	forest := &Forest{}
	for l := bottomLayer; l <= topLayer; l++ {
		layer := arena.Layer(l)
		if layer == nil {
			continue
		}
		for _, e := range layer.Elements {
			if referenced[e] {
				continue
			}
			forest.Trees = append(forest.Trees, &Tree{Root: buildBranch(arena, propSettings, e, l)})
		}
	}
	return forest
}

// buildBranch walks upward from el (at layer) along its single-parent
// chain, recursing into one new Branch per entry of Parents once it
// reaches an element with more than one parent, a bifurcation.
func buildBranch(arena *propagate.Arena, propSettings propagate.Settings, el *propagate.SupportElement, layer int) *Branch {
	branch := &Branch{}
	cur := el
	curLayer := layer
	for {
		branch.Elements = append(branch.Elements, cur)
		if len(cur.Parents) == 0 {
			return branch
		}
		if len(cur.Parents) > 1 {
			parentLayer := arena.Layer(curLayer + 1)
			for _, pIdx := range cur.Parents {
				p := parentLayer.Get(pIdx)
				if p == nil {
					continue
				}
				child := buildBranch(arena, propSettings, p, curLayer+1)
				child.Down = branch
				branch.Up = append(branch.Up, child)
				branch.UpRadii = append(branch.UpRadii, p.Radius(propSettings))
			}
			return branch
		}
		parentLayer := arena.Layer(curLayer + 1)
		p := parentLayer.Get(cur.Parents[0])
		if p == nil {
			return branch
		}
		cur = p
		curLayer++
	}
}
