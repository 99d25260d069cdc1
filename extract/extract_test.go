package extract_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/orcatree/treesupport/extract"
	"github.com/orcatree/treesupport/geom"
	"github.com/orcatree/treesupport/oracle"
	"github.com/orcatree/treesupport/propagate"
	"github.com/orcatree/treesupport/scalar"
)

type emptyModel struct{}

func (emptyModel) Outline(layer scalar.LayerIndex) geom.PolygonSet { return nil }
func (emptyModel) TopLayer() scalar.LayerIndex                     { return 10 }

func squareAt(cx, cy, half scalar.Coord) geom.PolygonSet {
	return geom.PolygonSet{{
		{X: cx - half, Y: cy - half},
		{X: cx + half, Y: cy - half},
		{X: cx + half, Y: cy + half},
		{X: cx - half, Y: cy + half},
	}}
}

// TestExtractSingleVerticalColumn hand-builds a trivial 3-layer chain
// (tip at layer 2, root at layer 0) and checks the single-vertical-
// column scenario: one tree, one branch, result_on_layer set and
// inside influence_area at every surviving layer.
func TestExtractSingleVerticalColumn(t *testing.T) {
	volumes := oracle.NewVolumes(emptyModel{}, oracle.DefaultSettings())
	propSettings := propagate.DefaultSettings()
	arena := propagate.NewArena(0, 2)

	tip, _ := arena.NewElement(2)
	*tip = propagate.SupportElement{LayerIdx: 2, ToBuildPlate: true, InfluenceArea: squareAt(0, 0, scalar.FromMM(1))}

	mid, midIdx := arena.NewElement(1)
	*mid = propagate.SupportElement{LayerIdx: 1, ToBuildPlate: true, InfluenceArea: squareAt(0, 0, scalar.FromMM(1))}

	root, _ := arena.NewElement(0)
	*root = propagate.SupportElement{
		LayerIdx:      0,
		ToBuildPlate:  true,
		InfluenceArea: squareAt(0, 0, scalar.FromMM(1)),
		Parents:       []propagate.ElementIndex{midIdx},
	}
	mid.Parents = []propagate.ElementIndex{0} // tip is index 0 on layer 2

	forest := extract.Extract(arena, volumes, propSettings, extract.Settings{MinDttToModel: 6}, 0, 2)

	require.Len(t, forest.Trees, 1)
	tree := forest.Trees[0]
	require.True(t, tree.Root.HasRoot())
	require.True(t, tree.Root.HasTip())
	require.Len(t, tree.Root.Elements, 3)
	for _, el := range tree.Root.Elements {
		require.True(t, el.HasResult)
		require.True(t, el.InfluenceArea.Contains(el.ResultOnLayer))
	}
}

// TestExtractDeletesUnanchoredElement checks that an element whose
// result was never assigned (it is unreachable from the bottom layer,
// so assignResults never visits it) is removed rather than left
// dangling, and does not show up as a spurious tree root.
func TestExtractDeletesUnanchoredElement(t *testing.T) {
	volumes := oracle.NewVolumes(emptyModel{}, oracle.DefaultSettings())
	propSettings := propagate.DefaultSettings()
	arena := propagate.NewArena(0, 1)

	root, _ := arena.NewElement(0)
	*root = propagate.SupportElement{LayerIdx: 0, ToBuildPlate: true, InfluenceArea: squareAt(0, 0, scalar.FromMM(1))}

	orphan, _ := arena.NewElement(1)
	*orphan = propagate.SupportElement{LayerIdx: 1, InfluenceArea: squareAt(5000, 5000, scalar.FromMM(1))}

	forest := extract.Extract(arena, volumes, propSettings, extract.Settings{MinDttToModel: 6}, 0, 1)

	require.Len(t, forest.Trees, 1)
	require.Len(t, forest.Trees[0].Root.Elements, 1)
}
