package mesh_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/orcatree/treesupport/extract"
	"github.com/orcatree/treesupport/geom"
	"github.com/orcatree/treesupport/mesh"
	"github.com/orcatree/treesupport/oracle"
	"github.com/orcatree/treesupport/propagate"
	"github.com/orcatree/treesupport/scalar"
)

type emptyModel struct{}

func (emptyModel) Outline(layer scalar.LayerIndex) geom.PolygonSet { return nil }
func (emptyModel) TopLayer() scalar.LayerIndex                     { return 10 }

type constantModel struct{ outline geom.PolygonSet }

func (m constantModel) Outline(layer scalar.LayerIndex) geom.PolygonSet { return m.outline }
func (m constantModel) TopLayer() scalar.LayerIndex                     { return 10 }

func bigSquareModel() constantModel {
	half := scalar.FromMM(100)
	return constantModel{outline: geom.PolygonSet{{
		{X: -half, Y: -half},
		{X: half, Y: -half},
		{X: half, Y: half},
		{X: -half, Y: half},
	}}}
}

func straightBranch(n int) *extract.Branch {
	b := &extract.Branch{}
	for i := 0; i < n; i++ {
		b.Elements = append(b.Elements, &propagate.SupportElement{
			LayerIdx:        scalar.LayerIndex(i),
			ResultOnLayer:   scalar.Point{X: 0, Y: 0},
			HasResult:       true,
			ToModelGracious: true,
			EffectiveRadiusHeight: 0,
		})
	}
	return b
}

func meshSettings() mesh.Settings {
	return mesh.Settings{AngleStepEpsilon: 0.05, LineWidth: scalar.FromMM(0.4), SimplifyTolerance: scalar.FromMM(0.05), RestAreaThreshold: 1.0}
}

func TestExtrudeBranchProducesClosedCapsule(t *testing.T) {
	branch := straightBranch(3)
	layerZ := []float64{0, 0.2, 0.4}
	path := mesh.CentrelineFromBranch(branch, propagate.DefaultSettings(), layerZ)
	require.Len(t, path, 3)

	tris := mesh.ExtrudeBranch(path, meshSettings())
	require.NotEmpty(t, tris)
}

func TestSliceBranchYieldsOnePolygonPerLayer(t *testing.T) {
	volumes := oracle.NewVolumes(emptyModel{}, oracle.DefaultSettings())
	branch := straightBranch(3)
	layerZ := []float64{0, 0.2, 0.4}
	path := mesh.CentrelineFromBranch(branch, propagate.DefaultSettings(), layerZ)
	tris := mesh.ExtrudeBranch(path, meshSettings())

	slices := mesh.SliceBranch(tris, layerZ, 0, 2, volumes, nil)
	require.NotEmpty(t, slices)
	for _, poly := range slices {
		require.False(t, poly.Empty())
	}
}

func TestAssembleUnionsMultipleBranchesOnSameLayer(t *testing.T) {
	tree := mesh.NewTreeSlices(0, 5)
	square := func(cx scalar.Coord) geom.PolygonSet {
		half := scalar.FromMM(1)
		return geom.PolygonSet{{
			{X: cx - half, Y: -half},
			{X: cx + half, Y: -half},
			{X: cx + half, Y: half},
			{X: cx - half, Y: half},
		}}
	}

	mesh.Assemble(tree, map[scalar.LayerIndex]geom.PolygonSet{2: square(0)})
	mesh.Assemble(tree, map[scalar.LayerIndex]geom.PolygonSet{2: square(scalar.FromMM(10))})

	out := mesh.FinalAssembly(tree, nil, meshSettings())
	require.Contains(t, out, scalar.LayerIndex(2))
	require.Equal(t, 2, out[2].NumBranches)
}

func TestBottomContactGracefulRootIntersectsPlaceableArea(t *testing.T) {
	volumes := oracle.NewVolumes(bigSquareModel(), oracle.DefaultSettings())
	branch := straightBranch(1)
	branch.Elements[0].ToModelGracious = true

	firstSlice := geom.PolygonSet{{
		{X: -scalar.FromMM(1), Y: -scalar.FromMM(1)},
		{X: scalar.FromMM(1), Y: -scalar.FromMM(1)},
		{X: scalar.FromMM(1), Y: scalar.FromMM(1)},
		{X: -scalar.FromMM(1), Y: scalar.FromMM(1)},
	}}

	contacts, extras := mesh.BottomContact(branch, firstSlice, volumes, meshSettings())
	require.NotEmpty(t, contacts)
	require.Empty(t, extras)
}
