package support_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/orcatree/treesupport/extract"
	"github.com/orcatree/treesupport/geom"
	"github.com/orcatree/treesupport/mesh"
	"github.com/orcatree/treesupport/oracle"
	"github.com/orcatree/treesupport/organic"
	"github.com/orcatree/treesupport/propagate"
	"github.com/orcatree/treesupport/scalar"
	"github.com/orcatree/treesupport/support"
	"github.com/orcatree/treesupport/tip"
)

func extractSettings() extract.Settings { return extract.Settings{MinDttToModel: 6} }
func organicSettings() organic.Settings { return organic.DefaultSettings() }
func meshSettings() mesh.Settings {
	return mesh.Settings{AngleStepEpsilon: 0.05, LineWidth: scalar.FromMM(0.4), SimplifyTolerance: scalar.FromMM(0.05), RestAreaThreshold: 1.0}
}

type bigSquareModel struct{ topLayer scalar.LayerIndex }

func (m bigSquareModel) Outline(layer scalar.LayerIndex) geom.PolygonSet {
	half := scalar.FromMM(50)
	return geom.PolygonSet{{
		{X: -half, Y: -half},
		{X: half, Y: -half},
		{X: half, Y: half},
		{X: -half, Y: half},
	}}
}

func (m bigSquareModel) TopLayer() scalar.LayerIndex { return m.topLayer }

func overhangSquare(layer scalar.LayerIndex, half scalar.Coord) geom.PolygonSet {
	return geom.PolygonSet{{
		{X: -half, Y: -half},
		{X: half, Y: -half},
		{X: half, Y: half},
		{X: -half, Y: half},
	}}
}

func testConfig(topLayer int) support.Config {
	propSettings := propagate.DefaultSettings()
	layerZ := make([]float64, topLayer+1)
	for i := range layerZ {
		layerZ[i] = float64(i) * 0.2
	}
	return support.Config{
		Oracle:    oracle.DefaultSettings(),
		Propagate: propSettings,
		Extract:   extractSettings(),
		Organic:   organicSettings(),
		Mesh:      meshSettings(),
		Tip: tip.Settings{
			MinRadius:        0.4,
			BranchDistance:   scalar.FromMM(5),
			ConnectLength:    scalar.FromMM(1),
			MinSupportPoints: 1,
			SupportOnModel:   true,
		},
		LayerZ:   layerZ,
		TopLayer: topLayer,
		Workers:  2,
	}
}

func TestGeneratorRunProducesAtLeastOneTree(t *testing.T) {
	model := bigSquareModel{topLayer: 10}
	cfg := testConfig(5)
	gen := support.NewGenerator(model, cfg, nil)

	overhangs := []tip.Overhang{
		{Layer: 5, Kind: tip.Detected, Polygon: overhangSquare(5, scalar.FromMM(5))},
	}

	result, err := gen.Run(overhangs, nil, nil)
	require.NoError(t, err)
	require.NotNil(t, result)
	require.NotEmpty(t, result.Trees)
}

func TestGeneratorRunHonoursCancellation(t *testing.T) {
	model := bigSquareModel{topLayer: 10}
	cfg := testConfig(5)
	gen := support.NewGenerator(model, cfg, nil)

	overhangs := []tip.Overhang{
		{Layer: 5, Kind: tip.Detected, Polygon: overhangSquare(5, scalar.FromMM(5))},
	}

	cancelled := func() error { return support.ErrCancelled }
	_, err := gen.Run(overhangs, nil, cancelled)
	require.ErrorIs(t, err, support.ErrCancelled)
}
