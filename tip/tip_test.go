package tip_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/orcatree/treesupport/geom"
	"github.com/orcatree/treesupport/oracle"
	"github.com/orcatree/treesupport/scalar"
	"github.com/orcatree/treesupport/tip"
)

type emptyModel struct{}

func (emptyModel) Outline(layer scalar.LayerIndex) geom.PolygonSet { return nil }
func (emptyModel) TopLayer() scalar.LayerIndex                     { return 20 }

func baseSettings() tip.Settings {
	return tip.Settings{
		MinRadius:        0.4,
		BranchDistance:   scalar.FromMM(3),
		ConnectLength:    scalar.FromMM(1),
		MinSupportPoints: 1,
		SupportOnModel:   false,
		RoofEnabled:      false,
	}
}

func squareOverhang(kind tip.OverhangKind, half scalar.Coord) tip.Overhang {
	return tip.Overhang{
		Layer: 10,
		Kind:  kind,
		Polygon: geom.PolygonSet{{
			{X: -half, Y: -half},
			{X: half, Y: -half},
			{X: half, Y: half},
			{X: -half, Y: half},
		}},
	}
}

func TestSeedOverhangProducesSeedsInsideOverhang(t *testing.T) {
	volumes := oracle.NewVolumes(emptyModel{}, oracle.DefaultSettings())
	settings := baseSettings()
	oh := squareOverhang(tip.Detected, scalar.FromMM(10))

	seeds := tip.SeedOverhang(oh, volumes, nil, settings, map[[3]int64]bool{})
	require.NotEmpty(t, seeds)
	for _, s := range seeds {
		require.True(t, oh.Polygon.Contains(s.Position))
		require.Equal(t, oh.Layer, s.Layer)
		require.False(t, s.InfluenceArea.Empty())
	}
}

func TestSeedOverhangDedupSuppressesRepeatCalls(t *testing.T) {
	volumes := oracle.NewVolumes(emptyModel{}, oracle.DefaultSettings())
	settings := baseSettings()
	oh := squareOverhang(tip.Detected, scalar.FromMM(10))
	seen := map[[3]int64]bool{}

	first := tip.SeedOverhang(oh, volumes, nil, settings, seen)
	second := tip.SeedOverhang(oh, volumes, nil, settings, seen)

	require.NotEmpty(t, first)
	require.Empty(t, second)
}

func TestSeedOverhangEmptyForEmptyOverhang(t *testing.T) {
	volumes := oracle.NewVolumes(emptyModel{}, oracle.DefaultSettings())
	settings := baseSettings()
	oh := squareOverhang(tip.Detected, scalar.FromMM(10))
	oh.Polygon = nil

	seeds := tip.SeedOverhang(oh, volumes, nil, settings, map[[3]int64]bool{})
	require.Empty(t, seeds)
}

type recordingPlacer struct {
	contacts, interfaces int
}

func (p *recordingPlacer) AddTopContact(layer scalar.LayerIndex, area geom.PolygonSet)   { p.contacts++ }
func (p *recordingPlacer) AddTopInterface(layer scalar.LayerIndex, area geom.PolygonSet) { p.interfaces++ }

func TestSeedOverhangRoofStackPublishesToPlacer(t *testing.T) {
	volumes := oracle.NewVolumes(emptyModel{}, oracle.DefaultSettings())
	settings := baseSettings()
	settings.RoofEnabled = true
	settings.RoofLayers = 3
	settings.MinRoofArea = 1.0
	oh := squareOverhang(tip.Detected, scalar.FromMM(10))

	placer := &recordingPlacer{}
	seeds := tip.SeedOverhang(oh, volumes, placer, settings, map[[3]int64]bool{})

	require.NotEmpty(t, seeds)
	require.Greater(t, placer.contacts+placer.interfaces, 0)
	for _, s := range seeds {
		require.True(t, s.SupportsRoof)
	}
}
