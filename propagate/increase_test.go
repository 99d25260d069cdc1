package propagate

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/orcatree/treesupport/geom"
	"github.com/orcatree/treesupport/oracle"
	"github.com/orcatree/treesupport/scalar"
)

type emptyModel struct{}

func (emptyModel) Outline(layer scalar.LayerIndex) geom.PolygonSet { return nil }
func (emptyModel) TopLayer() scalar.LayerIndex                     { return 50 }

func square(half scalar.Coord) geom.PolygonSet {
	return geom.PolygonSet{{
		{X: -half, Y: -half},
		{X: half, Y: -half},
		{X: half, Y: half},
		{X: -half, Y: half},
	}}
}

// TestTryIncreaseNoMoveNoRadiusIsUnchanged exercises the round-trip
// property: with no avoidance in the way and a setting that neither
// moves nor increases radius, the candidate area equals the parent's
// (within the kernel's raster rounding).
func TestTryIncreaseNoMoveNoRadiusIsUnchanged(t *testing.T) {
	volumes := oracle.NewVolumes(emptyModel{}, oracle.DefaultSettings())
	settings := DefaultSettings()

	parent := &SupportElement{
		LayerIdx:      10,
		InfluenceArea: square(scalar.FromMM(2.0)),
		ToBuildPlate:  true,
	}

	s := areaIncreaseSetting{speed: oracle.Slow, increaseRadius: false, move: false}
	child := tryIncrease(parent, volumes, nil, settings, 9, s)

	require.NotNil(t, child)
	require.InDelta(t, parent.InfluenceArea.Area(), child.InfluenceArea.Area(), parent.InfluenceArea.Area()*0.02)
}

func TestOrderForParentPrefersLastUsedSetting(t *testing.T) {
	base := defaultIncreaseOrder()
	last := AreaIncreaseRecord{Speed: oracle.Fast, DidIncreaseRadius: true, UsedMinDist: false}

	ordered := orderForParent(base, last)
	require.Equal(t, oracle.Fast, ordered[0].speed)
	require.True(t, ordered[0].increaseRadius)
}

func TestRadiusForGrowsMonotonically(t *testing.T) {
	settings := DefaultSettings()
	prev := RadiusFor(0, settings)
	for h := 1.0; h <= settings.DiameterAngleScaleHeight+2; h++ {
		cur := RadiusFor(h, settings)
		require.GreaterOrEqual(t, cur, prev)
		prev = cur
	}
	require.Equal(t, settings.MinRadius, RadiusFor(0, settings))
	require.Equal(t, settings.BranchRadius, RadiusFor(settings.DiameterAngleScaleHeight, settings))
}

func TestDeterministicOrderIsStableForEqualInputs(t *testing.T) {
	elements := []*SupportElement{
		{InfluenceArea: square(scalar.FromMM(1))},
		{InfluenceArea: square(scalar.FromMM(1))},
	}
	order1 := deterministicOrder(elements)
	order2 := deterministicOrder(elements)
	require.Equal(t, order1, order2)
}
