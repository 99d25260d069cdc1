package oracle_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/orcatree/treesupport/geom"
	"github.com/orcatree/treesupport/oracle"
	"github.com/orcatree/treesupport/scalar"
)

// constantModel is a fake oracle.ModelLayers: the same square outline on
// every layer up to topLayer.
type constantModel struct {
	outline  geom.PolygonSet
	topLayer scalar.LayerIndex
}

func (m constantModel) Outline(layer scalar.LayerIndex) geom.PolygonSet {
	if layer < 0 || layer > m.topLayer {
		return nil
	}
	return m.outline
}

func (m constantModel) TopLayer() scalar.LayerIndex { return m.topLayer }

func newModel() constantModel {
	poly := geom.Polygon{
		{X: -5000, Y: -5000},
		{X: 5000, Y: -5000},
		{X: 5000, Y: 5000},
		{X: -5000, Y: 5000},
	}
	return constantModel{outline: geom.PolygonSet{poly}, topLayer: 20}
}

func TestAvoidanceContainsCollision(t *testing.T) {
	model := newModel()
	v := oracle.NewVolumes(model, oracle.DefaultSettings())

	radius := scalar.FromMM(1.0)
	for l := scalar.LayerIndex(0); l <= 10; l++ {
		collision := v.Collision(radius, l, false)
		avoidance := v.Avoidance(radius, l, false, oracle.Fast, false)
		require.False(t, geom.Difference(collision, avoidance).Area() > collision.Area()*0.01,
			"avoidance(%d) must contain collision(%d)", l, l)
	}
}

func TestAvoidanceContainsShrunkLowerLayer(t *testing.T) {
	model := newModel()
	settings := oracle.DefaultSettings()
	v := oracle.NewVolumes(model, settings)
	radius := scalar.FromMM(1.0)

	lower := v.Avoidance(radius, 4, false, oracle.Slow, false)
	upper := v.Avoidance(radius, 5, false, oracle.Slow, false)
	shrunk := geom.Shrink(lower, settings.MaxMoveSlow)

	require.False(t, geom.Difference(shrunk, upper).Area() > shrunk.Area()*0.01)
}

func TestCollisionMonotoneInRadius(t *testing.T) {
	model := newModel()
	v := oracle.NewVolumes(model, oracle.DefaultSettings())

	small := v.Collision(scalar.FromMM(0.5), 0, false)
	big := v.Collision(scalar.FromMM(2.0), 0, false)
	require.Greater(t, big.Area(), small.Area())
}

func TestPlaceableAreaIsSubsetOfOutline(t *testing.T) {
	model := newModel()
	v := oracle.NewVolumes(model, oracle.DefaultSettings())

	placeable := v.PlaceableArea(scalar.FromMM(1.0), 0)
	require.True(t, model.Outline(0).Contains(scalar.Point{X: 0, Y: 0}))
	require.False(t, geom.Difference(placeable, model.outline).Area() > placeable.Area()*0.01)
}

func TestEmptyLayerYieldsEmptyOutputs(t *testing.T) {
	model := newModel()
	v := oracle.NewVolumes(model, oracle.DefaultSettings())

	require.True(t, v.Collision(scalar.FromMM(1.0), 999, false).Empty())
}
