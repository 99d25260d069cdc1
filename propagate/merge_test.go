package propagate

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/orcatree/treesupport/geom"
	"github.com/orcatree/treesupport/scalar"
)

func overlappingSquares(offset scalar.Coord) (a, b geom.PolygonSet) {
	a = square(scalar.FromMM(2))
	shifted := make(geom.Polygon, len(square(scalar.FromMM(2))[0]))
	for i, p := range square(scalar.FromMM(2))[0] {
		shifted[i] = scalar.Point{X: p.X + offset, Y: p.Y}
	}
	b = geom.PolygonSet{shifted}
	return
}

func TestTryMergePairMergesOverlappingCompatibleElements(t *testing.T) {
	settings := DefaultSettings()
	a, b := overlappingSquares(scalar.FromMM(1))

	elA := &SupportElement{InfluenceArea: a, ToBuildPlate: true, DistanceToTop: 3, Parents: []ElementIndex{0}}
	elB := &SupportElement{InfluenceArea: b, ToBuildPlate: true, DistanceToTop: 5, Parents: []ElementIndex{1}}

	merged, ok := tryMergePair(elA, elB, settings)
	require.True(t, ok)
	require.False(t, merged.InfluenceArea.Empty())
	require.Equal(t, 5, merged.DistanceToTop)
	require.Len(t, merged.Parents, 2)
}

func TestTryMergePairRejectsIncompatibleFlags(t *testing.T) {
	settings := DefaultSettings()
	a, b := overlappingSquares(scalar.FromMM(1))

	elA := &SupportElement{InfluenceArea: a, ToBuildPlate: true}
	elB := &SupportElement{InfluenceArea: b, ToBuildPlate: false}

	_, ok := tryMergePair(elA, elB, settings)
	require.False(t, ok)
}

func TestTryMergePairRejectsGraciousMismatch(t *testing.T) {
	settings := DefaultSettings()
	a, b := overlappingSquares(scalar.FromMM(1))

	elA := &SupportElement{InfluenceArea: a, ToBuildPlate: false, ToModelGracious: true}
	elB := &SupportElement{InfluenceArea: b, ToBuildPlate: false, ToModelGracious: false}

	_, ok := tryMergePair(elA, elB, settings)
	require.False(t, ok)
}

func TestTryMergePairRejectsDisjointAreas(t *testing.T) {
	settings := DefaultSettings()
	a, b := overlappingSquares(scalar.FromMM(100))

	elA := &SupportElement{InfluenceArea: a, ToBuildPlate: true}
	elB := &SupportElement{InfluenceArea: b, ToBuildPlate: true}

	_, ok := tryMergePair(elA, elB, settings)
	require.False(t, ok)
}

func TestMergeLayerReducesElementCountWhenOverlapping(t *testing.T) {
	settings := DefaultSettings()
	a, b := overlappingSquares(scalar.FromMM(1))

	layer := &Layer{Elements: []*SupportElement{
		{InfluenceArea: a, ToBuildPlate: true},
		{InfluenceArea: b, ToBuildPlate: true},
	}}

	MergeLayer(layer, settings)

	live := 0
	for _, e := range layer.Elements {
		if !e.Deleted {
			live++
		}
	}
	require.Equal(t, 1, live)
}
