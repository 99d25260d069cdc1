package geom_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/orcatree/treesupport/geom"
	"github.com/orcatree/treesupport/scalar"
)

func square(cx, cy, half scalar.Coord) geom.Polygon {
	return geom.Polygon{
		{X: cx - half, Y: cy - half},
		{X: cx + half, Y: cy - half},
		{X: cx + half, Y: cy + half},
		{X: cx - half, Y: cy + half},
	}
}

func TestOffsetMonotoneInRadius(t *testing.T) {
	base := geom.PolygonSet{square(0, 0, 1000)}
	small := geom.Offset(base, 200, geom.JoinRound)
	big := geom.Offset(base, 800, geom.JoinRound)

	require.Greater(t, big.Area(), small.Area())
	// everything reachable at the smaller offset must still be covered by
	// the bigger one: growth is monotone non-decreasing in radius.
	require.InDelta(t, small.Area(), geom.Intersection(small, big).Area(), small.Area()*0.05)
}

func TestDifferenceRemovesForbiddenRegion(t *testing.T) {
	area := geom.PolygonSet{square(0, 0, 1000)}
	forbidden := geom.PolygonSet{square(0, 0, 400)}

	result := geom.Difference(area, forbidden)
	require.False(t, result.Contains(scalar.Point{X: 0, Y: 0}))
	require.True(t, result.Contains(scalar.Point{X: 900, Y: 0}))
}

func TestMoveInsideIfOutsideIsIdempotent(t *testing.T) {
	area := geom.PolygonSet{square(0, 0, 1000)}
	outside := scalar.Point{X: 5000, Y: 0}

	once := geom.MoveInsideIfOutside(outside, area)
	twice := geom.MoveInsideIfOutside(once, area)

	require.Equal(t, once, twice)
	require.True(t, area.Contains(once))
}

func TestMoveInsideIfOutsideLeavesInsidePointUnchanged(t *testing.T) {
	area := geom.PolygonSet{square(0, 0, 1000)}
	inside := scalar.Point{X: 100, Y: 100}

	require.Equal(t, inside, geom.MoveInsideIfOutside(inside, area))
}

func TestUnionContainsBothInputs(t *testing.T) {
	a := geom.PolygonSet{square(-1000, 0, 400)}
	b := geom.PolygonSet{square(1000, 0, 400)}

	u := geom.Union(a, b)
	require.True(t, u.Contains(scalar.Point{X: -1000, Y: 0}))
	require.True(t, u.Contains(scalar.Point{X: 1000, Y: 0}))
}

func TestEmptySetOperationsAreTotal(t *testing.T) {
	var empty geom.PolygonSet
	nonEmpty := geom.PolygonSet{square(0, 0, 500)}

	require.True(t, empty.Empty())
	require.True(t, geom.Difference(empty, nonEmpty).Empty())
	require.Equal(t, nonEmpty.Area(), geom.Difference(nonEmpty, empty).Area())
	require.True(t, geom.Intersection(empty, nonEmpty).Empty())
}
