package interfaceplacer_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/orcatree/treesupport/geom"
	"github.com/orcatree/treesupport/interfaceplacer"
	"github.com/orcatree/treesupport/scalar"
)

func square(half scalar.Coord) geom.PolygonSet {
	return geom.PolygonSet{{
		{X: -half, Y: -half},
		{X: half, Y: -half},
		{X: half, Y: half},
		{X: -half, Y: half},
	}}
}

func TestAddTopContactUnionsAcrossCalls(t *testing.T) {
	p := interfaceplacer.New()
	p.AddTopContact(3, square(scalar.FromMM(1)))
	p.AddTopContact(3, geom.PolygonSet{{
		{X: scalar.FromMM(5), Y: scalar.FromMM(5)},
		{X: scalar.FromMM(6), Y: scalar.FromMM(5)},
		{X: scalar.FromMM(6), Y: scalar.FromMM(6)},
		{X: scalar.FromMM(5), Y: scalar.FromMM(6)},
	}})

	got := p.TopContact(3)
	require.True(t, got.Contains(scalar.Point{X: 0, Y: 0}))
	require.True(t, got.Contains(scalar.Point{X: scalar.FromMM(5.5), Y: scalar.FromMM(5.5)}))
}

func TestAddTopContactIsConcurrencySafe(t *testing.T) {
	p := interfaceplacer.New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.AddTopContact(0, square(scalar.FromMM(1)))
		}()
	}
	wg.Wait()
	require.False(t, p.TopContact(0).Empty())
}

func TestSeedRaftContactExpandsOutlineAndPublishes(t *testing.T) {
	p := interfaceplacer.New()
	outline := square(scalar.FromMM(10))

	expanded := p.SeedRaftContact(outline, scalar.FromMM(2), -1)

	require.False(t, expanded.Empty())
	require.Equal(t, expanded.Area(), p.TopContact(-1).Area())
	require.Greater(t, expanded.Area(), outline.Area())
}

func TestTrimByRaftFlagsPointsInsideBorder(t *testing.T) {
	border := square(scalar.FromMM(10))

	require.True(t, interfaceplacer.TrimByRaft(scalar.Point{X: 0, Y: 0}, border))
	require.False(t, interfaceplacer.TrimByRaft(scalar.Point{X: scalar.FromMM(50), Y: 0}, border))
	require.False(t, interfaceplacer.TrimByRaft(scalar.Point{X: 0, Y: 0}, nil))
}
