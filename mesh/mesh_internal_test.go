package mesh

import (
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/require"
)

func TestRingSegmentsGrowsWithRadius(t *testing.T) {
	small := ringSegments(0.4, 0.05)
	big := ringSegments(4.0, 0.05)
	require.GreaterOrEqual(t, big, small)
	require.GreaterOrEqual(t, small, 3)
}

func TestZigZagStripCoversBothRings(t *testing.T) {
	a := ringAt(r3.Vector{}, r3.Vector{Z: 1}, 1, 6)
	b := ringAt(r3.Vector{Z: 1}, r3.Vector{Z: 1}, 1, 6)

	tris := zigZagStrip(a, b)
	require.Len(t, tris, 12)
}

func TestZigZagStripRejectsMismatchedRingSizes(t *testing.T) {
	a := ringAt(r3.Vector{}, r3.Vector{Z: 1}, 1, 6)
	b := ringAt(r3.Vector{Z: 1}, r3.Vector{Z: 1}, 1, 5)

	require.Nil(t, zigZagStrip(a, b))
}
