package organic_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/orcatree/treesupport/extract"
	"github.com/orcatree/treesupport/organic"
	"github.com/orcatree/treesupport/propagate"
	"github.com/orcatree/treesupport/scalar"
)

func straightBranch(n int) *extract.Branch {
	b := &extract.Branch{}
	for i := 0; i < n; i++ {
		b.Elements = append(b.Elements, &propagate.SupportElement{
			LayerIdx:      scalar.LayerIndex(i),
			ResultOnLayer: scalar.Point{X: scalar.FromMM(float64(i)), Y: 0},
			HasResult:     true,
		})
	}
	return b
}

func TestBuildSpheresLocksTip(t *testing.T) {
	branch := straightBranch(4)
	forest := &extract.Forest{Trees: []*extract.Tree{{Root: branch}}}
	layerZ := []float64{0, 0.2, 0.4, 0.6}

	spheres := organic.BuildSpheres(forest, propagate.DefaultSettings(), layerZ, 1)

	require.Len(t, spheres, 4)
	require.False(t, spheres[0].Locked, "a build-plate root at layer 0 is free to slide along the plate")
	require.True(t, spheres[len(spheres)-1].Locked, "tip sphere must stay locked")
}

func TestBuildSpheresLocksModelAnchoredRoot(t *testing.T) {
	branch := straightBranch(4)
	for _, el := range branch.Elements {
		el.LayerIdx++
	}
	forest := &extract.Forest{Trees: []*extract.Tree{{Root: branch}}}
	layerZ := []float64{0, 0.2, 0.4, 0.6, 0.8}

	spheres := organic.BuildSpheres(forest, propagate.DefaultSettings(), layerZ, 1)

	require.True(t, spheres[0].Locked, "a root anchored above layer 0 is a fixed model-contact point")
}

func TestSmoothConvergesWithoutCollisionIndex(t *testing.T) {
	branch := straightBranch(5)
	// perturb the middle element off the straight line so smoothing has
	// something to correct.
	branch.Elements[2].ResultOnLayer.Y = scalar.FromMM(5)

	forest := &extract.Forest{Trees: []*extract.Tree{{Root: branch}}}
	layerZ := []float64{0, 0.2, 0.4, 0.6, 0.8}
	spheres := organic.BuildSpheres(forest, propagate.DefaultSettings(), layerZ, 1)

	settings := organic.DefaultSettings()
	organic.Smooth(spheres, nil, settings)

	require.Less(t, branch.Elements[2].ResultOnLayer.Y, scalar.FromMM(5))
}
