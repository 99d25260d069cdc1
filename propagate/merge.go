package propagate

import (
	"sort"

	"github.com/orcatree/treesupport/geom"
	"github.com/orcatree/treesupport/scalar"
)

// ShouldMergeAt reports whether the merge stage runs on layer idx. The
// cadence is fixed for a run: MergeCadenceBase*MergeCadenceCapDivisor
// layers (at least MergeCadenceBase and at least 1), and merging runs on
// every layer whose index is a multiple of it. The cadence does not change
// with height or with the outcome of earlier merges.
func ShouldMergeAt(idx int, settings Settings) bool {
	cadence := mergeCadence(settings)
	if cadence <= 1 {
		return true
	}
	return idx%cadence == 0
}

func mergeCadence(settings Settings) int {
	ceiling := settings.MergeCadenceBase * settings.MergeCadenceCapDivisor
	if ceiling < settings.MergeCadenceBase {
		ceiling = settings.MergeCadenceBase
	}
	if ceiling < 1 {
		ceiling = 1
	}
	return ceiling
}

// mergeBucketSize is the number of leaves grouped per intra-bucket
// pairwise pass before cross-bucket reduction. Kept small and fixed: the point of
// bucketing is to bound the number of O(n^2) pairwise attempts, not to
// tune it per run.
const mergeBucketSize = 4

// MergeLayer merges compatible, geometrically-overlapping elements within
// layer in place: it appends merged elements to layer and flags the
// elements they replace as Deleted (compaction and parent-index remapping
// is the caller's responsibility, once the whole layer's passes are
// done, mirroring propagate/arena.go's Compact/RemapParents split).
// The algorithm is AABB-bucketed: sort elements by the sum of their
// influence-area bounding-box centre coordinates (cheap locality without
// building a full tree), split them into consecutive buckets of
// mergeBucketSize and merge greedily within each bucket, then run
// mergeBucket over all bucket survivors together, repeatedly, until a
// pass produces no further merges.
func MergeLayer(layer *Layer, settings Settings) {
	live := make([]*SupportElement, 0, len(layer.Elements))
	for _, e := range layer.Elements {
		if !e.Deleted {
			live = append(live, e)
		}
	}
	if len(live) < 2 {
		return
	}
	sortByLocality(live)

	var survivors []*SupportElement
	for i := 0; i < len(live); i += mergeBucketSize {
		end := i + mergeBucketSize
		if end > len(live) {
			end = len(live)
		}
		survivors = append(survivors, mergeBucket(layer, live[i:end], settings)...)
	}

	for {
		merged := mergeBucket(layer, survivors, settings)
		if len(merged) == len(survivors) {
			survivors = merged
			break
		}
		survivors = merged
	}
}

// mergeBucket greedily merges every compatible overlapping pair within a
// candidate set, returning the surviving (possibly merged) elements.
// O(n^2) in len(candidates); MergeLayer passes it the small buckets first
// and then the full list of bucket survivors.
func mergeBucket(layer *Layer, candidates []*SupportElement, settings Settings) []*SupportElement {
	used := make([]bool, len(candidates))
	var out []*SupportElement
	for i := range candidates {
		if used[i] {
			continue
		}
		cur := candidates[i]
		for j := i + 1; j < len(candidates); j++ {
			if used[j] {
				continue
			}
			merged, ok := tryMergePair(cur, candidates[j], settings)
			if !ok {
				continue
			}
			cur.Deleted = true
			candidates[j].Deleted = true
			layer.Add(merged)
			cur = merged
			used[j] = true
		}
		out = append(out, cur)
	}
	return out
}

// tryMergePair attempts to merge a and b into one element occupying
// their influence areas' intersection.
// Incompatible flag combinations (to-build-plate vs. to-model,
// graceful vs. non-graceful model anchoring, min-XY distance
// requirement mismatch) or a resulting area below the tiny-area
// threshold reject the merge outright.
func tryMergePair(a, b *SupportElement, settings Settings) (*SupportElement, bool) {
	if a.ToBuildPlate != b.ToBuildPlate {
		return nil, false
	}
	if a.ToModelGracious != b.ToModelGracious {
		return nil, false
	}
	if a.UseMinXYDist != b.UseMinXYDist {
		return nil, false
	}

	inter := geom.Intersection(a.InfluenceArea, b.InfluenceArea)
	if inter.Area() <= settings.TinyAreaThreshold {
		return nil, false
	}

	erh := a.EffectiveRadiusHeight
	if b.EffectiveRadiusHeight > erh {
		erh = b.EffectiveRadiusHeight
	}
	foot := a.ElephantFootIncreases
	if b.ElephantFootIncreases > foot {
		foot = b.ElephantFootIncreases
	}
	if !a.ToBuildPlate {
		radius := scalar.FromMM(RadiusFor(erh, settings) + foot)
		if radius > settings.MaxModelRadiusCap {
			return nil, false
		}
	}

	targetHeight, targetPosition := a.TargetHeight, a.TargetPosition
	if b.TargetHeight > a.TargetHeight {
		targetHeight, targetPosition = b.TargetHeight, b.TargetPosition
	}

	merged := &SupportElement{
		LayerIdx: a.LayerIdx,
		TargetHeight: targetHeight,
		TargetPosition: targetPosition,
		NextPosition: geom.MoveInsideIfOutside(midpoint(a.NextPosition, b.NextPosition), inter),
		EffectiveRadiusHeight: erh,
		DistanceToTop: maxInt(a.DistanceToTop, b.DistanceToTop),
		ElephantFootIncreases: foot,
		IncreasedToModelRadius: maxCoord(a.IncreasedToModelRadius, b.IncreasedToModelRadius),
		DontMoveUntil: maxInt(a.DontMoveUntil, b.DontMoveUntil),
		MissingRoofLayers: minInt(a.MissingRoofLayers, b.MissingRoofLayers),
		ToBuildPlate: a.ToBuildPlate,
		ToModelGracious: a.ToModelGracious,
		UseMinXYDist: a.UseMinXYDist,
		SupportsRoof: a.SupportsRoof || b.SupportsRoof,
		CanUseSafeRadius: a.CanUseSafeRadius && b.CanUseSafeRadius,
		SkipOvalisation: a.SkipOvalisation || b.SkipOvalisation,
		InfluenceArea: inter,
		Parents: append(append([]ElementIndex{}, a.Parents...), b.Parents...),
	}
	return merged, true
}

func sortByLocality(elements []*SupportElement) {
	key := func(e *SupportElement) scalar.Coord {
		min, max, ok := e.InfluenceArea.BoundingBox()
		if !ok {
			return 0
		}
		cx := (min.X + max.X) / 2
		cy := (min.Y + max.Y) / 2
		return cx + cy
	}
	sort.SliceStable(elements, func(i, j int) bool {
		return key(elements[i]) < key(elements[j])
	})
}

func midpoint(a, b scalar.Point) scalar.Point {
	return scalar.Point{X: (a.X + b.X) / 2, Y: (a.Y + b.Y) / 2}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxCoord(a, b scalar.Coord) scalar.Coord {
	if a > b {
		return a
	}
	return b
}
