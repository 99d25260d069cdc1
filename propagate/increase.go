package propagate

import (
	"sort"
	"sync"

	"github.com/orcatree/treesupport/geom"
	"github.com/orcatree/treesupport/oracle"
	"github.com/orcatree/treesupport/scalar"
)

// defaultLayerHeightMM is the physical slice thickness used to convert one
// layer step into accumulated radius-growth height (mm). It is a fixed
// package constant; Settings has no field that overrides it.
const defaultLayerHeightMM = 0.2

// safeOffsetInc grows area toward forbidden by step, in bounded
// increments, diffing against forbidden after every step so small
// features are not destroyed by a single large, rounding-lossy offset.
// At least minSteps steps run even if the total distance is small.
func safeOffsetInc(area geom.PolygonSet, total scalar.Coord, step scalar.Coord, forbidden geom.PolygonSet, minSteps int) geom.PolygonSet {
	if step <= 0 {
		step = total
	}
	steps := int(total / step)
	if steps < minSteps {
		steps = minSteps
	}
	if steps < 1 {
		steps = 1
	}
	perStep := total / scalar.Coord(steps)
	if perStep <= 0 {
		perStep = 1
	}
	cur := area
	remaining := total
	for i := 0; i < steps && remaining > 0; i++ {
		d := perStep
		if d > remaining {
			d = remaining
		}
		cur = geom.Offset(cur, d, geom.JoinRound)
		if !forbidden.Empty() {
			cur = geom.Difference(cur, forbidden)
		}
		remaining -= d
	}
	return cur
}

// WallRestrictionSource supplies the wall-restriction polygons used to
// keep a single-layer move from teleporting across a thin wall.
type WallRestrictionSource interface {
	WallRestriction(radius scalar.Coord, layer scalar.LayerIndex, useMinXY bool) geom.PolygonSet
}

// IncreaseLayer performs the increase stage for every element currently
// on layer parentLayer, producing their candidate continuations on
// layer parentLayer-1. Elements within the parent layer are processed
// in parallel; a deterministic total order (sorted by parent
// bounding-box min corner) is imposed before parallelising so any
// subsequent merge pass is reproducible.
func IncreaseLayer(arena *Arena, volumes *oracle.Volumes, walls WallRestrictionSource, settings Settings, parentLayer int, workers int, cancel func() error) error {
	if err := cancel(); err != nil {
		return err
	}
	parents := arena.Layer(parentLayer)
	child := arena.Layer(parentLayer - 1)
	if parents == nil || child == nil {
		return nil
	}

	order := deterministicOrder(parents.Elements)
	if workers < 1 {
		workers = 1
	}

	results := make([]*SupportElement, len(parents.Elements))

	jobs := make(chan int)
	var wg sync.WaitGroup
	var firstErr error
	var errMu sync.Mutex
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				if err := cancel(); err != nil {
					errMu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					errMu.Unlock()
					continue
				}
				parent := parents.Elements[idx]
				if parent.Deleted {
					continue
				}
				child := increaseOne(parent, volumes, walls, settings, scalar.LayerIndex(parentLayer-1))
				results[idx] = child
			}
		}()
	}
	for _, idx := range order {
		jobs <- idx
	}
	close(jobs)
	wg.Wait()
	if firstErr != nil {
		return firstErr
	}

	for _, idx := range order {
		parentIdx := ElementIndex(idx)
		c := results[idx]
		if c == nil {
			// The parent was merged away (Deleted; the merged element that
			// replaces it continues instead), or every area-increase attempt
			// failed, including the error case, and the parent cannot
			// continue. It is left in place (still a valid
			// node for any sibling that merged into it earlier); extraction's
			// cleanup pass will delete it if it never gains a result.
			continue
		}
		c.Parents = []ElementIndex{parentIdx}
		child.Add(c)
	}
	return nil
}

// deterministicOrder returns element indices sorted by influence-area
// bounding-box min corner — the total order this package picked for
// merge-order reproducibility (see DESIGN.md).
func deterministicOrder(elements []*SupportElement) []int {
	idx := make([]int, len(elements))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool {
		ea, eb := elements[idx[a]], elements[idx[b]]
		minA, _, _ := ea.InfluenceArea.BoundingBox()
		minB, _, _ := eb.InfluenceArea.BoundingBox()
		if minA.X != minB.X {
			return minA.X < minB.X
		}
		return minA.Y < minB.Y
	})
	return idx
}

// increaseOne attempts the ordered area-increase settings sequence for a
// single parent element, returning the new child element on targetLayer,
// or nil if even the error-case attempt produced no usable area.
func increaseOne(parent *SupportElement, volumes *oracle.Volumes, walls WallRestrictionSource, settings Settings, targetLayer scalar.LayerIndex) *SupportElement {
	order := orderForParent(defaultIncreaseOrder(), parent.LastAreaIncrease)

	for _, s := range order {
		child := tryIncrease(parent, volumes, walls, settings, targetLayer, s)
		if child != nil {
			return child
		}
	}
	return nil
}

func tryIncrease(parent *SupportElement, volumes *oracle.Volumes, walls WallRestrictionSource, settings Settings, targetLayer scalar.LayerIndex, s areaIncreaseSetting) *SupportElement {
	moveDist := settings.MaxMoveFast
	if s.speed == oracle.Slow {
		moveDist = settings.MaxMoveSlow
	}

	useMinXY := s.useMinXY || parent.UseMinXYDist
	radiusHeight := parent.EffectiveRadiusHeight + defaultLayerHeightMM
	bonus := 0.0
	if s.increaseRadius {
		bonus = defaultLayerHeightMM
	}
	radiusMM := RadiusFor(radiusHeight+bonus, settings) + parent.ElephantFootIncreases
	radius := scalar.FromMM(radiusMM)

	restriction := geom.PolygonSet(nil)
	if walls != nil {
		restriction = walls.WallRestriction(radius, targetLayer, useMinXY)
	}

	var grown geom.PolygonSet
	if s.move {
		grown = safeOffsetInc(parent.InfluenceArea, moveDist, settings.SafeStepSize, restriction, settings.MinAmountOffset)
	} else {
		grown = parent.InfluenceArea
	}

	var forbidden geom.PolygonSet
	if s.errorCase {
		// Last resort: constrain only by hard collision, may over-grow.
		forbidden = volumes.Collision(radius, targetLayer, useMinXY)
	} else if parent.ToBuildPlate {
		forbidden = volumes.Avoidance(radius, targetLayer, false, s.speed, useMinXY)
	} else {
		forbidden = volumes.Avoidance(radius, targetLayer, true, s.speed, useMinXY)
	}

	var candidate geom.PolygonSet
	if forbidden.Empty() {
		candidate = grown
	} else {
		candidate = geom.Difference(grown, forbidden)
	}

	if candidate.Area() <= settings.TinyAreaThreshold {
		return nil
	}

	child := &SupportElement{
		LayerIdx: targetLayer,
		TargetHeight: parent.TargetHeight,
		TargetPosition: parent.TargetPosition,
		NextPosition: moveInside(parent.NextPosition, candidate),
		EffectiveRadiusHeight: radiusHeight + bonus,
		DistanceToTop: parent.DistanceToTop + 1,
		ElephantFootIncreases: parent.ElephantFootIncreases,
		IncreasedToModelRadius: parent.IncreasedToModelRadius,
		DontMoveUntil: maxInt(parent.DontMoveUntil-1, 0),
		MissingRoofLayers: maxInt(parent.MissingRoofLayers-1, 0),
		ToBuildPlate: parent.ToBuildPlate,
		ToModelGracious: parent.ToModelGracious,
		UseMinXYDist: useMinXY,
		SupportsRoof: parent.SupportsRoof,
		CanUseSafeRadius: parent.CanUseSafeRadius && s.speed != oracle.Fast,
		SkipOvalisation: parent.SkipOvalisation,
		InfluenceArea: candidate,
		LastAreaIncrease: AreaIncreaseRecord{
			ToModel: !parent.ToBuildPlate,
			Speed: s.speed,
			DidIncreaseRadius: s.increaseRadius,
			WasErrorCase: s.errorCase,
			UsedMinDist: useMinXY,
			Moved: s.move,
		},
	}
	if targetLayer < scalar.LayerIndex(settings.ElephantFootMaxLayers) {
		child.ElephantFootIncreases += settings.ElephantFootIncreasePerLayer
	}
	if s.increaseRadius && !parent.ToBuildPlate {
		child.IncreasedToModelRadius += radius - scalar.FromMM(RadiusFor(radiusHeight, settings))
		if child.IncreasedToModelRadius > settings.MaxModelRadiusCap {
			child.IncreasedToModelRadius = settings.MaxModelRadiusCap
		}
	}
	if s.errorCase {
		child.ToModelGracious = false
	}
	return child
}

func moveInside(pt scalar.Point, area geom.PolygonSet) scalar.Point {
	return geom.MoveInsideIfOutside(pt, area)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
