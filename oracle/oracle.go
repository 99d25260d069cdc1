// Package oracle implements the model-volumes cache:
// collision, placeable-area, wall-restriction and avoidance polygon sets,
// keyed by (radius bucket, layer, flavour) and computed lazily, once, with
// results published immutably behind a concurrent map — the same shape as
// gaissmai/bart's Table/Fast/Lite caches, which are themselves
// concurrent-read, insert-once tries.
package oracle

import (
	"fmt"
	"sync"

	"github.com/orcatree/treesupport/geom"
	"github.com/orcatree/treesupport/scalar"
)

// Speed selects how aggressively an avoidance polygon set was grown
// outward from the model.
type Speed int

const (
	// Fast avoidance is the coarse, single-step offset: cheap, may clip
	// thin passages too aggressively for a branch to ever reach them.
	Fast Speed = iota
	// FastSafe is built exactly like Fast (single-step offset by
	// MaxMoveFast), so its polygons equal Fast's; thin or hole passages are
	// not excluded separately.
	FastSafe
	// Slow avoidance is a single-step offset by MaxMoveSlow, the smallest
	// per-layer move, and is the most conservative.
	Slow
)

func (s Speed) String() string {
	switch s {
	case Fast:
		return "fast"
	case FastSafe:
		return "fast-safe"
	case Slow:
		return "slow"
	default:
		return "unknown"
	}
}

// flavour tags which cached polygon set a key refers to.
type flavour int

const (
	flavourCollision flavour = iota
	flavourPlaceable
	flavourWallRestriction
	flavourAvoidance
)

type cacheKey struct {
	flavour flavour
	radius scalar.Coord
	layer scalar.LayerIndex
	toModel bool
	speed Speed
	useMinXY bool
}

// ModelLayers is the external collaborator supplying the
// per-layer outline of the sliced model. The oracle consumes it as an
// opaque source; it performs no mesh slicing itself.
type ModelLayers interface {
	// Outline returns the model's layer outline at layer, or an empty set
	// for out-of-range layers.
	Outline(layer scalar.LayerIndex) geom.PolygonSet
	// TopLayer returns the highest populated layer index.
	TopLayer() scalar.LayerIndex
}

// Settings are the geometric tunables the oracle needs; everything else
// (material flow, UI, file formats) is out of scope.
type Settings struct {
	XYDistance scalar.Coord // collision offset for normal clearance
	XYMinDistance scalar.Coord // collision offset when use_min_xy_dist is set
	SampleResolution scalar.Coord // radius bucket size
	MaxMoveSlow scalar.Coord // per-layer max centre movement, slow speed
	MaxMoveFast scalar.Coord // per-layer max centre movement, fast speed
	// RecursionForceEvery is not read by the oracle: buildAvoidanceChain
	// walks every uncached layer iteratively, with no depth bound.
	RecursionForceEvery int
}

// DefaultSettings returns reasonable millimetre-scale defaults.
func DefaultSettings() Settings {
	return Settings{
		XYDistance: scalar.FromMM(0.3),
		XYMinDistance: scalar.FromMM(0.1),
		SampleResolution: scalar.FromMM(0.5),
		MaxMoveSlow: scalar.FromMM(0.2),
		MaxMoveFast: scalar.FromMM(1.0),
		RecursionForceEvery: 100,
	}
}

func (s Settings) maxMove(speed Speed) scalar.Coord {
	if speed == Slow {
		return s.MaxMoveSlow
	}
	return s.MaxMoveFast
}

// entry is a lazily-computed, immutable-once-set cache slot. Readers
// never lock entry.value after Wait() returns; only the cache's insertion
// map needs a lock.
type entry struct {
	once sync.Once
	value geom.PolygonSet
}

// Volumes is the thread-safe oracle cache (C1). The zero value is not
// usable; construct with NewVolumes.
type Volumes struct {
	settings Settings
	model ModelLayers

	mu sync.Mutex // guards only insertion into entries
	entries map[cacheKey]*entry
}

// NewVolumes constructs an oracle over model, ready to serve Collision,
// PlaceableArea, WallRestriction and Avoidance queries.
func NewVolumes(model ModelLayers, settings Settings) *Volumes {
	return &Volumes{
		settings: settings,
		model: model,
		entries: make(map[cacheKey]*entry),
	}
}

// bucketRadius rounds radius up to the configured sample resolution.
func (v *Volumes) bucketRadius(radius scalar.Coord) scalar.Coord {
	return scalar.RoundUpToMultiple(radius, v.settings.SampleResolution)
}

// getOrCompute returns the cached polygons for key, computing them
// exactly once across any number of concurrent callers.
func (v *Volumes) getOrCompute(key cacheKey, compute func() geom.PolygonSet) geom.PolygonSet {
	v.mu.Lock()
	e, ok := v.entries[key]
	if !ok {
		e = &entry{}
		v.entries[key] = e
	}
	v.mu.Unlock()

	e.once.Do(func() {
		e.value = compute()
	})
	return e.value
}

// Collision returns the layer outline offset outward by radius plus the
// configured xy clearance. Monotone non-decreasing in
// radius by construction (Offset is monotone).
func (v *Volumes) Collision(radius scalar.Coord, layer scalar.LayerIndex, useMinXY bool) geom.PolygonSet {
	radius = v.bucketRadius(radius)
	key := cacheKey{flavour: flavourCollision, radius: radius, layer: layer, useMinXY: useMinXY}
	return v.getOrCompute(key, func() geom.PolygonSet {
		outline := v.model.Outline(layer)
		clearance := v.settings.XYDistance
		if useMinXY {
			clearance = v.settings.XYMinDistance
		}
		return geom.Offset(outline, radius+clearance, geom.JoinRound)
	})
}

// PlaceableArea returns where a branch of radius may rest gracefully on
// the model at layer: the layer outline eroded by radius,
// so the resulting disc fits entirely on solid model.
func (v *Volumes) PlaceableArea(radius scalar.Coord, layer scalar.LayerIndex) geom.PolygonSet {
	radius = v.bucketRadius(radius)
	key := cacheKey{flavour: flavourPlaceable, radius: radius, layer: layer}
	return v.getOrCompute(key, func() geom.PolygonSet {
		outline := v.model.Outline(layer)
		return geom.Offset(outline, -radius, geom.JoinRound)
	})
}

// WallRestriction returns the polygon describing where a centreline move
// between layer and layer-1 would pierce an inward model wall, used to bound per-layer movement during the increase stage.
func (v *Volumes) WallRestriction(radius scalar.Coord, layer scalar.LayerIndex, useMinXY bool) geom.PolygonSet {
	radius = v.bucketRadius(radius)
	key := cacheKey{flavour: flavourWallRestriction, radius: radius, layer: layer, useMinXY: useMinXY}
	return v.getOrCompute(key, func() geom.PolygonSet {
		below := v.Collision(radius, layer-1, useMinXY)
		here := v.Collision(radius, layer, useMinXY)
		// The restriction is model wall that exists at the lower layer but
		// not at this one: moving into it would cut through an inward wall
		// that only appears once the branch has descended further.
		return geom.Difference(below, here)
	})
}

// Avoidance returns the polygon set a branch centre of radius must not
// enter at layer, for the given speed/to-model/min-xy combination.
//
// Construction direction: avoidance(r, 0) is bounded by collision(r, 0),
// and avoidance(r, L) is built from avoidance(r, L-1): the cache is
// built bottom-up from the build plate, each layer's avoidance
// conservatively containing the layer below's avoidance shrunk by that
// layer's max-move budget, unioned with the local collision. See
// DESIGN.md "Avoidance recursion direction" for why bottom-up was chosen
// over a top-down reading.
func (v *Volumes) Avoidance(radius scalar.Coord, layer scalar.LayerIndex, toModel bool, speed Speed, useMinXY bool) geom.PolygonSet {
	radius = v.bucketRadius(radius)
	return v.buildAvoidanceChain(radius, layer, toModel, speed, useMinXY)
}

// buildAvoidanceChain fills the avoidance cache iteratively from the
// lowest uncached layer up to the requested layer. This is the concrete
// mechanism satisfying 's recursion-depth bound ("force
// evaluation at L-K when K layers are already missing"): there is no
// actual call recursion to bound, because the chain is always walked as
// a loop, not as nested calls — the bound folds into an ordinary
// iteration count.
func (v *Volumes) buildAvoidanceChain(radius scalar.Coord, layer scalar.LayerIndex, toModel bool, speed Speed, useMinXY bool) geom.PolygonSet {
	if layer < 0 {
		return nil
	}
	keyAt := func(l scalar.LayerIndex) cacheKey {
		return cacheKey{flavour: flavourAvoidance, radius: radius, layer: l, toModel: toModel, speed: speed, useMinXY: useMinXY}
	}

	// Find the highest already-cached layer at or below `layer` to resume
	// from, walking down from layer toward 0.
	start := scalar.LayerIndex(0)
	var prev geom.PolygonSet
	haveBase := false
	for l := layer; l >= 0; l-- {
		v.mu.Lock()
		e, ok := v.entries[keyAt(l)]
		v.mu.Unlock()
		if ok {
			// It may still be mid-computation by another goroutine; Once.Do
			// below on the same entry handles that safely when we reach it
			// via getOrCompute for layer `l` itself. For a strictly lower
			// layer already resolved, block on it directly.
			if l == layer {
				break
			}
			e.once.Do(func() {}) // no-op if already computing/done; ensures publish visibility
			prev = e.value
			start = l + 1
			haveBase = true
			break
		}
	}
	if !haveBase {
		start = 0
	}

	var result geom.PolygonSet
	for l := start; l <= layer; l++ {
		ll := l
		pv := prev
		result = v.getOrCompute(keyAt(ll), func() geom.PolygonSet {
			collision := v.Collision(radius, ll, useMinXY)
			if ll == 0 || pv == nil {
				return collision
			}
			shrunk := geom.Shrink(pv, v.settings.maxMove(speed))
			return geom.Union(collision, shrunk)
		})
		prev = result
	}
	return result
}

// Precalculate populates the caches in parallel over every (radius,
// layer) pair a caller expects to need, up to upToLayer.
// Radii are bucketed first so duplicate work across close radii is
// skipped.
func (v *Volumes) Precalculate(radii []scalar.Coord, upToLayer scalar.LayerIndex, workers int, cancel func() error) error {
	if workers < 1 {
		workers = 1
	}
	bucketed := map[scalar.Coord]bool{}
	var uniqueRadii []scalar.Coord
	for _, r := range radii {
		b := v.bucketRadius(r)
		if !bucketed[b] {
			bucketed[b] = true
			uniqueRadii = append(uniqueRadii, b)
		}
	}

	type job struct {
		radius scalar.Coord
	}
	jobs := make(chan job)
	errCh := make(chan error, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				if err := cancel(); err != nil {
					errCh <- err
					return
				}
				for l := scalar.LayerIndex(0); l <= upToLayer; l++ {
					if err := cancel(); err != nil {
						errCh <- err
						return
					}
					v.Collision(j.radius, l, false)
					v.Collision(j.radius, l, true)
					v.PlaceableArea(j.radius, l)
					v.Avoidance(j.radius, l, false, Fast, false)
					v.Avoidance(j.radius, l, false, FastSafe, false)
					v.Avoidance(j.radius, l, false, Slow, false)
					v.Avoidance(j.radius, l, true, Fast, false)
					v.Avoidance(j.radius, l, true, FastSafe, false)
					v.Avoidance(j.radius, l, true, Slow, false)
				}
			}
		}()
	}
	go func() {
		for _, r := range uniqueRadii {
			jobs <- job{radius: r}
		}
		close(jobs)
	}()
	wg.Wait()
	select {
	case err := <-errCh:
		return fmt.Errorf("oracle: precalculate: %w", err)
	default:
		return nil
	}
}
