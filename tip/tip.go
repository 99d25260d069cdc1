// Package tip implements the tip seeder: it turns raw
// per-layer overhang polygons into an ordered set of initial support
// elements (and, where roofs are enabled, stacked top-interface layers
// published through the interface placer).
package tip

import (
	"math"

	"github.com/orcatree/treesupport/geom"
	"github.com/orcatree/treesupport/oracle"
	"github.com/orcatree/treesupport/scalar"
)

// OverhangKind classifies an input overhang polygon.
type OverhangKind int

const (
	Detected OverhangKind = iota
	Enforced
	SharpTail
	Cantilever
)

// Overhang is one classified region requiring support on layer.
type Overhang struct {
	Layer scalar.LayerIndex
	Polygon geom.PolygonSet
	Kind OverhangKind
}

// LineStatus is the containment classification of a sampled point.
type LineStatus int

const (
	ToBPSafe LineStatus = iota
	ToBP
	ToModelGraciousSafe
	ToModelGracious
	ToModel
	Invalid
)

// Settings are the tip seeder's geometric tunables.
type Settings struct {
	MinRadius float64 // mm
	BranchDistance scalar.Coord
	ConnectLength scalar.Coord
	MinSupportPoints int
	SupportOnModel bool // may tips rest on placeable model area
	RoofEnabled bool
	RoofLayers int
	MinRoofArea float64 // mm²
	EnforcerExtraOffset scalar.Coord
	ForceTipToRoof bool
	// SharpTailMinWidth/CantileverMinWidth give sharp-tail and cantilever
	// overhangs a distinct (usually narrower) minimum sampled line width
	// instead of the regular branch distance (SPEC_FULL.md supplemented
	// feature #3).
	SharpTailMinWidth scalar.Coord
	CantileverMinWidth scalar.Coord
}

// InterfacePlacer is the subset of the interface-placer collaborator
// the tip seeder publishes stacked roof layers through.
type InterfacePlacer interface {
	AddTopContact(layer scalar.LayerIndex, area geom.PolygonSet)
	AddTopInterface(layer scalar.LayerIndex, area geom.PolygonSet)
}

// Seed is one placed tip: a target layer, position, initial influence
// area and classification, ready to become a propagate.SupportElement.
type Seed struct {
	Layer scalar.LayerIndex
	// TargetHeight is the layer this seed was placed on — a tip's
	// propagated element always carries this value unchanged, and a
	// merge of two elements keeps the TargetPosition belonging to the
	// larger TargetHeight.
	TargetHeight scalar.LayerIndex
	Position scalar.Point
	InfluenceArea geom.PolygonSet
	Status LineStatus
	DistanceToTop int
	SupportsRoof bool
	MissingRoofLayers int
	DontMoveUntil int
	CanUseSafeRadius bool
	ToBuildPlate bool
	ToModelGracious bool
}

const circleSegments = 16

// unitCircle returns a canonical regular polygon approximating a unit
// circle, scaled by radius and translated to center.
func unitCircle(center scalar.Point, radius scalar.Coord) geom.Polygon {
	poly := make(geom.Polygon, circleSegments)
	for i := 0; i < circleSegments; i++ {
		a := 2 * math.Pi * float64(i) / float64(circleSegments)
		poly[i] = scalar.Point{
			X: center.X + scalar.Coord(float64(radius)*math.Cos(a)),
			Y: center.Y + scalar.Coord(float64(radius)*math.Sin(a)),
		}
	}
	return poly
}

// classify determines a sample point's LineStatus by containment testing
// against the relevant avoidance/collision polygons.
func classify(pt scalar.Point, radius scalar.Coord, layer scalar.LayerIndex, volumes *oracle.Volumes, settings Settings) LineStatus {
	if !volumes.Avoidance(radius, layer, false, oracle.Slow, false).Contains(pt) {
		return ToBPSafe
	}
	if !volumes.Avoidance(radius, layer, false, oracle.Fast, false).Contains(pt) {
		return ToBP
	}
	if settings.SupportOnModel {
		if !volumes.Avoidance(radius, layer, true, oracle.Slow, false).Contains(pt) {
			return ToModelGraciousSafe
		}
		if !volumes.Avoidance(radius, layer, true, oracle.Fast, false).Contains(pt) {
			return ToModelGracious
		}
		if !volumes.Collision(radius, layer, false).Contains(pt) {
			return ToModel
		}
	}
	return Invalid
}

// dedupKey quantises a position to suppress duplicate tips landing on the
// same spot.
func dedupKey(layer scalar.LayerIndex, pt scalar.Point, bucket scalar.Coord) [3]int64 {
	if bucket <= 0 {
		bucket = 1
	}
	return [3]int64{int64(layer), int64(pt.X / bucket), int64(pt.Y / bucket)}
}

// SeedOverhang runs the full procedure for one overhang region and
// returns the resulting tip seeds, publishing any stacked roof layers to
// placer.
func SeedOverhang(oh Overhang, volumes *oracle.Volumes, placer InterfacePlacer, settings Settings, seen map[[3]int64]bool) []Seed {
	radius := scalar.FromMM(settings.MinRadius)

	forbidden := volumes.Collision(radius, oh.Layer, false)
	if settings.SupportOnModel {
		forbidden = volumes.Avoidance(radius, oh.Layer, true, oracle.Fast, false)
	} else {
		forbidden = volumes.Avoidance(radius, oh.Layer, false, oracle.Fast, false)
	}

	grown := oh.Polygon
	if oh.Kind == Enforced {
		grown = geom.Offset(grown, settings.EnforcerExtraOffset, geom.JoinRound)
	}
	supportable := geom.Difference(grown, forbidden)
	if supportable.Empty() {
		return nil
	}

	if settings.RoofEnabled && oh.Kind != SharpTail && oh.Kind != Cantilever && supportable.Area() >= settings.MinRoofArea {
		return seedRoofStack(oh, supportable, volumes, placer, settings, radius, seen)
	}
	return seedRegular(oh, supportable, volumes, settings, radius, seen)
}

// seedRoofStack stacks up to RoofLayers dense interface layers downward
// from the overhang, publishing contacts/interfaces to placer and
// returning tip seeds sampled from the lowest stratum.
func seedRoofStack(oh Overhang, area geom.PolygonSet, volumes *oracle.Volumes, placer InterfacePlacer, settings Settings, radius scalar.Coord, seen map[[3]int64]bool) []Seed {
	cur := area
	layer := oh.Layer
	count := 0
	for count < settings.RoofLayers {
		if cur.Area() < settings.MinRoofArea {
			break
		}
		if placer != nil {
			if count == 0 {
				placer.AddTopContact(layer, cur)
			} else {
				placer.AddTopInterface(layer, cur)
			}
		}
		nextLayer := layer - 1
		var forbidden geom.PolygonSet
		if settings.SupportOnModel {
			forbidden = volumes.Avoidance(radius, nextLayer, true, oracle.Fast, false)
		} else {
			forbidden = volumes.Avoidance(radius, nextLayer, false, oracle.Fast, false)
		}
		cur = geom.Difference(cur, forbidden)
		layer = nextLayer
		count++
	}
	return sampleSeeds(layer, cur, volumes, settings, radius, true, count, seen)
}

// seedRegular samples a zig-zag line pattern inside area at
// BranchDistance spacing, retrying
// at half line width when fewer than MinSupportPoints result.
func seedRegular(oh Overhang, area geom.PolygonSet, volumes *oracle.Volumes, settings Settings, radius scalar.Coord, seen map[[3]int64]bool) []Seed {
	spacing := settings.BranchDistance
	switch oh.Kind {
	case SharpTail:
		if settings.SharpTailMinWidth > 0 {
			spacing = settings.SharpTailMinWidth
		}
	case Cantilever:
		if settings.CantileverMinWidth > 0 {
			spacing = settings.CantileverMinWidth
		}
	}

	lines := geom.LineInfill(area, geom.PatternZigZag, spacing, 1, 0, settings.ConnectLength)
	points := samplePoints(lines, settings.ConnectLength)
	if len(points) < settings.MinSupportPoints && spacing > 1 {
		lines = geom.LineInfill(area, geom.PatternZigZag, spacing/2, 1, 0, settings.ConnectLength)
		points = samplePoints(lines, settings.ConnectLength)
	}

	var seeds []Seed
	for _, pt := range points {
		// anchor-extended line ends and boundary points may lie outside area
		if !area.Contains(pt) {
			continue
		}
		seeds = append(seeds, makeSeed(oh.Layer, pt, volumes, settings, radius, false, 0, seen)...)
	}
	return seeds
}

func sampleSeeds(layer scalar.LayerIndex, area geom.PolygonSet, volumes *oracle.Volumes, settings Settings, radius scalar.Coord, roof bool, roofCount int, seen map[[3]int64]bool) []Seed {
	lines := geom.LineInfill(area, geom.PatternZigZag, settings.BranchDistance, 1, 0, settings.ConnectLength)
	points := samplePoints(lines, settings.ConnectLength)
	var seeds []Seed
	for _, pt := range points {
		if !area.Contains(pt) {
			continue
		}
		seeds = append(seeds, makeSeed(layer, pt, volumes, settings, radius, roof, roofCount, seen)...)
	}
	return seeds
}

func samplePoints(lines geom.Polylines, maxSpacing scalar.Coord) []scalar.Point {
	var out []scalar.Point
	for _, l := range lines {
		for _, pt := range l.Resample(maxSpacing) {
			out = append(out, pt)
		}
	}
	return out
}

func makeSeed(layer scalar.LayerIndex, pt scalar.Point, volumes *oracle.Volumes, settings Settings, radius scalar.Coord, roof bool, roofCount int, seen map[[3]int64]bool) []Seed {
	key := dedupKey(layer, pt, settings.BranchDistance/4)
	if seen[key] {
		return nil
	}
	status := classify(pt, radius, layer, volumes, settings)
	if status == Invalid {
		return nil
	}
	seen[key] = true

	safe := status == ToBPSafe || status == ToModelGraciousSafe
	toBP := status == ToBPSafe || status == ToBP
	toModelGracious := status == ToModelGraciousSafe || status == ToModelGracious

	missing := 0
	dontMove := 0
	if roof && settings.ForceTipToRoof {
		missing = settings.RoofLayers - roofCount
		dontMove = settings.RoofLayers - roofCount
	}

	return []Seed{{
		Layer: layer,
		TargetHeight: layer,
		Position: pt,
		InfluenceArea: geom.PolygonSet{unitCircle(pt, radius)},
		Status: status,
		DistanceToTop: 0,
		SupportsRoof: roof,
		MissingRoofLayers: missing,
		DontMoveUntil: dontMove,
		CanUseSafeRadius: safe,
		ToBuildPlate: toBP,
		ToModelGracious: toModelGracious,
	}}
}
