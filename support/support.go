// Package support is the single external entry point of the tree-support
// core: it wires the oracle (C1), tip seeder (C2), influence-area
// propagator (C3), centreline extractor (C4), organic smoother (C5),
// branch mesher (C6) and interface placer (C7) into one sequential
// pipeline.
package support

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/orcatree/treesupport/extract"
	"github.com/orcatree/treesupport/geom"
	"github.com/orcatree/treesupport/interfaceplacer"
	"github.com/orcatree/treesupport/mesh"
	"github.com/orcatree/treesupport/oracle"
	"github.com/orcatree/treesupport/organic"
	"github.com/orcatree/treesupport/propagate"
	"github.com/orcatree/treesupport/scalar"
	"github.com/orcatree/treesupport/tip"
)

// ErrCancelled is returned when the caller's cancellation callable fires
// mid-run; no partial output is published.
var ErrCancelled = errors.New("treesupport: cancelled")

// Cancel is the nullary cancellation collaborator.
type Cancel func() error

func checkCancel(c Cancel) error {
	if c == nil {
		return nil
	}
	if err := c(); err != nil {
		return ErrCancelled
	}
	return nil
}

// Config bundles every component's settings plus the layer geometry
// needed to drive the pipeline.
type Config struct {
	Oracle oracle.Settings
	Tip tip.Settings
	Propagate propagate.Settings
	Extract extract.Settings
	Organic organic.Settings
	Mesh mesh.Settings
	LayerZ []float64 // mm, indexed by LayerIndex (raft offset applied by caller)
	RaftLayers int
	TopLayer int
	Workers int

	RaftExpansion scalar.Coord
	MachineBorder geom.PolygonSet
}

// Result is the final output handed back to the outer slicer: per-tree,
// per-layer assembled slices.
type Result struct {
	Trees []*mesh.TreeSlices
}

// Generator runs the full pipeline over a given model and overhang set.
type Generator struct {
	cfg Config
	log *slog.Logger
	placer *interfaceplacer.Placer
	volumes *oracle.Volumes
}

// NewGenerator constructs a Generator over model, the external
// collaborator supplying per-layer outlines.
func NewGenerator(model oracle.ModelLayers, cfg Config, log *slog.Logger) *Generator {
	if log == nil {
		log = slog.Default()
	}
	return &Generator{
		cfg: cfg,
		log: log,
		placer: interfaceplacer.New(),
		volumes: oracle.NewVolumes(model, cfg.Oracle),
	}
}

// Run executes C1 through C7 in sequence and returns the assembled
// per-tree output, or ErrCancelled if cancel fires mid-run.
func (g *Generator) Run(overhangs []tip.Overhang, raftOutline geom.PolygonSet, cancel Cancel) (*Result, error) {
	if err := checkCancel(cancel); err != nil {
		return nil, err
	}
	g.log.Info("precalculating oracle volumes", "topLayer", g.cfg.TopLayer)
	if err := g.volumes.Precalculate(radiiToPrecalculate(g.cfg.Propagate), scalar.LayerIndex(g.cfg.TopLayer), g.cfg.Workers, func() error { return checkCancel(cancel) }); err != nil {
		return nil, err
	}

	var raftBorder geom.PolygonSet
	if !raftOutline.Empty() && g.cfg.RaftExpansion > 0 {
		raftBorder = g.placer.SeedRaftContact(raftOutline, g.cfg.RaftExpansion, scalar.LayerIndex(-g.cfg.RaftLayers))
	}

	arena := propagate.NewArena(g.cfg.RaftLayers, g.cfg.TopLayer)
	seen := make(map[[3]int64]bool)
	topLayer := 0
	for _, oh := range overhangs {
		if err := checkCancel(cancel); err != nil {
			return nil, err
		}
		seeds := tip.SeedOverhang(oh, g.volumes, g.placer, g.cfg.Tip, seen)
		for _, s := range seeds {
			if raftBorder != nil && interfaceplacer.TrimByRaft(s.Position, raftBorder) {
				continue
			}
			el, _ := arena.NewElement(int(s.Layer))
			*el = propagate.SupportElement{
				LayerIdx: s.Layer,
				TargetHeight: s.TargetHeight,
				TargetPosition: s.Position,
				NextPosition: s.Position,
				DistanceToTop: s.DistanceToTop,
				SupportsRoof: s.SupportsRoof,
				MissingRoofLayers: s.MissingRoofLayers,
				DontMoveUntil: s.DontMoveUntil,
				CanUseSafeRadius: s.CanUseSafeRadius,
				ToBuildPlate: s.ToBuildPlate,
				ToModelGracious: s.ToModelGracious,
				InfluenceArea: s.InfluenceArea,
			}
		}
		if int(oh.Layer) > topLayer {
			topLayer = int(oh.Layer)
		}
	}

	g.log.Info("propagating influence areas", "fromLayer", topLayer)
	for l := topLayer; l > -g.cfg.RaftLayers; l-- {
		if err := checkCancel(cancel); err != nil {
			return nil, err
		}
		if err := propagate.IncreaseLayer(arena, g.volumes, g.volumes, g.cfg.Propagate, l, g.cfg.Workers, func() error { return checkCancel(cancel) }); err != nil {
			return nil, err
		}
		if propagate.ShouldMergeAt(l, g.cfg.Propagate) {
			if layer := arena.Layer(l - 1); layer != nil {
				propagate.MergeLayer(layer, g.cfg.Propagate)
			}
		}
	}

	g.log.Info("extracting centrelines")
	forest := extract.Extract(arena, g.volumes, g.cfg.Propagate, g.cfg.Extract, -g.cfg.RaftLayers, topLayer)

	g.log.Info("smoothing branches", "trees", len(forest.Trees))
	spheres := organic.BuildSpheres(forest, g.cfg.Propagate, g.cfg.LayerZ, 3)
	organic.Smooth(spheres, newVolumesCollisionIndex(g.volumes), g.cfg.Organic)

	g.log.Info("meshing and re-slicing", "trees", len(forest.Trees))
	result := &Result{}
	for _, tr := range forest.Trees {
		if err := checkCancel(cancel); err != nil {
			return nil, err
		}
		slices := mesh.NewTreeSlices(g.cfg.RaftLayers, g.cfg.TopLayer)
		assembleTree(tr, slices, g.volumes, g.cfg, arena)
		result.Trees = append(result.Trees, slices)
	}

	return result, nil
}

func assembleTree(tree *extract.Tree, slices *mesh.TreeSlices, volumes *oracle.Volumes, cfg Config, arena *propagate.Arena) {
	var walk func(b *extract.Branch)
	walk = func(b *extract.Branch) {
		path := mesh.CentrelineFromBranch(b, cfg.Propagate, cfg.LayerZ)
		if len(path) >= 1 {
			tris := mesh.ExtrudeBranch(path, cfg.Mesh)
			fromLayer := b.Elements[0].LayerIdx
			toLayer := b.Elements[len(b.Elements)-1].LayerIdx
			perLayer := mesh.SliceBranch(tris, cfg.LayerZ, fromLayer, toLayer, volumes, cfg.MachineBorder)
			mesh.Assemble(slices, perLayer)
			if b.HasRoot() {
				if first, ok := perLayer[fromLayer]; ok {
					contacts, extraBottoms := mesh.BottomContact(b, first, volumes, cfg.Mesh)
					for l, c := range contacts {
						slices.AddBottomContact(l, c)
					}
					for l, poly := range extraBottoms {
						slices.AddExtraBottomSlice(l, poly)
					}
				}
			}
		}
		for _, up := range b.Up {
			walk(up)
		}
	}
	walk(tree.Root)
}

func radiiToPrecalculate(settings propagate.Settings) []scalar.Coord {
	var radii []scalar.Coord
	for h := 0.0; h <= settings.DiameterAngleScaleHeight; h += settings.DiameterAngleScaleHeight / 8 {
		radii = append(radii, scalar.FromMM(propagate.RadiusFor(h, settings)))
	}
	radii = append(radii, scalar.FromMM(settings.BranchRadius))
	return radii
}

// volumesCollisionIndex adapts oracle.Volumes into organic.CollisionIndex:
// the smoother nudges sphere centres away from the bare model boundary
// (zero branch radius, normal XY clearance) and accounts for each
// sphere's own radius itself, so the tree built here must not also bake
// in a radius. Trees are built lazily per layer and cached, since the
// smoother revisits the same layer from many spheres across iterations.
type volumesCollisionIndex struct {
	volumes *oracle.Volumes

	mu sync.Mutex
	trees map[scalar.LayerIndex]*geom.LineAABBTree
}

func newVolumesCollisionIndex(volumes *oracle.Volumes) *volumesCollisionIndex {
	return &volumesCollisionIndex{volumes: volumes, trees: make(map[scalar.LayerIndex]*geom.LineAABBTree)}
}

func (c *volumesCollisionIndex) LineTree(layer scalar.LayerIndex) *geom.LineAABBTree {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.trees[layer]; ok {
		return t
	}
	boundary := c.volumes.Collision(0, layer, false)
	t := geom.NewLineAABBTree(boundary)
	c.trees[layer] = t
	return t
}
