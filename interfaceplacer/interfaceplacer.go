// Package interfaceplacer implements the interface placer: a thread-safe accumulator for top-contact, top-interface
// and top-base-interface polygons, shared between the tip seeder
// (stacked roof layers) and the branch mesher (final base assembly), and
// the raft-coupling seam.
package interfaceplacer

import (
	"sync"

	"github.com/orcatree/treesupport/geom"
	"github.com/orcatree/treesupport/scalar"
)

// Placer is the mutex-guarded accumulator.
type Placer struct {
	mu sync.Mutex
	topContacts map[scalar.LayerIndex]geom.PolygonSet
	topInterfaces map[scalar.LayerIndex]geom.PolygonSet
	topBaseInterfaces map[scalar.LayerIndex]geom.PolygonSet
}

// New constructs an empty Placer.
func New() *Placer {
	return &Placer{
		topContacts: make(map[scalar.LayerIndex]geom.PolygonSet),
		topInterfaces: make(map[scalar.LayerIndex]geom.PolygonSet),
		topBaseInterfaces: make(map[scalar.LayerIndex]geom.PolygonSet),
	}
}

// AddTopContact unions area into layer's top-contact accumulator.
func (p *Placer) AddTopContact(layer scalar.LayerIndex, area geom.PolygonSet) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topContacts[layer] = geom.Union(p.topContacts[layer], area)
}

// AddTopInterface unions area into layer's dense top-interface
// accumulator.
func (p *Placer) AddTopInterface(layer scalar.LayerIndex, area geom.PolygonSet) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topInterfaces[layer] = geom.Union(p.topInterfaces[layer], area)
}

// AddTopBaseInterface unions area into layer's transition top-base-
// interface accumulator (soluble/insoluble separation).
func (p *Placer) AddTopBaseInterface(layer scalar.LayerIndex, area geom.PolygonSet) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topBaseInterfaces[layer] = geom.Union(p.topBaseInterfaces[layer], area)
}

// TopContact returns a snapshot of layer's accumulated top-contact area.
func (p *Placer) TopContact(layer scalar.LayerIndex) geom.PolygonSet {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.topContacts[layer]
}

// TopInterface returns a snapshot of layer's accumulated dense interface
// area.
func (p *Placer) TopInterface(layer scalar.LayerIndex) geom.PolygonSet {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.topInterfaces[layer]
}

// SeedRaftContact injects a raft-contact layer into top_contacts using
// the first-layer model outline expanded by raftExpansion.
func (p *Placer) SeedRaftContact(firstLayerOutline geom.PolygonSet, raftExpansion scalar.Coord, raftLayer scalar.LayerIndex) geom.PolygonSet {
	expanded := geom.Offset(firstLayerOutline, raftExpansion, geom.JoinRound)
	p.AddTopContact(raftLayer, expanded)
	return expanded
}

// TrimByRaft reports whether pt, belonging to a newly placed tip, falls
// inside the expanded raft border and should be deleted: the test is
// geom.SignedDistance against the raft border, negative meaning inside.
func TrimByRaft(pt scalar.Point, raftBorder geom.PolygonSet) bool {
	if raftBorder.Empty() {
		return false
	}
	return geom.SignedDistance(raftBorder, pt) < 0
}
