package propagate

import (
	"sync"
	"sync/atomic"

	"github.com/bits-and-blooms/bitset"
)

// elementPool is a type-safe wrapper around sync.Pool specialised for
// *SupportElement, tracking allocation/live counters for diagnostics —
// directly grounded on github.com/gaissmai/bart's pool.go (same
// structure: embedded sync.Pool, New closure bumping an atomic counter,
// Get/Put pair that clears state on return).
type elementPool struct {
	sync.Pool

	totalAllocated atomic.Int64
	currentLive atomic.Int64
}

func newElementPool() *elementPool {
	p := &elementPool{}
	p.New = func() any {
		p.totalAllocated.Add(1)
		return new(SupportElement)
	}
	return p
}

func (p *elementPool) Get() *SupportElement {
	if p == nil {
		return new(SupportElement)
	}
	p.currentLive.Add(1)
	return p.Pool.Get().(*SupportElement)
}

func (p *elementPool) Put(e *SupportElement) {
	if p == nil {
		return
	}
	p.currentLive.Add(-1)
	e.reset()
	p.Pool.Put(e)
}

// Stats reports live and total-ever-allocated element counts.
func (p *elementPool) Stats() (live, total int64) {
	if p == nil {
		return 0, 0
	}
	return p.currentLive.Load(), p.totalAllocated.Load()
}

// Layer owns one arena of elements for a single layer index. Elements
// are appended during seeding/increase and only ever mutated by the
// pass that owns that layer; cross-layer reads (parent lookups) are
// read-only.
type Layer struct {
	Elements []*SupportElement
}

// Add appends e to the layer and returns its index.
func (l *Layer) Add(e *SupportElement) ElementIndex {
	l.Elements = append(l.Elements, e)
	return ElementIndex(len(l.Elements) - 1)
}

// Get returns the element at idx, or nil if out of range.
func (l *Layer) Get(idx ElementIndex) *SupportElement {
	if idx < 0 || int(idx) >= len(l.Elements) {
		return nil
	}
	return l.Elements[idx]
}

// Compact removes every Deleted element, returning the mapping from old
// to new indices (old index -> new index, or -1 if removed) so callers
// can remap Parents references. Deleted indices are marked into a
// bitset first, then tested in a single linear pass.
func (l *Layer) Compact() []ElementIndex {
	deleted := bitset.New(uint(len(l.Elements)))
	for i, e := range l.Elements {
		if e.Deleted {
			deleted.Set(uint(i))
		}
	}

	remap := make([]ElementIndex, len(l.Elements))
	kept := l.Elements[:0]
	for i, e := range l.Elements {
		if deleted.Test(uint(i)) {
			remap[i] = -1
			continue
		}
		remap[i] = ElementIndex(len(kept))
		kept = append(kept, e)
	}
	l.Elements = kept
	return remap
}

// RemapParents applies remap (as produced by the layer above's Compact)
// to every element's Parents list, dropping now-invalid references.
func (l *Layer) RemapParents(remap []ElementIndex) {
	for _, e := range l.Elements {
		out := e.Parents[:0]
		for _, p := range e.Parents {
			if int(p) < len(remap) && remap[p] >= 0 {
				out = append(out, remap[p])
			}
		}
		e.Parents = out
	}
}

// Arena owns one Layer per printed/raft layer index, offset so negative
// (raft) indices are representable.
type Arena struct {
	pool *elementPool
	layers []Layer // index 0 == raftOffset layers below layer 0
	raftOffset int
}

// NewArena constructs an arena spanning layers [-raftLayers, topLayer].
func NewArena(raftLayers, topLayer int) *Arena {
	n := raftLayers + topLayer + 1
	if n < 1 {
		n = 1
	}
	return &Arena{
		pool: newElementPool(),
		layers: make([]Layer, n),
		raftOffset: raftLayers,
	}
}

func (a *Arena) slot(layer int) int {
	return layer + a.raftOffset
}

// Layer returns the arena's owned layer vector for layer index idx.
func (a *Arena) Layer(idx int) *Layer {
	s := a.slot(idx)
	if s < 0 || s >= len(a.layers) {
		return nil
	}
	return &a.layers[s]
}

// NewElement allocates (from the pool) a fresh element and appends it to
// layer idx, returning its index.
func (a *Arena) NewElement(idx int) (*SupportElement, ElementIndex) {
	e := a.pool.Get()
	l := a.Layer(idx)
	return e, l.Add(e)
}

// Release returns every element in every layer back to the pool and
// empties the layers.
// Call after a run completes (or is cancelled) to let the pool recycle
// memory for the next run, mirroring bart's pool.Put discipline.
func (a *Arena) Release() {
	for i := range a.layers {
		for _, e := range a.layers[i].Elements {
			a.pool.Put(e)
		}
		a.layers[i].Elements = nil
	}
}

// Stats exposes the underlying pool's live/allocated counters.
func (a *Arena) Stats() (live, total int64) {
	return a.pool.Stats()
}
