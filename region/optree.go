package region

import (
	"sync"

	"github.com/google/btree"
	"github.com/influxdata/gossipdht"
	"github.com/influxdata/gossipdht/coords"
)

type opItem struct {
	at   coords.SpacetimeCoords
	hash gossipdht.OpHash
	size uint32
}

func opItemLess(a, b opItem) bool {
	if a.at.Time != b.at.Time {
		return a.at.Time < b.at.Time
	}
	if a.at.Space != b.at.Space {
		return a.at.Space < b.at.Space
	}
	return a.hash < b.hash
}

// OpTree is an in-memory Tree[Data] over a set of ops. Ops are indexed by
// time so a lookup only visits ops inside the time bounds.
//
// OpTree is safe for concurrent use; lookups may run in parallel.
type OpTree struct {
	topo *coords.Topology

	mu  sync.RWMutex
	ops *btree.BTreeG[opItem]
}

var _ Tree[Data] = (*OpTree)(nil)

// NewOpTree returns an empty tree which places ops using topo.
func NewOpTree(topo *coords.Topology) *OpTree {
	return &OpTree{
		topo: topo,
		ops:  btree.NewG(32, opItemLess),
	}
}

func (t *OpTree) item(op gossipdht.OpData) opItem {
	return opItem{
		at:   t.topo.SpacetimeCoords(op.Loc, op.Timestamp),
		hash: op.Hash,
		size: op.Size,
	}
}

// Add inserts op. It reports false if the op was already present.
func (t *OpTree) Add(op gossipdht.OpData) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, replaced := t.ops.ReplaceOrInsert(t.item(op))
	return !replaced
}

// Remove deletes op. It reports false if the op was not present.
func (t *OpTree) Remove(op gossipdht.OpData) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, found := t.ops.Delete(t.item(op))
	return found
}

// Len returns the number of ops in the tree.
func (t *OpTree) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.ops.Len()
}

// Lookup sums the data of every op within b.
func (t *OpTree) Lookup(b RegionBounds) Data {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var d Data
	pivot := opItem{at: coords.SpacetimeCoords{Time: b.T[0]}}
	t.ops.AscendGreaterOrEqual(pivot, func(it opItem) bool {
		if it.at.Time > b.T[1] {
			return false
		}
		if b.Contains(it.at) {
			d = d.Add(Data{Count: 1, Size: it.size, Hash: it.hash})
		}
		return true
	})
	return d
}
