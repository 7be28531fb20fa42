// Package region composes space and time segments into rectangles of the
// space x time plane and pairs them with aggregated op data, which is what
// peers compare when negotiating gossip ranges.
package region

// Tree answers "what data summarizes this coordinate range" queries.
//
// Lookup must be deterministic for fixed bounds and fixed tree contents.
// The data of a sub-range is not derivable from its parent in general, so
// every split asks the tree again.
type Tree[T any] interface {
	Lookup(b RegionBounds) T
}

// TreeFunc adapts an ordinary function to a Tree.
type TreeFunc[T any] func(b RegionBounds) T

// Lookup calls f(b).
func (f TreeFunc[T]) Lookup(b RegionBounds) T { return f(b) }

// Region is a rectangle of the space x time plane together with the data
// the tree holds for it.
type Region[T any] struct {
	Coords RegionCoords
	Data   T
}

// New looks up the data for c and returns the resulting region.
func New[T any](c RegionCoords, tree Tree[T]) Region[T] {
	return Region[T]{Coords: c, Data: tree.Lookup(c.ToBounds())}
}

// Split halves the region along one axis (see RegionCoords.Halve) and
// looks up fresh data for both halves. ok is false when the region is a
// single quantum on both axes.
func (r Region[T]) Split(tree Tree[T]) (lo, hi Region[T], ok bool) {
	c1, c2, ok := r.Coords.Halve()
	if !ok {
		return lo, hi, false
	}
	return New(c1, tree), New(c2, tree), true
}

// Quadrants splits the region in two along space and then each half in
// two along time, giving the four 2x2 children in the order
// (space lo, time lo), (space lo, time hi), (space hi, time lo),
// (space hi, time hi). ok is false if either axis is a leaf.
func (r Region[T]) Quadrants(tree Tree[T]) (q [4]Region[T], ok bool) {
	s1, s2, ok := r.Coords.HalveSpace()
	if !ok {
		return q, false
	}
	i := 0
	for _, s := range []RegionCoords{s1, s2} {
		t1, t2, ok := s.HalveTime()
		if !ok {
			return q, false
		}
		q[i], q[i+1] = New(t1, tree), New(t2, tree)
		i += 2
	}
	return q, true
}
