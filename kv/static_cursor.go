package kv

import (
	"bytes"
	"sort"
)

// Pair is a struct for key value pairs.
type Pair struct {
	Key   []byte
	Value []byte
}

// staticCursor implements the Cursor interface for a slice of
// static key value pairs.
type staticCursor struct {
	idx   int
	pairs []Pair
}

// NewStaticCursor returns an instance of a StaticCursor. It
// destructively sorts the provided pairs to be in key ascending order.
func NewStaticCursor(pairs []Pair) Cursor {
	sort.Slice(pairs, func(i, j int) bool {
		return bytes.Compare(pairs[i].Key, pairs[j].Key) < 0
	})
	return &staticCursor{
		pairs: pairs,
	}
}

// Seek searches the slice for the first key that is greater than or
// equal to the prefix provided.
func (c *staticCursor) Seek(prefix []byte) ([]byte, []byte) {
	c.idx = sort.Search(len(c.pairs), func(i int) bool {
		return bytes.Compare(c.pairs[i].Key, prefix) >= 0
	})
	return c.get()
}

func (c *staticCursor) get() ([]byte, []byte) {
	if c.idx < 0 || c.idx >= len(c.pairs) {
		return nil, nil
	}
	p := c.pairs[c.idx]
	return p.Key, p.Value
}

// First retrieves the first element in the cursor.
func (c *staticCursor) First() ([]byte, []byte) {
	c.idx = 0
	return c.get()
}

// Last retrieves the last element in the cursor.
func (c *staticCursor) Last() ([]byte, []byte) {
	c.idx = len(c.pairs) - 1
	return c.get()
}

// Next retrieves the next entry in the cursor.
func (c *staticCursor) Next() ([]byte, []byte) {
	if c.idx < len(c.pairs) {
		c.idx++
	}
	return c.get()
}

// Prev retrieves the previous entry in the cursor.
func (c *staticCursor) Prev() ([]byte, []byte) {
	if c.idx >= 0 {
		c.idx--
	}
	return c.get()
}
