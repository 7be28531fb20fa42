package inmem

import (
	"bytes"
	"context"
	"sync"

	"github.com/google/btree"
	"github.com/influxdata/gossipdht/kv"
)

var _ kv.Store = (*KVStore)(nil)

// KVStore is an in memory btree backed kv.Store.
//
// Update transactions work on copy-on-write clones of the buckets they
// touch and publish them only when the transaction function succeeds, so
// a failed update leaves the store exactly as it was.
type KVStore struct {
	mu      sync.RWMutex
	buckets map[string]*btree.BTreeG[item]
}

// NewKVStore creates an instance of a KVStore.
func NewKVStore() *KVStore {
	return &KVStore{
		buckets: map[string]*btree.BTreeG[item]{},
	}
}

// View opens up a transaction with a read lock.
func (s *KVStore) View(ctx context.Context, fn func(kv.Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&Tx{
		kv:       s,
		writable: false,
		ctx:      ctx,
	})
}

// Update opens up a transaction with a write lock. The buckets modified by
// fn replace the store's buckets only if fn returns nil.
func (s *KVStore) Update(ctx context.Context, fn func(kv.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := &Tx{
		kv:       s,
		writable: true,
		ctx:      ctx,
		dirty:    map[string]*btree.BTreeG[item]{},
	}
	if err := fn(tx); err != nil {
		return err
	}
	for name, bkt := range tx.dirty {
		s.buckets[name] = bkt
	}
	return nil
}

// Flush removes every bucket from the store.
func (s *KVStore) Flush(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buckets = map[string]*btree.BTreeG[item]{}
}

// Tx is an in memory transaction.
type Tx struct {
	kv       *KVStore
	writable bool
	ctx      context.Context
	// dirty holds the clones this transaction writes to.
	dirty map[string]*btree.BTreeG[item]
}

// Context returns the context for the transaction.
func (t *Tx) Context() context.Context {
	return t.ctx
}

// WithContext sets the context for the transaction.
func (t *Tx) WithContext(ctx context.Context) {
	t.ctx = ctx
}

// Bucket retrieves the bucket at the provided key. Writable transactions
// create the bucket if it does not exist.
func (t *Tx) Bucket(b []byte) (kv.Bucket, error) {
	name := string(b)
	if !t.writable {
		bkt, ok := t.kv.buckets[name]
		if !ok {
			bkt = btree.NewG(2, itemLess)
		}
		return &Bucket{btree: bkt}, nil
	}

	bkt, ok := t.dirty[name]
	if !ok {
		if orig, exists := t.kv.buckets[name]; exists {
			bkt = orig.Clone()
		} else {
			bkt = btree.NewG(2, itemLess)
		}
		t.dirty[name] = bkt
	}
	return &Bucket{btree: bkt, writable: true}, nil
}

type item struct {
	key   []byte
	value []byte
}

func itemLess(a, b item) bool {
	return bytes.Compare(a.key, b.key) < 0
}

// Bucket is a btree that implements kv.Bucket.
type Bucket struct {
	btree    *btree.BTreeG[item]
	writable bool
}

// Get retrieves the value at the provided key.
func (b *Bucket) Get(key []byte) ([]byte, error) {
	i, ok := b.btree.Get(item{key: key})
	if !ok {
		return nil, kv.ErrKeyNotFound
	}
	return i.value, nil
}

// Put sets the key value pair provided. The key and value are copied.
func (b *Bucket) Put(key []byte, value []byte) error {
	if !b.writable {
		return kv.ErrTxNotWritable
	}
	_, _ = b.btree.ReplaceOrInsert(item{
		key:   append([]byte(nil), key...),
		value: append([]byte{}, value...),
	})
	return nil
}

// Delete removes the key provided.
func (b *Bucket) Delete(key []byte) error {
	if !b.writable {
		return kv.ErrTxNotWritable
	}
	_, _ = b.btree.Delete(item{key: key})
	return nil
}

// Cursor returns a cursor over a snapshot of the bucket; writes made after
// the cursor was created are not visible through it.
func (b *Bucket) Cursor() (kv.Cursor, error) {
	if !b.writable {
		// nothing can write to the tree while a view is open, and Clone
		// is not safe for concurrent readers.
		return &Cursor{btree: b.btree, pos: posBeforeFirst}, nil
	}
	return &Cursor{btree: b.btree.Clone(), pos: posBeforeFirst}, nil
}

type cursorPos int

const (
	posValid cursorPos = iota
	posBeforeFirst
	posAfterLast
)

// Cursor walks a btree snapshot in key order.
type Cursor struct {
	btree *btree.BTreeG[item]
	cur   item
	pos   cursorPos
}

func (c *Cursor) set(i item, ok bool, otherwise cursorPos) ([]byte, []byte) {
	if !ok {
		c.pos = otherwise
		return nil, nil
	}
	c.cur, c.pos = i, posValid
	return i.key, i.value
}

// Seek moves to the first key greater than or equal to prefix.
func (c *Cursor) Seek(prefix []byte) ([]byte, []byte) {
	var (
		found item
		ok    bool
	)
	c.btree.AscendGreaterOrEqual(item{key: prefix}, func(i item) bool {
		found, ok = i, true
		return false
	})
	return c.set(found, ok, posAfterLast)
}

// First moves to the first key in the bucket.
func (c *Cursor) First() ([]byte, []byte) {
	i, ok := c.btree.Min()
	return c.set(i, ok, posAfterLast)
}

// Last moves to the last key in the bucket.
func (c *Cursor) Last() ([]byte, []byte) {
	i, ok := c.btree.Max()
	return c.set(i, ok, posBeforeFirst)
}

// Next moves to the key following the current one.
func (c *Cursor) Next() ([]byte, []byte) {
	switch c.pos {
	case posBeforeFirst:
		return c.First()
	case posAfterLast:
		return nil, nil
	}
	var (
		found item
		ok    bool
	)
	c.btree.AscendGreaterOrEqual(c.cur, func(i item) bool {
		if bytes.Equal(i.key, c.cur.key) {
			return true
		}
		found, ok = i, true
		return false
	})
	return c.set(found, ok, posAfterLast)
}

// Prev moves to the key preceding the current one.
func (c *Cursor) Prev() ([]byte, []byte) {
	switch c.pos {
	case posAfterLast:
		return c.Last()
	case posBeforeFirst:
		return nil, nil
	}
	var (
		found item
		ok    bool
	)
	c.btree.DescendLessOrEqual(c.cur, func(i item) bool {
		if bytes.Equal(i.key, c.cur.key) {
			return true
		}
		found, ok = i, true
		return false
	})
	return c.set(found, ok, posBeforeFirst)
}
