// Package kvv implements a scratch buffer of pending changes layered in
// front of a persisted multi-value table. Reads merge the pending changes
// with what is persisted; a flush writes them in one caller supplied
// transaction.
package kvv

import (
	"slices"

	"github.com/google/btree"
	"github.com/influxdata/gossipdht/kv"
	"go.uber.org/zap"
)

type opKind uint8

const (
	opInsert opKind = iota + 1
	opDelete
)

type valueOp[V any] struct {
	value V
	op    opKind
}

// valuesDelta holds the pending changes to the values of one key. When
// deleteAll is set the persisted values of the key are gone and ops holds
// only what happened after.
type valuesDelta[V any] struct {
	deleteAll bool
	ops       *btree.BTreeG[valueOp[V]]
}

type keyDelta[K, V any] struct {
	key   K
	delta *valuesDelta[V]
}

// Buf buffers inserts and deletes of the values of a multi-value table.
// Keys and values are ordered by their codecs.
//
// A Buf is not safe for concurrent use. It is owned by one logical
// transaction from creation until it is flushed, and flushing does not
// reset it: call Clear before reusing it.
type Buf[K, V any] struct {
	table MultiTable
	keys  Codec[K]
	vals  Codec[V]

	scratch *btree.BTreeG[keyDelta[K, V]]
	log     *zap.Logger
}

// New returns an empty buffer in front of table.
func New[K, V any](table MultiTable, keys Codec[K], vals Codec[V]) *Buf[K, V] {
	b := &Buf[K, V]{
		table: table,
		keys:  keys,
		vals:  vals,
		log:   zap.NewNop(),
	}
	b.scratch = b.newScratch()
	return b
}

// WithLogger sets the logger used to report flushes.
func (b *Buf[K, V]) WithLogger(log *zap.Logger) *Buf[K, V] {
	b.log = log.With(zap.String("table", b.table.Name()))
	return b
}

// Table returns the table the buffer writes to.
func (b *Buf[K, V]) Table() MultiTable {
	return b.table
}

func (b *Buf[K, V]) newScratch() *btree.BTreeG[keyDelta[K, V]] {
	return btree.NewG(8, func(x, y keyDelta[K, V]) bool {
		return b.keys.Compare(x.key, y.key) < 0
	})
}

func (b *Buf[K, V]) newOps() *btree.BTreeG[valueOp[V]] {
	return btree.NewG(8, func(x, y valueOp[V]) bool {
		return b.vals.Compare(x.value, y.value) < 0
	})
}

func (b *Buf[K, V]) delta(k K) *valuesDelta[V] {
	if kd, ok := b.scratch.Get(keyDelta[K, V]{key: k}); ok {
		return kd.delta
	}
	d := &valuesDelta[V]{ops: b.newOps()}
	b.scratch.ReplaceOrInsert(keyDelta[K, V]{key: k, delta: d})
	return d
}

// Insert adds v to the values of k.
func (b *Buf[K, V]) Insert(k K, v V) {
	b.delta(k).ops.ReplaceOrInsert(valueOp[V]{value: v, op: opInsert})
}

// Delete removes v from the values of k.
func (b *Buf[K, V]) Delete(k K, v V) {
	b.delta(k).ops.ReplaceOrInsert(valueOp[V]{value: v, op: opDelete})
}

// DeleteAll removes every value of k, discarding the pending changes to
// k made so far.
func (b *Buf[K, V]) DeleteAll(k K) {
	b.scratch.ReplaceOrInsert(keyDelta[K, V]{
		key:   k,
		delta: &valuesDelta[V]{deleteAll: true, ops: b.newOps()},
	})
}

// IsClean reports whether the buffer holds no pending changes.
func (b *Buf[K, V]) IsClean() bool {
	return b.scratch.Len() == 0
}

// Get returns the values of k as they will be once the buffer is flushed,
// ordered by the value codec. Persisted values are read through tx.
func (b *Buf[K, V]) Get(tx kv.Tx, k K) ([]V, error) {
	kd, ok := b.scratch.Get(keyDelta[K, V]{key: k})
	if !ok {
		out, err := b.persisted(tx, k)
		if err != nil {
			return nil, err
		}
		slices.SortFunc(out, b.vals.Compare)
		return out, nil
	}

	var out []V
	kd.delta.ops.Ascend(func(o valueOp[V]) bool {
		if o.op == opInsert {
			out = append(out, o.value)
		}
		return true
	})
	if kd.delta.deleteAll {
		return out, nil
	}

	persisted, err := b.persisted(tx, k)
	if err != nil {
		return nil, err
	}
	for _, v := range persisted {
		if !kd.delta.ops.Has(valueOp[V]{value: v}) {
			out = append(out, v)
		}
	}
	slices.SortFunc(out, b.vals.Compare)
	return out, nil
}

func (b *Buf[K, V]) persisted(tx kv.Tx, k K) ([]V, error) {
	key, err := b.keys.Encode(k)
	if err != nil {
		return nil, ErrEncodeValue(err)
	}
	rows, err := b.table.GetMulti(tx, key)
	if err != nil {
		return nil, ErrStorage("kvv/Get", err)
	}

	out := make([]V, 0, len(rows))
	for _, row := range rows {
		// A key held without a value contributes nothing.
		if row.Value == nil {
			continue
		}
		if row.Value.Type != RawBlob {
			return nil, ErrInvalidValue(b.table.Name(), row.Value)
		}
		v, err := b.vals.Decode(row.Value.Data)
		if err != nil {
			return nil, ErrDecodeValue(err)
		}
		out = append(out, v)
	}
	return out, nil
}

// FlushToTxn writes every pending change to the table through tx, keys in
// order. A clean buffer writes nothing. On error the flush stops and the
// caller must abort tx; the buffer keeps its pending changes either way.
func (b *Buf[K, V]) FlushToTxn(tx kv.Tx) error {
	if b.IsClean() {
		return nil
	}

	var err error
	b.scratch.Ascend(func(kd keyDelta[K, V]) bool {
		err = b.flushKey(tx, kd)
		return err == nil
	})
	return err
}

func (b *Buf[K, V]) flushKey(tx kv.Tx, kd keyDelta[K, V]) error {
	key, err := b.keys.Encode(kd.key)
	if err != nil {
		return ErrEncodeValue(err)
	}

	if kd.delta.deleteAll {
		if err := b.table.DeleteAll(tx, key); err != nil {
			return ErrStorage("kvv/FlushToTxn", err)
		}
	}

	var inserts, deletes int
	kd.delta.ops.Ascend(func(o valueOp[V]) bool {
		var val []byte
		if val, err = b.vals.Encode(o.value); err != nil {
			err = ErrEncodeValue(err)
			return false
		}
		switch o.op {
		case opInsert:
			inserts++
			err = b.table.Put(tx, key, Blob(val))
		case opDelete:
			if kd.delta.deleteAll {
				return true
			}
			deletes++
			err = b.table.DeleteKV(tx, key, Blob(val))
		}
		if err != nil {
			err = ErrStorage("kvv/FlushToTxn", err)
			return false
		}
		return true
	})
	if err != nil {
		return err
	}

	b.log.Debug("Flushed key",
		zap.Binary("key", key),
		zap.Bool("delete_all", kd.delta.deleteAll),
		zap.Int("inserts", inserts),
		zap.Int("deletes", deletes))
	return nil
}

// Clear drops every pending change.
func (b *Buf[K, V]) Clear() {
	b.scratch = b.newScratch()
}

// ClearAll drops every pending change and removes every row of the table
// through tx.
func (b *Buf[K, V]) ClearAll(tx kv.Tx) error {
	b.Clear()
	if err := b.table.Clear(tx); err != nil {
		return ErrStorage("kvv/ClearAll", err)
	}
	return nil
}

// Clone returns a buffer over the same table holding a copy of the pending
// changes. Changes to either buffer are not seen by the other.
func (b *Buf[K, V]) Clone() *Buf[K, V] {
	c := &Buf[K, V]{
		table: b.table,
		keys:  b.keys,
		vals:  b.vals,
		log:   b.log,
	}
	c.scratch = c.newScratch()
	b.scratch.Ascend(func(kd keyDelta[K, V]) bool {
		c.scratch.ReplaceOrInsert(keyDelta[K, V]{
			key: kd.key,
			delta: &valuesDelta[V]{
				deleteAll: kd.delta.deleteAll,
				ops:       kd.delta.ops.Clone(),
			},
		})
		return true
	})
	return c
}
