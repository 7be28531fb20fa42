package testing

import (
	"context"
	"errors"
	"testing"

	"github.com/influxdata/gossipdht/kv"
	"github.com/stretchr/testify/require"
)

var kvBucket = []byte("conformance")

type kvStoreF func(
	init func(*testing.T) (kv.Store, func()),
	t *testing.T,
)

// KVStore tests all the kv.Store functions.
func KVStore(
	init func(*testing.T) (kv.Store, func()),
	t *testing.T,
) {
	tests := []struct {
		name string
		fn   kvStoreF
	}{
		{
			name: "PutGet",
			fn:   KVPutGet,
		},
		{
			name: "Delete",
			fn:   KVDelete,
		},
		{
			name: "Cursor",
			fn:   KVCursor,
		},
		{
			name: "ViewNotWritable",
			fn:   KVViewNotWritable,
		},
		{
			name: "UpdateRollback",
			fn:   KVUpdateRollback,
		},
		{
			name: "MissingBucket",
			fn:   KVMissingBucket,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(init, t)
		})
	}
}

func putPairs(t *testing.T, s kv.Store, pairs ...kv.Pair) {
	t.Helper()
	err := s.Update(context.Background(), func(tx kv.Tx) error {
		b, err := tx.Bucket(kvBucket)
		if err != nil {
			return err
		}
		for _, p := range pairs {
			if err := b.Put(p.Key, p.Value); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func getValue(t *testing.T, s kv.Store, key []byte) ([]byte, error) {
	t.Helper()
	var val []byte
	err := s.View(context.Background(), func(tx kv.Tx) error {
		b, err := tx.Bucket(kvBucket)
		if err != nil {
			return err
		}
		v, err := b.Get(key)
		if err != nil {
			return err
		}
		val = append([]byte(nil), v...)
		return nil
	})
	return val, err
}

// KVPutGet checks that written values are visible to later views.
func KVPutGet(
	init func(*testing.T) (kv.Store, func()),
	t *testing.T,
) {
	s, done := init(t)
	defer done()

	putPairs(t, s,
		kv.Pair{Key: []byte("a"), Value: []byte("1")},
		kv.Pair{Key: []byte("b"), Value: []byte("2")},
	)
	putPairs(t, s, kv.Pair{Key: []byte("a"), Value: []byte("3")})

	v, err := getValue(t, s, []byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("3"), v)

	v, err = getValue(t, s, []byte("b"))
	require.NoError(t, err)
	require.Equal(t, []byte("2"), v)

	_, err = getValue(t, s, []byte("c"))
	require.True(t, kv.IsNotFound(err), "expected not found, got %v", err)
}

// KVDelete checks that deleted keys are gone and deleting a missing key is
// not an error.
func KVDelete(
	init func(*testing.T) (kv.Store, func()),
	t *testing.T,
) {
	s, done := init(t)
	defer done()

	putPairs(t, s, kv.Pair{Key: []byte("a"), Value: []byte("1")})

	err := s.Update(context.Background(), func(tx kv.Tx) error {
		b, err := tx.Bucket(kvBucket)
		if err != nil {
			return err
		}
		if err := b.Delete([]byte("a")); err != nil {
			return err
		}
		return b.Delete([]byte("missing"))
	})
	require.NoError(t, err)

	_, err = getValue(t, s, []byte("a"))
	require.True(t, kv.IsNotFound(err), "expected not found, got %v", err)
}

// KVCursor checks ordered iteration in both directions and seeking.
func KVCursor(
	init func(*testing.T) (kv.Store, func()),
	t *testing.T,
) {
	s, done := init(t)
	defer done()

	putPairs(t, s,
		kv.Pair{Key: []byte("c"), Value: []byte("3")},
		kv.Pair{Key: []byte("a"), Value: []byte("1")},
		kv.Pair{Key: []byte("bb"), Value: []byte("2")},
	)

	err := s.View(context.Background(), func(tx kv.Tx) error {
		b, err := tx.Bucket(kvBucket)
		if err != nil {
			return err
		}
		c, err := b.Cursor()
		if err != nil {
			return err
		}

		var keys []string
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			keys = append(keys, string(k))
		}
		require.Equal(t, []string{"a", "bb", "c"}, keys)

		keys = keys[:0]
		for k, _ := c.Last(); k != nil; k, _ = c.Prev() {
			keys = append(keys, string(k))
		}
		require.Equal(t, []string{"c", "bb", "a"}, keys)

		k, v := c.Seek([]byte("b"))
		require.Equal(t, []byte("bb"), k)
		require.Equal(t, []byte("2"), v)

		k, v = c.Next()
		require.Equal(t, []byte("c"), k)
		require.Equal(t, []byte("3"), v)

		k, _ = c.Next()
		require.Nil(t, k)

		k, _ = c.Seek([]byte("d"))
		require.Nil(t, k)
		return nil
	})
	require.NoError(t, err)
}

// KVViewNotWritable checks that a view rejects writes.
func KVViewNotWritable(
	init func(*testing.T) (kv.Store, func()),
	t *testing.T,
) {
	s, done := init(t)
	defer done()

	putPairs(t, s, kv.Pair{Key: []byte("a"), Value: []byte("1")})

	err := s.View(context.Background(), func(tx kv.Tx) error {
		b, err := tx.Bucket(kvBucket)
		if err != nil {
			return err
		}
		if err := b.Put([]byte("x"), []byte("y")); !errors.Is(err, kv.ErrTxNotWritable) {
			t.Fatalf("expected ErrTxNotWritable from Put, got %v", err)
		}
		if err := b.Delete([]byte("a")); !errors.Is(err, kv.ErrTxNotWritable) {
			t.Fatalf("expected ErrTxNotWritable from Delete, got %v", err)
		}
		return nil
	})
	require.NoError(t, err)

	v, err := getValue(t, s, []byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("1"), v)
}

// KVUpdateRollback checks that an update whose function fails applies none
// of its writes.
func KVUpdateRollback(
	init func(*testing.T) (kv.Store, func()),
	t *testing.T,
) {
	s, done := init(t)
	defer done()

	putPairs(t, s, kv.Pair{Key: []byte("a"), Value: []byte("1")})

	boom := errors.New("boom")
	err := s.Update(context.Background(), func(tx kv.Tx) error {
		b, err := tx.Bucket(kvBucket)
		if err != nil {
			return err
		}
		if err := b.Put([]byte("a"), []byte("2")); err != nil {
			return err
		}
		if err := b.Put([]byte("b"), []byte("2")); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	v, err := getValue(t, s, []byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("1"), v)

	_, err = getValue(t, s, []byte("b"))
	require.True(t, kv.IsNotFound(err), "expected not found, got %v", err)
}

// KVMissingBucket checks that a view of a bucket nobody wrote to is empty.
func KVMissingBucket(
	init func(*testing.T) (kv.Store, func()),
	t *testing.T,
) {
	s, done := init(t)
	defer done()

	err := s.View(context.Background(), func(tx kv.Tx) error {
		b, err := tx.Bucket([]byte("never-written"))
		if err != nil {
			return err
		}
		if _, err := b.Get([]byte("a")); !kv.IsNotFound(err) {
			t.Fatalf("expected not found, got %v", err)
		}
		c, err := b.Cursor()
		if err != nil {
			return err
		}
		k, _ := c.First()
		require.Nil(t, k)
		return nil
	})
	require.NoError(t, err)
}
