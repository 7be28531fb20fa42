package kvv_test

import (
	"context"
	"errors"
	"testing"

	"github.com/influxdata/gossipdht/buffer"
	"github.com/influxdata/gossipdht/buffer/kvv"
	"github.com/influxdata/gossipdht/inmem"
	platformerrors "github.com/influxdata/gossipdht/kit/platform/errors"
	"github.com/influxdata/gossipdht/kv"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type countingStore struct {
	kv.Store
	updates int
}

func (s *countingStore) Update(ctx context.Context, fn func(kv.Tx) error) error {
	s.updates++
	return s.Store.Update(ctx, fn)
}

type failingTable struct {
	kvv.MultiTable
	err error
}

func (f failingTable) Put(kv.Tx, []byte, *kvv.RawValue) error {
	return f.err
}

// rowsTable serves a fixed set of rows from GetMulti.
type rowsTable struct {
	kvv.MultiTable
	rows []kvv.Row
}

func (r rowsTable) GetMulti(kv.Tx, []byte) ([]kvv.Row, error) {
	return r.rows, nil
}

func newStringBuf(table kvv.MultiTable) *kvv.Buf[string, string] {
	return kvv.New[string, string](table, kvv.StringCodec{}, kvv.StringCodec{})
}

func seed(t *testing.T, store kv.Store, table kvv.MultiTable, key string, vals ...string) {
	t.Helper()
	buf := newStringBuf(table)
	for _, v := range vals {
		buf.Insert(key, v)
	}
	require.NoError(t, buffer.FlushAll(context.Background(), store, buf))
}

func get(t *testing.T, store kv.Store, buf *kvv.Buf[string, string], key string) []string {
	t.Helper()
	var out []string
	err := store.View(context.Background(), func(tx kv.Tx) error {
		var err error
		out, err = buf.Get(tx, key)
		return err
	})
	require.NoError(t, err)
	return out
}

func getErr(store kv.Store, buf *kvv.Buf[string, string], key string) error {
	return store.View(context.Background(), func(tx kv.Tx) error {
		_, err := buf.Get(tx, key)
		return err
	})
}

func TestBuf_GetNoScratch(t *testing.T) {
	store, table := inmem.NewKVStore(), kvv.NewBucketTable("t")
	seed(t, store, table, "k", "b", "a")

	buf := newStringBuf(table)
	require.True(t, buf.IsClean())
	require.Equal(t, []string{"a", "b"}, get(t, store, buf, "k"))
	require.Empty(t, get(t, store, buf, "other"))
}

func TestBuf_GetPartial(t *testing.T) {
	store, table := inmem.NewKVStore(), kvv.NewBucketTable("t")
	seed(t, store, table, "k", "A", "B")

	buf := newStringBuf(table)
	buf.Delete("k", "A")
	buf.Insert("k", "C")
	require.False(t, buf.IsClean())
	require.Equal(t, []string{"B", "C"}, get(t, store, buf, "k"))
}

func TestBuf_GetDeleteAllThenInsert(t *testing.T) {
	store, table := inmem.NewKVStore(), kvv.NewBucketTable("t")
	seed(t, store, table, "k", "A", "B")

	buf := newStringBuf(table)
	buf.DeleteAll("k")
	buf.Insert("k", "C")

	// nothing has been flushed yet
	require.Equal(t, []string{"C"}, get(t, store, buf, "k"))
	require.Equal(t, []string{"A", "B"}, get(t, store, newStringBuf(table), "k"))

	require.NoError(t, buffer.FlushAll(context.Background(), store, buf))
	require.Equal(t, []string{"C"}, get(t, store, newStringBuf(table), "k"))
}

func TestBuf_DeleteAllDiscardsPendingChanges(t *testing.T) {
	store, table := inmem.NewKVStore(), kvv.NewBucketTable("t")
	seed(t, store, table, "k", "A")

	buf := newStringBuf(table)
	buf.Insert("k", "X")
	buf.DeleteAll("k")
	require.Empty(t, get(t, store, buf, "k"))

	buf.Delete("k", "A")
	buf.Insert("k", "Y")
	require.Equal(t, []string{"Y"}, get(t, store, buf, "k"))

	require.NoError(t, buffer.FlushAll(context.Background(), store, buf))
	require.Equal(t, []string{"Y"}, get(t, store, newStringBuf(table), "k"))
}

func TestBuf_LastWriteWins(t *testing.T) {
	store, table := inmem.NewKVStore(), kvv.NewBucketTable("t")
	seed(t, store, table, "k", "A")

	buf := newStringBuf(table)
	buf.Delete("k", "A")
	buf.Insert("k", "A")
	buf.Insert("k", "B")
	buf.Delete("k", "B")
	require.Equal(t, []string{"A"}, get(t, store, buf, "k"))

	require.NoError(t, buffer.FlushAll(context.Background(), store, buf))
	require.Equal(t, []string{"A"}, get(t, store, newStringBuf(table), "k"))
}

func TestBuf_FlushCleanIsNoop(t *testing.T) {
	store := &countingStore{Store: inmem.NewKVStore()}
	table := kvv.NewBucketTable("t")

	buf := newStringBuf(table)
	require.NoError(t, buf.FlushToTxn(nil))
	require.NoError(t, buffer.FlushAll(context.Background(), store, buf, newStringBuf(table)))
	require.Equal(t, 0, store.updates)

	buf.Insert("k", "v")
	require.NoError(t, buffer.FlushAll(context.Background(), store, buf))
	require.Equal(t, 1, store.updates)
}

func TestBuf_FlushThenFreshRead(t *testing.T) {
	store, table := inmem.NewKVStore(), kvv.NewBucketTable("t")
	seed(t, store, table, "k", "A")

	buf := newStringBuf(table)
	buf.Insert("k", "C")
	buf.Insert("j", "D")
	buf.Delete("k", "missing")
	require.NoError(t, buffer.FlushAll(context.Background(), store, buf))

	fresh := newStringBuf(table)
	require.Equal(t, []string{"A", "C"}, get(t, store, fresh, "k"))
	require.Equal(t, []string{"D"}, get(t, store, fresh, "j"))

	// flushing does not reset the buffer
	require.False(t, buf.IsClean())
	buf.Clear()
	require.True(t, buf.IsClean())
}

func TestBuf_FlushAllIsAtomic(t *testing.T) {
	store, table := inmem.NewKVStore(), kvv.NewBucketTable("t")
	seed(t, store, table, "k", "A")

	first := newStringBuf(table)
	first.DeleteAll("k")
	first.Insert("k", "B")

	boom := errors.New("disk on fire")
	second := newStringBuf(failingTable{MultiTable: kvv.NewBucketTable("u"), err: boom})
	second.Insert("x", "y")

	err := buffer.FlushAll(context.Background(), store, first, second)
	require.ErrorIs(t, err, boom)
	require.Equal(t, platformerrors.EInternal, platformerrors.ErrorCode(err))
	require.Equal(t, "kvv/FlushToTxn", platformerrors.ErrorOp(err))

	require.Equal(t, []string{"A"}, get(t, store, newStringBuf(table), "k"))
}

func TestBuf_InvalidValue(t *testing.T) {
	store, table := inmem.NewKVStore(), kvv.NewBucketTable("t")
	key, err := kvv.StringCodec{}.Encode("k")
	require.NoError(t, err)

	require.NoError(t, store.Update(context.Background(), func(tx kv.Tx) error {
		return table.Put(tx, key, kvv.Text("not a blob"))
	}))

	err = getErr(store, newStringBuf(table), "k")
	require.True(t, kvv.IsInvalidValue(err), "expected invalid value, got %v", err)
	require.Equal(t, platformerrors.EInvalid, platformerrors.ErrorCode(err))

	// scratch does not hide a corrupt key unless it was deleted outright
	buf := newStringBuf(table)
	buf.Insert("k", "v")
	require.True(t, kvv.IsInvalidValue(getErr(store, buf, "k")))
	buf.DeleteAll("k")
	require.NoError(t, getErr(store, buf, "k"))
}

func TestBuf_GetSkipsKeyWithoutValue(t *testing.T) {
	key, err := kvv.StringCodec{}.Encode("k")
	require.NoError(t, err)
	a, err := kvv.StringCodec{}.Encode("A")
	require.NoError(t, err)

	table := rowsTable{
		MultiTable: kvv.NewBucketTable("t"),
		rows: []kvv.Row{
			{Key: key},
			{Key: key, Value: kvv.Blob(a)},
		},
	}
	require.Equal(t, []string{"A"}, get(t, inmem.NewKVStore(), newStringBuf(table), "k"))

	table.rows = []kvv.Row{{Key: key}, {Key: key, Value: kvv.Integer(1)}}
	require.True(t, kvv.IsInvalidValue(getErr(inmem.NewKVStore(), newStringBuf(table), "k")))
}

func TestBuf_DecodeError(t *testing.T) {
	good, err := kvv.StringCodec{}.Encode("v")
	require.NoError(t, err)

	tests := []struct {
		name string
		data []byte
	}{
		{
			name: "wrong msgpack type",
			data: []byte{0xcc, 0x01},
		},
		{
			name: "truncated",
			data: good[:1],
		},
		{
			name: "trailing bytes",
			data: append(append([]byte{}, good...), 0x00),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, table := inmem.NewKVStore(), kvv.NewBucketTable("t")
			key, err := kvv.StringCodec{}.Encode("k")
			require.NoError(t, err)
			require.NoError(t, store.Update(context.Background(), func(tx kv.Tx) error {
				return table.Put(tx, key, kvv.Blob(tt.data))
			}))

			err = getErr(store, newStringBuf(table), "k")
			require.Error(t, err)
			require.False(t, kvv.IsInvalidValue(err))
			require.Equal(t, platformerrors.EUnprocessableEntity, platformerrors.ErrorCode(err))
		})
	}
}

func TestBuf_Clone(t *testing.T) {
	store, table := inmem.NewKVStore(), kvv.NewBucketTable("t")
	seed(t, store, table, "k", "A")

	buf := newStringBuf(table)
	buf.Insert("k", "B")

	clone := buf.Clone()
	clone.Delete("k", "A")
	buf.Insert("k", "C")

	require.Equal(t, []string{"A", "B", "C"}, get(t, store, buf, "k"))
	require.Equal(t, []string{"B"}, get(t, store, clone, "k"))
	require.Same(t, buf.Table(), clone.Table())
}

func TestBuf_ClearAll(t *testing.T) {
	store, table := inmem.NewKVStore(), kvv.NewBucketTable("t")
	seed(t, store, table, "k", "A")
	seed(t, store, table, "j", "B")

	buf := newStringBuf(table)
	buf.Insert("k", "C")
	require.NoError(t, store.Update(context.Background(), buf.ClearAll))
	require.True(t, buf.IsClean())

	require.Empty(t, get(t, store, buf, "k"))
	require.Empty(t, get(t, store, buf, "j"))
}

func TestBuf_Uint64Keys(t *testing.T) {
	store, table := inmem.NewKVStore(), kvv.NewBucketTable("t")

	buf := kvv.New[uint64, []byte](table, kvv.Uint64Codec{}, kvv.BytesCodec{})
	buf.Insert(300, []byte("b"))
	buf.Insert(300, []byte("a"))
	buf.Insert(2, []byte("z"))
	require.NoError(t, buffer.FlushAll(context.Background(), store, buf))

	fresh := kvv.New[uint64, []byte](table, kvv.Uint64Codec{}, kvv.BytesCodec{})
	require.NoError(t, store.View(context.Background(), func(tx kv.Tx) error {
		got, err := fresh.Get(tx, 300)
		require.NoError(t, err)
		require.Equal(t, [][]byte{[]byte("a"), []byte("b")}, got)

		got, err = fresh.Get(tx, 2)
		require.NoError(t, err)
		require.Equal(t, [][]byte{[]byte("z")}, got)
		return nil
	}))
}

func TestBuf_LogsFlush(t *testing.T) {
	store, table := inmem.NewKVStore(), kvv.NewBucketTable("t")
	core, logs := observer.New(zapcore.DebugLevel)

	buf := newStringBuf(table).WithLogger(zap.New(core))
	buf.DeleteAll("k")
	buf.Insert("k", "A")
	buf.Delete("j", "B")
	require.NoError(t, buffer.FlushAll(context.Background(), store, buf))

	entries := logs.FilterMessage("Flushed key").All()
	require.Len(t, entries, 2)

	// keys are flushed in order: "j" sorts before "k"
	j, k := entries[0].ContextMap(), entries[1].ContextMap()
	require.Equal(t, "t", j["table"])
	require.Equal(t, int64(1), j["deletes"])
	require.Equal(t, true, k["delete_all"])
	require.Equal(t, int64(1), k["inserts"])
}
