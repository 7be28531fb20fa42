package testing

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/influxdata/gossipdht/buffer/kvv"
	"github.com/influxdata/gossipdht/kv"
	"github.com/stretchr/testify/require"
)

var rowCmpOptions = cmp.Options{
	cmp.Transformer("Sort", func(in []kvv.Row) []kvv.Row {
		out := append([]kvv.Row(nil), in...) // Copy input to avoid mutating it
		sort.Slice(out, func(i, j int) bool {
			if out[i].Value.Type != out[j].Value.Type {
				return out[i].Value.Type < out[j].Value.Type
			}
			return string(out[i].Value.Data) < string(out[j].Value.Data)
		})
		return out
	}),
}

type multiTableF func(
	init func(*testing.T) (kv.Store, kvv.MultiTable, func()),
	t *testing.T,
)

// MultiTable tests all the kvv.MultiTable functions.
func MultiTable(
	init func(*testing.T) (kv.Store, kvv.MultiTable, func()),
	t *testing.T,
) {
	tests := []struct {
		name string
		fn   multiTableF
	}{
		{
			name: "PutGetMulti",
			fn:   MultiTablePutGetMulti,
		},
		{
			name: "DeleteKV",
			fn:   MultiTableDeleteKV,
		},
		{
			name: "DeleteAll",
			fn:   MultiTableDeleteAll,
		},
		{
			name: "Clear",
			fn:   MultiTableClear,
		},
		{
			name: "RawTypes",
			fn:   MultiTableRawTypes,
		},
		{
			name: "NotWritable",
			fn:   MultiTableNotWritable,
		},
		{
			name: "Rollback",
			fn:   MultiTableRollback,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(init, t)
		})
	}
}

func blobRows(key string, vals ...string) []kvv.Row {
	rows := make([]kvv.Row, 0, len(vals))
	for _, v := range vals {
		rows = append(rows, kvv.Row{Key: []byte(key), Value: kvv.Blob([]byte(v))})
	}
	return rows
}

func update(t *testing.T, s kv.Store, fn func(tx kv.Tx) error) {
	t.Helper()
	require.NoError(t, s.Update(context.Background(), fn))
}

func mustGetMulti(t *testing.T, s kv.Store, table kvv.MultiTable, key string) []kvv.Row {
	t.Helper()
	var rows []kvv.Row
	err := s.View(context.Background(), func(tx kv.Tx) error {
		var err error
		rows, err = table.GetMulti(tx, []byte(key))
		return err
	})
	require.NoError(t, err)
	return rows
}

func requireRows(t *testing.T, want, got []kvv.Row) {
	t.Helper()
	if len(want) == 0 && len(got) == 0 {
		return
	}
	if diff := cmp.Diff(want, got, rowCmpOptions); diff != "" {
		t.Fatalf("rows are different -want/+got\ndiff %s", diff)
	}
}

func putBlobs(table kvv.MultiTable, key string, vals ...string) func(tx kv.Tx) error {
	return func(tx kv.Tx) error {
		for _, v := range vals {
			if err := table.Put(tx, []byte(key), kvv.Blob([]byte(v))); err != nil {
				return err
			}
		}
		return nil
	}
}

// MultiTablePutGetMulti checks that values accumulate per key and that
// putting a present value is a no-op.
func MultiTablePutGetMulti(
	init func(*testing.T) (kv.Store, kvv.MultiTable, func()),
	t *testing.T,
) {
	s, table, done := init(t)
	defer done()

	update(t, s, putBlobs(table, "k1", "a", "b"))
	update(t, s, putBlobs(table, "k2", "c"))
	update(t, s, putBlobs(table, "k1", "a"))

	requireRows(t, blobRows("k1", "a", "b"), mustGetMulti(t, s, table, "k1"))
	requireRows(t, blobRows("k2", "c"), mustGetMulti(t, s, table, "k2"))
	requireRows(t, nil, mustGetMulti(t, s, table, "k3"))
}

// MultiTableDeleteKV checks single value removal.
func MultiTableDeleteKV(
	init func(*testing.T) (kv.Store, kvv.MultiTable, func()),
	t *testing.T,
) {
	s, table, done := init(t)
	defer done()

	update(t, s, putBlobs(table, "k1", "a", "b"))
	update(t, s, func(tx kv.Tx) error {
		if err := table.DeleteKV(tx, []byte("k1"), kvv.Blob([]byte("a"))); err != nil {
			return err
		}
		return table.DeleteKV(tx, []byte("k1"), kvv.Blob([]byte("missing")))
	})

	requireRows(t, blobRows("k1", "b"), mustGetMulti(t, s, table, "k1"))
}

// MultiTableDeleteAll checks that only the given key is emptied.
func MultiTableDeleteAll(
	init func(*testing.T) (kv.Store, kvv.MultiTable, func()),
	t *testing.T,
) {
	s, table, done := init(t)
	defer done()

	update(t, s, putBlobs(table, "k1", "a", "b"))
	update(t, s, putBlobs(table, "k10", "x"))
	update(t, s, putBlobs(table, "k2", "c"))
	update(t, s, func(tx kv.Tx) error {
		return table.DeleteAll(tx, []byte("k1"))
	})

	requireRows(t, nil, mustGetMulti(t, s, table, "k1"))
	requireRows(t, blobRows("k10", "x"), mustGetMulti(t, s, table, "k10"))
	requireRows(t, blobRows("k2", "c"), mustGetMulti(t, s, table, "k2"))
}

// MultiTableClear checks that every key is emptied.
func MultiTableClear(
	init func(*testing.T) (kv.Store, kvv.MultiTable, func()),
	t *testing.T,
) {
	s, table, done := init(t)
	defer done()

	update(t, s, putBlobs(table, "k1", "a", "b"))
	update(t, s, putBlobs(table, "k2", "c"))
	update(t, s, table.Clear)

	requireRows(t, nil, mustGetMulti(t, s, table, "k1"))
	requireRows(t, nil, mustGetMulti(t, s, table, "k2"))
}

// MultiTableRawTypes checks that the storage class of a value survives a
// round trip.
func MultiTableRawTypes(
	init func(*testing.T) (kv.Store, kvv.MultiTable, func()),
	t *testing.T,
) {
	s, table, done := init(t)
	defer done()

	vals := []*kvv.RawValue{
		kvv.Integer(-5),
		kvv.Text("five"),
		kvv.Blob([]byte{5}),
	}
	update(t, s, func(tx kv.Tx) error {
		for _, v := range vals {
			if err := table.Put(tx, []byte("k"), v); err != nil {
				return err
			}
		}
		return nil
	})

	want := make([]kvv.Row, 0, len(vals))
	for _, v := range vals {
		want = append(want, kvv.Row{Key: []byte("k"), Value: v})
	}
	rows := mustGetMulti(t, s, table, "k")
	requireRows(t, want, rows)

	for _, r := range rows {
		if r.Value.Type == kvv.RawInteger {
			i, ok := r.Value.Int64()
			require.True(t, ok)
			require.Equal(t, int64(-5), i)
		}
	}
}

// MultiTableNotWritable checks that writes are refused in a view.
func MultiTableNotWritable(
	init func(*testing.T) (kv.Store, kvv.MultiTable, func()),
	t *testing.T,
) {
	s, table, done := init(t)
	defer done()

	update(t, s, putBlobs(table, "k1", "a"))

	err := s.View(context.Background(), func(tx kv.Tx) error {
		if err := table.Put(tx, []byte("k1"), kvv.Blob([]byte("b"))); !errors.Is(err, kv.ErrTxNotWritable) {
			t.Fatalf("expected ErrTxNotWritable from Put, got %v", err)
		}
		if err := table.DeleteAll(tx, []byte("k1")); !errors.Is(err, kv.ErrTxNotWritable) {
			t.Fatalf("expected ErrTxNotWritable from DeleteAll, got %v", err)
		}
		return nil
	})
	require.NoError(t, err)

	requireRows(t, blobRows("k1", "a"), mustGetMulti(t, s, table, "k1"))
}

// MultiTableRollback checks that a failed update leaves the table as it was.
func MultiTableRollback(
	init func(*testing.T) (kv.Store, kvv.MultiTable, func()),
	t *testing.T,
) {
	s, table, done := init(t)
	defer done()

	update(t, s, putBlobs(table, "k1", "a"))

	boom := errors.New("boom")
	err := s.Update(context.Background(), func(tx kv.Tx) error {
		if err := putBlobs(table, "k1", "b")(tx); err != nil {
			return err
		}
		if err := table.DeleteKV(tx, []byte("k1"), kvv.Blob([]byte("a"))); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	requireRows(t, blobRows("k1", "a"), mustGetMulti(t, s, table, "k1"))
}
