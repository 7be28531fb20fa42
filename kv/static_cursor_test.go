package kv_test

import (
	"testing"

	"github.com/influxdata/gossipdht/kv"
	"github.com/stretchr/testify/require"
)

func TestStaticCursor(t *testing.T) {
	c := kv.NewStaticCursor([]kv.Pair{
		{Key: []byte("c"), Value: []byte("3")},
		{Key: []byte("a"), Value: []byte("1")},
		{Key: []byte("b"), Value: []byte("2")},
	})

	k, v := c.First()
	require.Equal(t, "a", string(k))
	require.Equal(t, "1", string(v))

	k, _ = c.Next()
	require.Equal(t, "b", string(k))
	k, _ = c.Next()
	require.Equal(t, "c", string(k))
	k, _ = c.Next()
	require.Nil(t, k)
	k, _ = c.Prev()
	require.Equal(t, "c", string(k), "stepping back from the end returns the last pair")

	k, _ = c.Seek([]byte("bb"))
	require.Equal(t, "c", string(k))
	k, _ = c.Seek([]byte("d"))
	require.Nil(t, k)

	k, _ = c.Last()
	require.Equal(t, "c", string(k))
	k, _ = c.First()
	require.Equal(t, "a", string(k))
	k, _ = c.Prev()
	require.Nil(t, k)
}

func TestIsNotFound(t *testing.T) {
	require.True(t, kv.IsNotFound(kv.ErrKeyNotFound))
	require.False(t, kv.IsNotFound(kv.ErrTxNotWritable))
	require.False(t, kv.IsNotFound(nil))
}
