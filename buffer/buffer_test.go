package buffer_test

import (
	"context"
	"errors"
	"testing"

	"github.com/influxdata/gossipdht/buffer"
	"github.com/influxdata/gossipdht/inmem"
	"github.com/influxdata/gossipdht/kv"
	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/mocktracer"
	"github.com/stretchr/testify/require"
)

// putBuffer writes one key to a bucket when flushed.
type putBuffer struct {
	key, value string
	err        error
	flushed    int
}

func (b *putBuffer) IsClean() bool {
	return b.key == ""
}

func (b *putBuffer) FlushToTxn(tx kv.Tx) error {
	b.flushed++
	if b.IsClean() {
		return nil
	}
	bkt, err := tx.Bucket([]byte("buffer"))
	if err != nil {
		return err
	}
	if err := bkt.Put([]byte(b.key), []byte(b.value)); err != nil {
		return err
	}
	return b.err
}

func value(t *testing.T, s kv.Store, key string) string {
	t.Helper()
	var v []byte
	err := s.View(context.Background(), func(tx kv.Tx) error {
		bkt, err := tx.Bucket([]byte("buffer"))
		if err != nil {
			return err
		}
		v, err = bkt.Get([]byte(key))
		if kv.IsNotFound(err) {
			return nil
		}
		return err
	})
	require.NoError(t, err)
	return string(v)
}

func TestFlushAll(t *testing.T) {
	ctx := context.Background()

	t.Run("all clean", func(t *testing.T) {
		clean := &putBuffer{}
		require.NoError(t, buffer.FlushAll(ctx, inmem.NewKVStore(), clean, &putBuffer{}))
		require.Equal(t, 0, clean.flushed)
	})

	t.Run("in order", func(t *testing.T) {
		s := inmem.NewKVStore()
		a := &putBuffer{key: "k", value: "a"}
		b := &putBuffer{key: "k", value: "b"}
		clean := &putBuffer{}
		require.NoError(t, buffer.FlushAll(ctx, s, a, clean, b))
		require.Equal(t, "b", value(t, s, "k"))
		require.Equal(t, 1, clean.flushed)
	})

	t.Run("failure rolls back", func(t *testing.T) {
		s := inmem.NewKVStore()
		boom := errors.New("boom")
		a := &putBuffer{key: "a", value: "1"}
		b := &putBuffer{key: "b", value: "2", err: boom}
		c := &putBuffer{key: "c", value: "3"}

		require.ErrorIs(t, buffer.FlushAll(ctx, s, a, b, c), boom)
		require.Equal(t, 0, c.flushed)
		require.Equal(t, "", value(t, s, "a"))
		require.Equal(t, "", value(t, s, "b"))
	})
}

func TestFlushAll_Span(t *testing.T) {
	tracer := mocktracer.New()
	old := opentracing.GlobalTracer()
	opentracing.SetGlobalTracer(tracer)
	defer opentracing.SetGlobalTracer(old)

	boom := errors.New("boom")
	err := buffer.FlushAll(context.Background(), inmem.NewKVStore(), &putBuffer{key: "a", value: "1", err: boom})
	require.ErrorIs(t, err, boom)

	spans := tracer.FinishedSpans()
	require.Len(t, spans, 1)
	require.Contains(t, spans[0].OperationName, "buffer.FlushAll")

	var logged bool
	for _, l := range spans[0].Logs() {
		for _, f := range l.Fields {
			if f.Key == "error" && f.ValueString == "boom" {
				logged = true
			}
		}
	}
	require.True(t, logged)
}
