// Package buffer commits in-memory buffers of pending writes to a kv.Store.
package buffer

import (
	"context"

	"github.com/influxdata/gossipdht/kit/tracing"
	"github.com/influxdata/gossipdht/kv"
)

// BufferedStore is a buffer of pending writes that knows how to apply them
// inside a write transaction.
type BufferedStore interface {
	// IsClean reports whether there is nothing to write.
	IsClean() bool
	// FlushToTxn applies the pending writes through tx.
	FlushToTxn(tx kv.Tx) error
}

// FlushAll writes every buffer to store in a single update, in the order
// given. Nothing is written when every buffer is clean. The first failure
// aborts the update, so either all buffers land or none do. Buffers are
// not cleared.
func FlushAll(ctx context.Context, store kv.Store, bufs ...BufferedStore) error {
	dirty := false
	for _, b := range bufs {
		if !b.IsClean() {
			dirty = true
			break
		}
	}
	if !dirty {
		return nil
	}

	span, ctx := tracing.StartSpanFromContext(ctx)
	defer span.Finish()

	return tracing.LogError(span, store.Update(ctx, func(tx kv.Tx) error {
		for _, b := range bufs {
			if err := b.FlushToTxn(tx); err != nil {
				return err
			}
		}
		return nil
	}))
}
