package sqlite

import (
	"context"
	"database/sql"
	"errors"

	sq "github.com/Masterminds/squirrel"
	"github.com/influxdata/gossipdht/kit/tracing"
	"github.com/influxdata/gossipdht/kv"
	"github.com/jmoiron/sqlx"
)

const kvTableName = "kv_entries"

var _ kv.Store = (*SqlStore)(nil)

// View runs fn in a read only transaction.
func (s *SqlStore) View(ctx context.Context, fn func(kv.Tx) error) error {
	span, ctx := tracing.StartSpanFromContext(ctx)
	defer span.Finish()

	s.Mu.RLock()
	defer s.Mu.RUnlock()

	tx, err := s.DB.BeginTxx(ctx, nil)
	if err != nil {
		return tracing.LogError(span, err)
	}
	defer tx.Rollback()

	return tracing.LogError(span, fn(&Tx{tx: tx, ctx: ctx}))
}

// Update runs fn in a write transaction which is committed only if fn
// returns nil.
func (s *SqlStore) Update(ctx context.Context, fn func(kv.Tx) error) error {
	span, ctx := tracing.StartSpanFromContext(ctx)
	defer span.Finish()

	s.Mu.Lock()
	defer s.Mu.Unlock()

	tx, err := s.DB.BeginTxx(ctx, nil)
	if err != nil {
		return tracing.LogError(span, err)
	}

	if err := fn(&Tx{tx: tx, ctx: ctx, writable: true}); err != nil {
		tx.Rollback()
		return tracing.LogError(span, err)
	}
	return tracing.LogError(span, tx.Commit())
}

// Tx is a sqlite transaction. It implements kv.Tx.
type Tx struct {
	tx       *sqlx.Tx
	ctx      context.Context
	writable bool
}

// Context returns the context for the transaction.
func (t *Tx) Context() context.Context {
	return t.ctx
}

// WithContext sets the context for the transaction.
func (t *Tx) WithContext(ctx context.Context) {
	t.ctx = ctx
}

// Bucket returns the bucket named b. Buckets are rows of one table, so a
// bucket exists as soon as it holds a key.
func (t *Tx) Bucket(b []byte) (kv.Bucket, error) {
	return &Bucket{tx: t, name: append([]byte{}, b...)}, nil
}

// Bucket is a kv.Bucket stored as the rows of kv_entries sharing a bucket
// name.
type Bucket struct {
	tx   *Tx
	name []byte
}

// Get retrieves the value at the provided key.
func (b *Bucket) Get(key []byte) ([]byte, error) {
	query, args, err := sq.Select("value").
		From(kvTableName).
		Where("bucket = ? AND key = ?", b.name, nonNil(key)).
		ToSql()
	if err != nil {
		return nil, err
	}

	var value []byte
	if err := b.tx.tx.GetContext(b.tx.ctx, &value, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, kv.ErrKeyNotFound
		}
		return nil, err
	}
	return value, nil
}

// Put sets the value at the provided key.
func (b *Bucket) Put(key, value []byte) error {
	if !b.tx.writable {
		return kv.ErrTxNotWritable
	}
	query, args, err := sq.Insert(kvTableName).
		Columns("bucket", "key", "value").
		Values(b.name, nonNil(key), nonNil(value)).
		Suffix("ON CONFLICT (bucket, key) DO UPDATE SET value = excluded.value").
		ToSql()
	if err != nil {
		return err
	}
	_, err = b.tx.tx.ExecContext(b.tx.ctx, query, args...)
	return err
}

// Delete removes the provided key.
func (b *Bucket) Delete(key []byte) error {
	if !b.tx.writable {
		return kv.ErrTxNotWritable
	}
	query, args, err := sq.Delete(kvTableName).
		Where("bucket = ? AND key = ?", b.name, nonNil(key)).
		ToSql()
	if err != nil {
		return err
	}
	_, err = b.tx.tx.ExecContext(b.tx.ctx, query, args...)
	return err
}

// Cursor returns a cursor over the bucket as it is now; later writes are
// not visible through it.
func (b *Bucket) Cursor() (kv.Cursor, error) {
	query, args, err := sq.Select("key", "value").
		From(kvTableName).
		Where("bucket = ?", b.name).
		OrderBy("key").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := b.tx.tx.QueryxContext(b.tx.ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pairs []kv.Pair
	for rows.Next() {
		var p kv.Pair
		if err := rows.Scan(&p.Key, &p.Value); err != nil {
			return nil, err
		}
		pairs = append(pairs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return kv.NewStaticCursor(pairs), nil
}

// nonNil keeps go-sqlite3 from binding an empty slice as NULL.
func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
