// Package bolt implements kv.Store on top of a bbolt database file.
package bolt

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/influxdata/gossipdht/kv"
	"github.com/opentracing/opentracing-go"
	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"
)

var _ kv.Store = (*KVStore)(nil)

// KVStore is a kv.Store backed by boltdb.
type KVStore struct {
	path   string
	db     *bolt.DB
	logger *zap.Logger

	mu      sync.RWMutex
	tracked map[string]struct{}
}

// NewKVStore returns an instance of KVStore with the file at
// the provided path.
func NewKVStore(log *zap.Logger, path string) *KVStore {
	return &KVStore{
		path:    path,
		logger:  log,
		tracked: map[string]struct{}{},
	}
}

// Open creates the boltdb file if it doesn't exist and opens it otherwise.
func (s *KVStore) Open(ctx context.Context) error {
	span, _ := opentracing.StartSpanFromContext(ctx, "KVStore.Open")
	defer span.Finish()

	// Ensure the required directory structure exists.
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("unable to create directory %s: %w", s.path, err)
	}

	db, err := bolt.Open(s.path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return fmt.Errorf("unable to open boltdb file %s: %w", s.path, err)
	}
	s.db = db

	s.logger.Info("Resources opened", zap.String("path", s.path))
	return nil
}

// Close the connection to the bolt database.
func (s *KVStore) Close() error {
	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		return err
	}
	return nil
}

// Path returns the path of the database file.
func (s *KVStore) Path() string {
	return s.path
}

// DB returns the underlying bolt database.
func (s *KVStore) DB() *bolt.DB {
	return s.db
}

// WithLogger sets the logger on the store.
func (s *KVStore) WithLogger(l *zap.Logger) {
	s.logger = l
}

// WithDB sets the boltdb on the store.
func (s *KVStore) WithDB(db *bolt.DB) {
	s.db = db
}

// Flush removes all keys within each bucket.
func (s *KVStore) Flush(ctx context.Context) {
	span, _ := opentracing.StartSpanFromContext(ctx, "KVStore.Flush")
	defer span.Finish()

	err := s.db.Update(func(tx *bolt.Tx) error {
		var names [][]byte
		if err := tx.ForEach(func(name []byte, _ *bolt.Bucket) error {
			names = append(names, append([]byte(nil), name...))
			return nil
		}); err != nil {
			return err
		}
		for _, name := range names {
			if err := tx.DeleteBucket(name); err != nil {
				return err
			}
			if _, err := tx.CreateBucket(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to flush boltdb", zap.String("path", s.path), zap.Error(err))
	}
}

// View opens up a view transaction against the store.
func (s *KVStore) View(ctx context.Context, fn func(tx kv.Tx) error) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "KVStore.View")
	defer span.Finish()

	return s.db.View(func(tx *bolt.Tx) error {
		return fn(&Tx{
			tx:  tx,
			ctx: ctx,
		})
	})
}

// Update opens up an update transaction against the store. The
// transaction is rolled back if fn returns an error.
func (s *KVStore) Update(ctx context.Context, fn func(tx kv.Tx) error) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "KVStore.Update")
	defer span.Finish()

	return s.db.Update(func(tx *bolt.Tx) error {
		return fn(&Tx{
			tx:  tx,
			ctx: ctx,
		})
	})
}

// Tx is a light wrapper around a boltdb transaction. It implements kv.Tx.
type Tx struct {
	tx  *bolt.Tx
	ctx context.Context
}

// Context returns the context for the transaction.
func (tx *Tx) Context() context.Context {
	return tx.ctx
}

// WithContext sets the context for the transaction.
func (tx *Tx) WithContext(ctx context.Context) {
	tx.ctx = ctx
}

// Bucket retrieves the bucket named b. A writable transaction creates it
// when missing; a read-only one gets an empty bucket.
func (tx *Tx) Bucket(b []byte) (kv.Bucket, error) {
	if bkt := tx.tx.Bucket(b); bkt != nil {
		return &Bucket{bucket: bkt}, nil
	}
	if !tx.tx.Writable() {
		return emptyBucket{}, nil
	}
	bkt, err := tx.tx.CreateBucketIfNotExists(b)
	if err != nil {
		return nil, err
	}
	return &Bucket{bucket: bkt}, nil
}

// Bucket implements kv.Bucket.
type Bucket struct {
	bucket *bolt.Bucket
}

// Get retrieves the value at the provided key.
func (b *Bucket) Get(key []byte) ([]byte, error) {
	val := b.bucket.Get(key)
	if len(val) == 0 {
		return nil, kv.ErrKeyNotFound
	}
	return val, nil
}

// Put sets the value at the provided key.
func (b *Bucket) Put(key []byte, value []byte) error {
	err := b.bucket.Put(key, value)
	if err == bolt.ErrTxNotWritable {
		return kv.ErrTxNotWritable
	}
	return err
}

// Delete removes the provided key.
func (b *Bucket) Delete(key []byte) error {
	err := b.bucket.Delete(key)
	if err == bolt.ErrTxNotWritable {
		return kv.ErrTxNotWritable
	}
	return err
}

// Cursor retrieves a cursor for iterating through the entries
// in the key value store.
func (b *Bucket) Cursor() (kv.Cursor, error) {
	return &Cursor{
		cursor: b.bucket.Cursor(),
	}, nil
}

// emptyBucket stands in for a bucket that a view asked for but nobody has
// created yet.
type emptyBucket struct{}

func (emptyBucket) Get([]byte) ([]byte, error) { return nil, kv.ErrKeyNotFound }
func (emptyBucket) Put(_, _ []byte) error      { return kv.ErrTxNotWritable }
func (emptyBucket) Delete([]byte) error        { return kv.ErrTxNotWritable }

func (emptyBucket) Cursor() (kv.Cursor, error) {
	return kv.NewStaticCursor(nil), nil
}

// Cursor is a struct for iterating through the entries
// in the key value store.
type Cursor struct {
	cursor *bolt.Cursor
}

func pair(k, v []byte) ([]byte, []byte) {
	if len(k) == 0 && len(v) == 0 {
		return nil, nil
	}
	return k, v
}

// Seek seeks for the first key that matches the prefix provided.
func (c *Cursor) Seek(prefix []byte) ([]byte, []byte) {
	return pair(c.cursor.Seek(prefix))
}

// First retrieves the first key value pair in the bucket.
func (c *Cursor) First() ([]byte, []byte) {
	return pair(c.cursor.First())
}

// Last retrieves the last key value pair in the bucket.
func (c *Cursor) Last() ([]byte, []byte) {
	return pair(c.cursor.Last())
}

// Next retrieves the next key in the bucket.
func (c *Cursor) Next() ([]byte, []byte) {
	return pair(c.cursor.Next())
}

// Prev retrieves the previous key in the bucket.
func (c *Cursor) Prev() ([]byte, []byte) {
	return pair(c.cursor.Prev())
}
