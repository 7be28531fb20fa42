// Package kv defines the transactional key value store the buffer layer
// writes through. It is modeled after the boltdb database struct and is
// implemented by the inmem, bolt and sqlite packages.
package kv

import (
	"context"
	"errors"
)

var (
	// ErrKeyNotFound is returned by Bucket.Get for a missing key.
	ErrKeyNotFound = errors.New("key not found")
	// ErrTxNotWritable is returned by Put and Delete inside View.
	ErrTxNotWritable = errors.New("transaction is not writable")
)

// IsNotFound reports whether err wraps ErrKeyNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrKeyNotFound)
}

// Store runs functions inside transactions.
type Store interface {
	// View runs fn in a read-only transaction.
	View(ctx context.Context, fn func(Tx) error) error
	// Update runs fn in a read-write transaction. Its writes are applied
	// only if fn returns nil.
	Update(ctx context.Context, fn func(Tx) error) error
}

// Tx is an open transaction.
type Tx interface {
	// Bucket returns the named bucket. Writable transactions create it
	// when missing.
	Bucket(b []byte) (Bucket, error)
	Context() context.Context
	WithContext(ctx context.Context)
}

// Bucket is a sorted keyspace inside a transaction. Put and Delete return
// ErrTxNotWritable in read-only transactions.
type Bucket interface {
	Get(key []byte) ([]byte, error)
	Cursor() (Cursor, error)
	Put(key, value []byte) error
	Delete(key []byte) error
}

// Cursor walks a bucket in key order. Every method returns a nil key once
// the cursor moves past either end.
type Cursor interface {
	Seek(prefix []byte) (k []byte, v []byte)
	First() (k []byte, v []byte)
	Last() (k []byte, v []byte)
	Next() (k []byte, v []byte)
	Prev() (k []byte, v []byte)
}
