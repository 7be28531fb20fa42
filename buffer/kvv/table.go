package kvv

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/influxdata/gossipdht/kv"
)

// RawType is the storage class of a persisted value.
type RawType uint8

// Storage classes. Only RawBlob values hold codec encoded data; the others
// appear when a table is shared with code that writes native values.
const (
	RawNull RawType = iota
	RawInteger
	RawReal
	RawText
	RawBlob
)

func (t RawType) String() string {
	switch t {
	case RawNull:
		return "null"
	case RawInteger:
		return "integer"
	case RawReal:
		return "real"
	case RawText:
		return "text"
	case RawBlob:
		return "blob"
	}
	return fmt.Sprintf("rawtype(%d)", uint8(t))
}

// RawValue is a persisted value together with its storage class. Integer
// and Real data are 8 bytes big endian.
type RawValue struct {
	Type RawType
	Data []byte
}

// Blob returns a blob raw value over b.
func Blob(b []byte) *RawValue {
	return &RawValue{Type: RawBlob, Data: b}
}

// Text returns a text raw value.
func Text(s string) *RawValue {
	return &RawValue{Type: RawText, Data: []byte(s)}
}

// Integer returns an integer raw value.
func Integer(i int64) *RawValue {
	data := make([]byte, 8)
	binary.BigEndian.PutUint64(data, uint64(i))
	return &RawValue{Type: RawInteger, Data: data}
}

// Real returns a real raw value.
func Real(f float64) *RawValue {
	data := make([]byte, 8)
	binary.BigEndian.PutUint64(data, math.Float64bits(f))
	return &RawValue{Type: RawReal, Data: data}
}

// Null returns the null raw value.
func Null() *RawValue {
	return &RawValue{Type: RawNull}
}

// Int64 returns the value of an integer raw value.
func (v *RawValue) Int64() (int64, bool) {
	if v == nil || v.Type != RawInteger || len(v.Data) != 8 {
		return 0, false
	}
	return int64(binary.BigEndian.Uint64(v.Data)), true
}

// Float64 returns the value of a real raw value.
func (v *RawValue) Float64() (float64, bool) {
	if v == nil || v.Type != RawReal || len(v.Data) != 8 {
		return 0, false
	}
	return math.Float64frombits(binary.BigEndian.Uint64(v.Data)), true
}

// Row is one persisted (key, value) pair of a multi-value table. Value is
// nil when the backend holds the key without a value.
type Row struct {
	Key   []byte
	Value *RawValue
}

// MultiTable is a persisted mapping from a key to a set of values. Every
// operation runs inside the caller's transaction; writes fail with
// kv.ErrTxNotWritable outside an update.
type MultiTable interface {
	Name() string
	// GetMulti returns every row stored under key.
	GetMulti(tx kv.Tx, key []byte) ([]Row, error)
	// Put adds value to the set of key. Adding a present value is a no-op.
	Put(tx kv.Tx, key []byte, value *RawValue) error
	// DeleteKV removes value from the set of key. Removing an absent
	// value is a no-op.
	DeleteKV(tx kv.Tx, key []byte, value *RawValue) error
	// DeleteAll removes every value of key.
	DeleteAll(tx kv.Tx, key []byte) error
	// Clear removes every row of the table.
	Clear(tx kv.Tx) error
}

// BucketTable is a MultiTable stored in a kv bucket. Each (key, value)
// pair is one bucket entry whose key is the length prefixed key, the
// storage class and the value data, so the values of a key are adjacent
// and ordered by their bytes.
type BucketTable struct {
	name   string
	bucket []byte
}

var _ MultiTable = (*BucketTable)(nil)

// NewBucketTable returns the table called name. Its entries live in the
// bucket "kvv_<name>".
func NewBucketTable(name string) *BucketTable {
	return &BucketTable{
		name:   name,
		bucket: []byte("kvv_" + name),
	}
}

// Name returns the table name.
func (t *BucketTable) Name() string {
	return t.name
}

func keyPrefix(key []byte) []byte {
	prefix := binary.AppendUvarint(make([]byte, 0, binary.MaxVarintLen64+len(key)), uint64(len(key)))
	return append(prefix, key...)
}

func entryKey(key []byte, value *RawValue) []byte {
	k := keyPrefix(key)
	k = append(k, byte(value.Type))
	return append(k, value.Data...)
}

// GetMulti returns the rows of key in value byte order.
func (t *BucketTable) GetMulti(tx kv.Tx, key []byte) ([]Row, error) {
	b, err := tx.Bucket(t.bucket)
	if err != nil {
		return nil, err
	}
	c, err := b.Cursor()
	if err != nil {
		return nil, err
	}

	prefix := keyPrefix(key)
	var rows []Row
	for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
		rest := k[len(prefix):]
		if len(rest) == 0 {
			rows = append(rows, Row{Key: append([]byte(nil), key...)})
			continue
		}
		rows = append(rows, Row{
			Key: append([]byte(nil), key...),
			Value: &RawValue{
				Type: RawType(rest[0]),
				Data: append([]byte{}, rest[1:]...),
			},
		})
	}
	return rows, nil
}

// Put adds value to key.
func (t *BucketTable) Put(tx kv.Tx, key []byte, value *RawValue) error {
	if value == nil {
		value = Null()
	}
	b, err := tx.Bucket(t.bucket)
	if err != nil {
		return err
	}
	// bucket values must be non-empty for every backend to report them.
	return b.Put(entryKey(key, value), []byte{byte(value.Type)})
}

// DeleteKV removes value from key.
func (t *BucketTable) DeleteKV(tx kv.Tx, key []byte, value *RawValue) error {
	if value == nil {
		value = Null()
	}
	b, err := tx.Bucket(t.bucket)
	if err != nil {
		return err
	}
	return b.Delete(entryKey(key, value))
}

// DeleteAll removes every value of key.
func (t *BucketTable) DeleteAll(tx kv.Tx, key []byte) error {
	return t.deletePrefix(tx, keyPrefix(key))
}

// Clear removes every row of the table.
func (t *BucketTable) Clear(tx kv.Tx) error {
	return t.deletePrefix(tx, nil)
}

func (t *BucketTable) deletePrefix(tx kv.Tx, prefix []byte) error {
	b, err := tx.Bucket(t.bucket)
	if err != nil {
		return err
	}
	c, err := b.Cursor()
	if err != nil {
		return err
	}

	// collect first: cursors may not survive deletes under them.
	var keys [][]byte
	for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
		keys = append(keys, append([]byte(nil), k...))
	}
	for _, k := range keys {
		if err := b.Delete(k); err != nil {
			return err
		}
	}
	return nil
}
