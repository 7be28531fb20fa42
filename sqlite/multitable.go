package sqlite

import (
	"context"
	"fmt"
	"regexp"

	sq "github.com/Masterminds/squirrel"
	"github.com/influxdata/gossipdht/buffer/kvv"
	"github.com/influxdata/gossipdht/kit/platform/errors"
	"github.com/influxdata/gossipdht/kv"
)

var tableNameRE = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// MultiTable is a kvv.MultiTable stored in its own sqlite table. The value
// column has no declared type, so every value keeps the storage class it
// was written with.
type MultiTable struct {
	name  string
	table string
}

var _ kvv.MultiTable = (*MultiTable)(nil)

// NewMultiTable creates, if needed, and returns the multi-value table
// called name. Names are limited to letters, digits and underscores.
func (s *SqlStore) NewMultiTable(ctx context.Context, name string) (*MultiTable, error) {
	if !tableNameRE.MatchString(name) {
		return nil, &errors.Error{
			Code: errors.EInvalid,
			Op:   "sqlite/NewMultiTable",
			Msg:  fmt.Sprintf("invalid table name %q: only letters, digits and underscores are allowed", name),
		}
	}
	m := &MultiTable{
		name:  name,
		table: quoteIdent("kvv_" + name),
	}

	s.Mu.Lock()
	defer s.Mu.Unlock()

	tx, err := s.DB.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	create := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (key BLOB NOT NULL, val, UNIQUE (key, val))`, m.table)
	if _, err := tx.ExecContext(ctx, create); err != nil {
		return nil, err
	}

	query, args, err := sq.Insert(catalogTableName).
		Options("OR IGNORE").
		Columns("name").
		Values(name).
		ToSql()
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return m, nil
}

// MultiTableNames returns the names of every multi-value table.
func (s *SqlStore) MultiTableNames(ctx context.Context) ([]string, error) {
	query, args, err := sq.Select("name").From(catalogTableName).OrderBy("name").ToSql()
	if err != nil {
		return nil, err
	}

	s.Mu.RLock()
	defer s.Mu.RUnlock()

	var names []string
	if err := s.DB.SelectContext(ctx, &names, query, args...); err != nil {
		return nil, err
	}
	return names, nil
}

// Name returns the table name.
func (m *MultiTable) Name() string {
	return m.name
}

func sqlTx(tx kv.Tx, write bool) (*Tx, error) {
	t, ok := tx.(*Tx)
	if !ok {
		return nil, &errors.Error{
			Code: errors.EInvalid,
			Op:   "sqlite/MultiTable",
			Msg:  fmt.Sprintf("transaction %T does not belong to a sqlite store", tx),
		}
	}
	if write && !t.writable {
		return nil, kv.ErrTxNotWritable
	}
	return t, nil
}

// GetMulti returns the rows of key.
func (m *MultiTable) GetMulti(tx kv.Tx, key []byte) ([]kvv.Row, error) {
	t, err := sqlTx(tx, false)
	if err != nil {
		return nil, err
	}

	query, args, err := sq.Select("val").
		From(m.table).
		Where("key = ?", nonNil(key)).
		OrderBy("val").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := t.tx.QueryxContext(t.ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []kvv.Row
	for rows.Next() {
		var v interface{}
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		raw, err := fromSQL(v)
		if err != nil {
			return nil, err
		}
		out = append(out, kvv.Row{Key: append([]byte(nil), key...), Value: raw})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Put adds value to key.
func (m *MultiTable) Put(tx kv.Tx, key []byte, value *kvv.RawValue) error {
	t, err := sqlTx(tx, true)
	if err != nil {
		return err
	}
	arg, err := toSQL(value)
	if err != nil {
		return err
	}

	query, args, err := sq.Insert(m.table).
		Options("OR IGNORE").
		Columns("key", "val").
		Values(nonNil(key), arg).
		ToSql()
	if err != nil {
		return err
	}
	_, err = t.tx.ExecContext(t.ctx, query, args...)
	return err
}

// DeleteKV removes value from key.
func (m *MultiTable) DeleteKV(tx kv.Tx, key []byte, value *kvv.RawValue) error {
	t, err := sqlTx(tx, true)
	if err != nil {
		return err
	}
	arg, err := toSQL(value)
	if err != nil {
		return err
	}

	del := sq.Delete(m.table).Where("key = ?", nonNil(key))
	if arg == nil {
		del = del.Where("val IS NULL")
	} else {
		del = del.Where("val = ?", arg)
	}
	query, args, err := del.ToSql()
	if err != nil {
		return err
	}
	_, err = t.tx.ExecContext(t.ctx, query, args...)
	return err
}

// DeleteAll removes every value of key.
func (m *MultiTable) DeleteAll(tx kv.Tx, key []byte) error {
	return m.exec(tx, sq.Delete(m.table).Where("key = ?", nonNil(key)))
}

// Clear removes every row of the table.
func (m *MultiTable) Clear(tx kv.Tx) error {
	return m.exec(tx, sq.Delete(m.table))
}

func (m *MultiTable) exec(tx kv.Tx, b sq.DeleteBuilder) error {
	t, err := sqlTx(tx, true)
	if err != nil {
		return err
	}
	query, args, err := b.ToSql()
	if err != nil {
		return err
	}
	_, err = t.tx.ExecContext(t.ctx, query, args...)
	return err
}

func toSQL(v *kvv.RawValue) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	switch v.Type {
	case kvv.RawNull:
		return nil, nil
	case kvv.RawInteger:
		if i, ok := v.Int64(); ok {
			return i, nil
		}
	case kvv.RawReal:
		if f, ok := v.Float64(); ok {
			return f, nil
		}
	case kvv.RawText:
		return string(v.Data), nil
	case kvv.RawBlob:
		return nonNil(v.Data), nil
	}
	return nil, &errors.Error{
		Code: errors.EInvalid,
		Op:   "sqlite/MultiTable",
		Msg:  fmt.Sprintf("malformed %s value", v.Type),
	}
}

func fromSQL(v interface{}) (*kvv.RawValue, error) {
	switch v := v.(type) {
	case nil:
		return kvv.Null(), nil
	case int64:
		return kvv.Integer(v), nil
	case float64:
		return kvv.Real(v), nil
	case string:
		return kvv.Text(v), nil
	case []byte:
		return kvv.Blob(append([]byte{}, v...)), nil
	}
	return nil, &errors.Error{
		Code: errors.EInvalid,
		Op:   "sqlite/MultiTable",
		Msg:  fmt.Sprintf("unexpected sqlite value of type %T", v),
	}
}
