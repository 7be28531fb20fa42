// Package sqlite stores kv buckets and multi-value tables in a SQLite
// database.
package sqlite

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

const (
	DefaultFilename = "gossipdht.sqlite"
	InmemPath       = ":memory:"

	// catalogTableName lists the multi-value tables; Flush keeps it.
	catalogTableName = "kvv_tables"

	busyTimeoutMillis = 5000
)

// SqlStore is a wrapper around the db and provides basic functionality for
// maintaining the db including flushing the data from the db during
// end-to-end testing.
type SqlStore struct {
	Mu   sync.RWMutex
	DB   *sqlx.DB
	log  *zap.Logger
	path string
}

// NewSqlStore opens the database at path, creating it if needed. Use
// InmemPath for a private in-memory database.
func NewSqlStore(path string, log *zap.Logger) (*SqlStore, error) {
	s := &SqlStore{
		log:  log,
		path: path,
	}

	if err := s.openDB(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *SqlStore) openDB() error {
	if s.path != InmemPath {
		if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
			return fmt.Errorf("unable to create directory for %s: %w", s.path, err)
		}
	}

	// go-sqlite3 applies DSN pragmas to every pooled connection.
	dsn := fmt.Sprintf("%s?_busy_timeout=%d", s.path, busyTimeoutMillis)
	if s.path != InmemPath {
		dsn += "&_journal_mode=WAL"
	}

	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return err
	}

	// Every connection to ":memory:" gets its own empty database.
	if s.path == InmemPath {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return fmt.Errorf("unable to open sqlite database %s: %w", s.path, err)
	}

	s.DB = db
	s.log.Debug("Resources opened", zap.String("path", s.path))
	return nil
}

// Path returns the path of the database.
func (s *SqlStore) Path() string {
	return s.path
}

// Close the connection to the sqlite database.
func (s *SqlStore) Close() error {
	if s.DB != nil {
		err := s.DB.Close()
		s.DB = nil
		return err
	}
	return nil
}

// Flush deletes all records from every table except the catalog of
// multi-value tables.
func (s *SqlStore) Flush(ctx context.Context) {
	tables, err := s.tableNames()
	if err != nil {
		s.log.Fatal("unable to flush sqlite", zap.Error(err))
	}

	for _, t := range tables {
		if t == catalogTableName {
			continue
		}
		stmt := fmt.Sprintf("DELETE FROM %s", quoteIdent(t))
		if err := s.execTrans(ctx, stmt); err != nil {
			s.log.Fatal("unable to flush sqlite", zap.Error(err))
		}
	}
	s.log.Debug("sqlite data flushed successfully")
}

func (s *SqlStore) execTrans(ctx context.Context, stmt string) error {
	// use a lock to prevent two potential simultaneous write operations to the database,
	// which would throw an error
	s.Mu.Lock()
	defer s.Mu.Unlock()

	tx, err := s.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, stmt); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}

func (s *SqlStore) userVersion() (int, error) {
	stmt := `PRAGMA user_version`
	res, err := s.queryToStrings(stmt)
	if err != nil {
		return 0, err
	}

	var val int
	if _, err := fmt.Sscan(res[0], &val); err != nil {
		return 0, err
	}
	return val, nil
}

func (s *SqlStore) tableNames() ([]string, error) {
	return s.queryToStrings(`SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%'`)
}

// queryToStrings runs a single column query and returns each row as a
// string.
func (s *SqlStore) queryToStrings(stmt string) ([]string, error) {
	var output []string

	rows, err := s.DB.Query(stmt)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var i string
		if err := rows.Scan(&i); err != nil {
			return nil, err
		}
		output = append(output, i)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return output, nil
}

// quoteIdent quotes name for use as a table name.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
