// Package dbconn owns the stores a process opens. A Registry is created by
// the application, handed to whatever needs a store, and closed once on
// shutdown.
package dbconn

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/influxdata/gossipdht/bolt"
	"github.com/influxdata/gossipdht/buffer/kvv"
	"github.com/influxdata/gossipdht/inmem"
	"github.com/influxdata/gossipdht/kit/platform/errors"
	"github.com/influxdata/gossipdht/kv"
	"github.com/influxdata/gossipdht/sqlite"
	"github.com/influxdata/gossipdht/sqlite/migrations"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Storage engines.
const (
	EngineMemory = "memory"
	EngineBolt   = "bolt"
	EngineSqlite = "sqlite"
)

// Config selects a store.
type Config struct {
	Engine string `toml:"engine"`
	// Path is the database file. Memory stores use it only as a name.
	Path string `toml:"path"`
}

// DefaultConfig returns the configuration of an in-memory store.
func DefaultConfig() Config {
	return Config{Engine: EngineMemory}
}

func (c Config) validate() error {
	switch c.Engine {
	case EngineMemory:
		return nil
	case EngineBolt, EngineSqlite:
		if c.Path == "" {
			return &errors.Error{
				Code: errors.EInvalid,
				Op:   "dbconn/Open",
				Msg:  fmt.Sprintf("engine %q requires a path", c.Engine),
			}
		}
		return nil
	}
	return &errors.Error{
		Code: errors.EInvalid,
		Op:   "dbconn/Open",
		Msg:  fmt.Sprintf("unknown storage engine %q", c.Engine),
	}
}

func (c Config) key() string {
	if c.Engine == EngineMemory {
		return c.Engine + ":" + c.Path
	}
	return c.Engine + ":" + filepath.Clean(c.Path)
}

type handle struct {
	store kv.Store
	bolt  *bolt.KVStore
	sql   *sqlite.SqlStore
	close func() error
}

// Registry opens each configured store once and hands out the same handle
// on every later request. It is safe for concurrent use.
type Registry struct {
	log *zap.Logger
	reg prometheus.Registerer

	mu      sync.Mutex
	handles map[string]*handle
	closed  bool
}

// NewRegistry returns an empty registry.
func NewRegistry(log *zap.Logger) *Registry {
	return &Registry{
		log:     log,
		handles: map[string]*handle{},
	}
}

// WithRegisterer registers the metrics of every bolt store opened from now
// on with reg, labelled by path.
func (r *Registry) WithRegisterer(reg prometheus.Registerer) *Registry {
	r.reg = reg
	return r
}

// Open returns the store described by cfg, opening it on first use.
func (r *Registry) Open(ctx context.Context, cfg Config) (kv.Store, error) {
	h, err := r.open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return h.store, nil
}

func (r *Registry) open(ctx context.Context, cfg Config) (*handle, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, &errors.Error{
			Code: errors.EUnavailable,
			Op:   "dbconn/Open",
			Msg:  "registry is closed",
		}
	}

	key := cfg.key()
	if h, ok := r.handles[key]; ok {
		return h, nil
	}

	log := r.log.With(zap.String("engine", cfg.Engine), zap.String("path", cfg.Path))
	var h *handle
	switch cfg.Engine {
	case EngineMemory:
		h = &handle{store: inmem.NewKVStore(), close: func() error { return nil }}
	case EngineBolt:
		s := bolt.NewKVStore(log, cfg.Path)
		if err := s.Open(ctx); err != nil {
			return nil, &errors.Error{Code: errors.EUnavailable, Op: "dbconn/Open", Err: err}
		}
		if r.reg != nil {
			wrapped := prometheus.WrapRegistererWith(prometheus.Labels{"path": cfg.Path}, r.reg)
			if err := wrapped.Register(s); err != nil {
				s.Close()
				return nil, &errors.Error{Code: errors.EInternal, Op: "dbconn/Open", Err: err}
			}
		}
		h = &handle{store: s, bolt: s, close: s.Close}
	case EngineSqlite:
		s, err := sqlite.NewSqlStore(cfg.Path, log)
		if err != nil {
			return nil, &errors.Error{Code: errors.EUnavailable, Op: "dbconn/Open", Err: err}
		}
		if err := sqlite.NewMigrator(s, log).Up(ctx, migrations.AllUp); err != nil {
			s.Close()
			return nil, &errors.Error{Code: errors.EInternal, Op: "dbconn/Open", Err: err}
		}
		h = &handle{store: s, sql: s, close: s.Close}
	}

	r.handles[key] = h
	log.Debug("Store opened")
	return h, nil
}

// MultiTable returns the multi-value table called name in the store
// described by cfg. Sqlite stores give each table its own sql table; the
// other engines keep it in a bucket.
func (r *Registry) MultiTable(ctx context.Context, cfg Config, name string) (kvv.MultiTable, error) {
	h, err := r.open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if h.sql != nil {
		t, err := h.sql.NewMultiTable(ctx, name)
		if err != nil {
			return nil, err
		}
		return t, nil
	}
	if h.bolt != nil {
		h.bolt.TrackBucket("kvv_" + name)
	}
	return kvv.NewBucketTable(name), nil
}

// Close closes every store exactly once. Later calls, and later opens,
// fail.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return &errors.Error{
			Code: errors.EUnavailable,
			Op:   "dbconn/Close",
			Msg:  "registry is already closed",
		}
	}
	r.closed = true

	var err error
	for key, h := range r.handles {
		if cerr := h.close(); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("close %s: %w", key, cerr))
		}
	}
	r.handles = nil
	return err
}
