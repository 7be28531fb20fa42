package sqlite

import (
	"context"
	"embed"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Migrator brings the schema of a SqlStore up to date. The applied version
// is kept in the database's user_version pragma.
type Migrator struct {
	store *SqlStore
	log   *zap.Logger
}

func NewMigrator(store *SqlStore, log *zap.Logger) *Migrator {
	return &Migrator{
		store: store,
		log:   log,
	}
}

// Up runs, in version order, every .sql script of source numbered above
// the current user_version.
func (m *Migrator) Up(ctx context.Context, source embed.FS) error {
	entries, err := source.ReadDir(".")
	if err != nil {
		return err
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && path.Ext(e.Name()) == ".sql" {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return fmt.Errorf("no migrations found")
	}
	sort.Strings(names)

	current, err := m.store.userVersion()
	if err != nil {
		return err
	}
	final, err := scriptVersion(names[len(names)-1])
	if err != nil {
		return err
	}
	if final > current {
		m.log.Info("Bringing up sqlite migrations", zap.Int("migration_count", final-current))
	}

	for _, n := range names {
		v, err := scriptVersion(n)
		if err != nil {
			return err
		}

		// re-read each time so a script that sets a later version skips
		// the ones it supersedes.
		c, err := m.store.userVersion()
		if err != nil {
			return err
		}
		if v <= c {
			continue
		}

		m.log.Debug("Executing sqlite migration", zap.String("migration_name", n))
		script, err := source.ReadFile(n)
		if err != nil {
			return err
		}
		if err := m.store.execTrans(ctx, string(script)); err != nil {
			return fmt.Errorf("migration %s: %w", n, err)
		}
	}

	return nil
}

// scriptVersion extracts the version from a file named like
// "0002_migration_name.sql".
func scriptVersion(filename string) (int, error) {
	return strconv.Atoi(strings.Split(filename, "_")[0])
}
