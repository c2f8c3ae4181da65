// Package sink opens the storage driver named by the log.sink setting.
package sink

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/papercomputeco/bridge/pkg/dotdir"
	"github.com/papercomputeco/bridge/pkg/storage"
	"github.com/papercomputeco/bridge/pkg/storage/inmemory"
	"github.com/papercomputeco/bridge/pkg/storage/jsonl"
	"github.com/papercomputeco/bridge/pkg/storage/postgres"
	"github.com/papercomputeco/bridge/pkg/storage/sqlite"
)

// Sink names.
const (
	JSONL    = "jsonl"
	SQLite   = "sqlite"
	Postgres = "postgres"
	InMemory = "inmemory"
)

// SQLiteFile is the database name used when no sqlite DSN is configured.
const SQLiteFile = "bridge.db"

// Names lists every supported sink.
func Names() []string {
	return []string{JSONL, SQLite, Postgres, InMemory}
}

// Options select and locate a sink.
type Options struct {
	// Name is one of Names. Empty selects JSONL.
	Name string

	// Dir is the log directory; empty resolves through dotdir.
	Dir string

	// DSN is the sqlite path or the postgres connection string.
	DSN string

	// ConfigDir overrides the .bridge/ directory.
	ConfigDir string
}

// Open returns the driver for o.Name along with a short description of where
// it writes.
func Open(ctx context.Context, o Options) (storage.Driver, string, error) {
	switch o.Name {
	case "", JSONL:
		dir, err := dotdir.NewManager().LogDir(o.Dir, o.ConfigDir)
		if err != nil {
			return nil, "", err
		}
		d, err := jsonl.NewDriver(dir)
		if err != nil {
			return nil, "", fmt.Errorf("creating jsonl driver: %w", err)
		}
		return d, dir, nil

	case SQLite:
		path := o.DSN
		if path == "" {
			dir, err := dotdir.NewManager().LogDir(o.Dir, o.ConfigDir)
			if err != nil {
				return nil, "", err
			}
			path = filepath.Join(dir, SQLiteFile)
		}
		d, err := sqlite.NewDriver(ctx, path)
		if err != nil {
			return nil, "", fmt.Errorf("creating sqlite driver: %w", err)
		}
		return d, path, nil

	case Postgres:
		if o.DSN == "" {
			return nil, "", fmt.Errorf("postgres sink requires log.dsn")
		}
		d, err := postgres.NewDriver(ctx, o.DSN)
		if err != nil {
			return nil, "", fmt.Errorf("creating postgres driver: %w", err)
		}
		return d, "postgres", nil

	case InMemory:
		return inmemory.NewDriver(), "memory", nil

	default:
		return nil, "", fmt.Errorf("unknown log sink: %q (supported: %v)", o.Name, Names())
	}
}
