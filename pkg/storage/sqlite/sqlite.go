// Package sqlite provides a SQLite-backed storage driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/papercomputeco/bridge/pkg/storage/sqlstore"
)

var dialect = sqlstore.Dialect{
	Schema: []string{
		`CREATE TABLE IF NOT EXISTS records (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			kind TEXT NOT NULL,
			request_id TEXT NOT NULL DEFAULT '',
			logged_at TIMESTAMP NOT NULL,
			payload TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS records_kind ON records (kind)`,
		`CREATE INDEX IF NOT EXISTS records_request_id ON records (request_id)`,
	},
	Insert: `INSERT INTO records (kind, request_id, logged_at, payload) VALUES (?, ?, ?, ?)`,
	Select: `SELECT payload FROM records WHERE kind = ? ORDER BY id`,
}

// Driver implements storage.Driver using SQLite.
type Driver struct {
	*sqlstore.Driver
}

// NewDriver opens dbPath, which may be a file path or ":memory:".
func NewDriver(ctx context.Context, dbPath string) (*Driver, error) {
	// Open the database using the github.com/mattn/go-sqlite3 driver (registered as "sqlite3")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// An in-memory database lives only as long as its one connection.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	store, err := sqlstore.New(ctx, db, dialect)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Driver{Driver: store}, nil
}
