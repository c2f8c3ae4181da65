// Package sqlstore implements storage.Driver over database/sql. Dialect
// packages (sqlite, postgres) open the database and supply the schema.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/papercomputeco/bridge/pkg/storage"
)

// Dialect holds the SQL that differs between databases.
type Dialect struct {
	// Schema statements create the records table if it does not exist.
	Schema []string

	// Insert takes kind, request_id, logged_at and payload, in that order.
	Insert string

	// Select takes kind and returns payloads oldest first.
	Select string
}

// Driver stores every record as a JSON payload row.
type Driver struct {
	DB      *sql.DB
	dialect Dialect
}

// New applies the dialect's schema to db.
func New(ctx context.Context, db *sql.DB, dialect Dialect) (*Driver, error) {
	for _, stmt := range dialect.Schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return &Driver{DB: db, dialect: dialect}, nil
}

func (d *Driver) WriteRaw(ctx context.Context, pair *storage.RawPair) error {
	if pair == nil {
		return storage.ErrNilRecord
	}
	return d.insert(ctx, storage.KindRaw, pair)
}

func (d *Driver) WriteTransformed(ctx context.Context, entry *storage.TransformedEntry) error {
	if entry == nil {
		return storage.ErrNilRecord
	}
	return d.insert(ctx, storage.KindTransformed, entry)
}

func (d *Driver) WriteOrphan(ctx context.Context, entry *storage.OrphanEntry) error {
	if entry == nil {
		return storage.ErrNilRecord
	}
	return d.insert(ctx, storage.KindOrphan, entry)
}

func (d *Driver) insert(ctx context.Context, kind storage.Kind, record any) error {
	now := time.Now().UTC()
	requestID := storage.Stamp(record, now)

	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encoding %s record: %w", kind, err)
	}

	if _, err := d.DB.ExecContext(ctx, d.dialect.Insert, string(kind), requestID, now, string(payload)); err != nil {
		return fmt.Errorf("inserting %s record: %w", kind, err)
	}
	return nil
}

// List implements storage.Lister.
func (d *Driver) List(ctx context.Context, kind storage.Kind) ([]json.RawMessage, error) {
	if _, err := storage.ParseKind(string(kind)); err != nil {
		return nil, err
	}

	rows, err := d.DB.QueryContext(ctx, d.dialect.Select, string(kind))
	if err != nil {
		return nil, fmt.Errorf("listing %s records: %w", kind, err)
	}
	defer rows.Close()

	var out []json.RawMessage
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scanning %s record: %w", kind, err)
		}
		out = append(out, json.RawMessage(payload))
	}
	return out, rows.Err()
}

// Close closes the database.
func (d *Driver) Close() error {
	return d.DB.Close()
}
