// Package storage persists bridge traffic records.
package storage

import (
	"context"
	"encoding/json"
)

// Driver appends records to a storage backend. Records are never updated or
// deleted.
type Driver interface {
	// WriteRaw stores a request/response pair as seen on the wire.
	WriteRaw(ctx context.Context, pair *RawPair) error

	// WriteTransformed stores the record of a translated request.
	WriteTransformed(ctx context.Context, entry *TransformedEntry) error

	// WriteOrphan stores a request that never completed.
	WriteOrphan(ctx context.Context, entry *OrphanEntry) error

	// Close flushes and releases the backend.
	Close() error
}

// Lister reads records back, oldest first, as their JSON documents.
type Lister interface {
	List(ctx context.Context, kind Kind) ([]json.RawMessage, error)
}
