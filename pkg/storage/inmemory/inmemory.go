// Package inmemory provides a storage driver that keeps records in memory.
package inmemory

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/papercomputeco/bridge/pkg/storage"
)

// Driver implements storage.Driver with in-memory slices.
type Driver struct {
	// mu guards the record slices
	mu sync.RWMutex

	raw         []*storage.RawPair
	transformed []*storage.TransformedEntry
	orphans     []*storage.OrphanEntry
}

// NewDriver creates an empty in-memory driver.
func NewDriver() *Driver {
	return &Driver{}
}

func (d *Driver) WriteRaw(_ context.Context, pair *storage.RawPair) error {
	if pair == nil {
		return storage.ErrNilRecord
	}
	storage.Stamp(pair, time.Now().UTC())

	d.mu.Lock()
	defer d.mu.Unlock()
	d.raw = append(d.raw, pair)
	return nil
}

func (d *Driver) WriteTransformed(_ context.Context, entry *storage.TransformedEntry) error {
	if entry == nil {
		return storage.ErrNilRecord
	}
	storage.Stamp(entry, time.Now().UTC())

	d.mu.Lock()
	defer d.mu.Unlock()
	d.transformed = append(d.transformed, entry)
	return nil
}

func (d *Driver) WriteOrphan(_ context.Context, entry *storage.OrphanEntry) error {
	if entry == nil {
		return storage.ErrNilRecord
	}
	storage.Stamp(entry, time.Now().UTC())

	d.mu.Lock()
	defer d.mu.Unlock()
	d.orphans = append(d.orphans, entry)
	return nil
}

// Raw returns the stored raw pairs.
func (d *Driver) Raw() []*storage.RawPair {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]*storage.RawPair(nil), d.raw...)
}

// Transformed returns the stored transformed entries.
func (d *Driver) Transformed() []*storage.TransformedEntry {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]*storage.TransformedEntry(nil), d.transformed...)
}

// Orphans returns the stored orphan entries.
func (d *Driver) Orphans() []*storage.OrphanEntry {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]*storage.OrphanEntry(nil), d.orphans...)
}

// List implements storage.Lister.
func (d *Driver) List(_ context.Context, kind storage.Kind) ([]json.RawMessage, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var records []any
	switch kind {
	case storage.KindRaw:
		for _, r := range d.raw {
			records = append(records, r)
		}
	case storage.KindTransformed:
		for _, r := range d.transformed {
			records = append(records, r)
		}
	case storage.KindOrphan:
		for _, r := range d.orphans {
			records = append(records, r)
		}
	default:
		return nil, storage.UnknownKindError{Kind: kind}
	}

	out := make([]json.RawMessage, 0, len(records))
	for _, r := range records {
		doc, err := json.Marshal(r)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, nil
}

// Close is a no-op.
func (d *Driver) Close() error {
	return nil
}
