// Package jsonl provides a storage driver writing one JSON object per line.
//
// Raw pairs and orphan entries share raw.jsonl; orphans carry
// "orphaned": true. Transformed entries go to transformed.jsonl.
package jsonl

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"github.com/papercomputeco/bridge/pkg/storage"
)

const (
	RawFile         = "raw.jsonl"
	TransformedFile = "transformed.jsonl"
)

// Driver appends records to files in a directory.
type Driver struct {
	dir string

	mu          sync.Mutex
	raw         *os.File
	transformed *os.File
}

// NewDriver opens (creating as needed) the log files in dir.
func NewDriver(dir string) (*Driver, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}

	raw, err := openAppend(filepath.Join(dir, RawFile))
	if err != nil {
		return nil, err
	}
	transformed, err := openAppend(filepath.Join(dir, TransformedFile))
	if err != nil {
		raw.Close()
		return nil, err
	}

	return &Driver{dir: dir, raw: raw, transformed: transformed}, nil
}

func openAppend(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	return f, nil
}

// Dir returns the log directory.
func (d *Driver) Dir() string {
	return d.dir
}

func (d *Driver) WriteRaw(_ context.Context, pair *storage.RawPair) error {
	if pair == nil {
		return storage.ErrNilRecord
	}
	storage.Stamp(pair, time.Now().UTC())
	return d.append(d.raw, pair)
}

func (d *Driver) WriteTransformed(_ context.Context, entry *storage.TransformedEntry) error {
	if entry == nil {
		return storage.ErrNilRecord
	}
	storage.Stamp(entry, time.Now().UTC())
	return d.append(d.transformed, entry)
}

func (d *Driver) WriteOrphan(_ context.Context, entry *storage.OrphanEntry) error {
	if entry == nil {
		return storage.ErrNilRecord
	}
	storage.Stamp(entry, time.Now().UTC())
	return d.append(d.raw, entry)
}

func (d *Driver) append(f *os.File, record any) error {
	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encoding record: %w", err)
	}
	line = append(line, '\n')

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("writing %s: %w", f.Name(), err)
	}
	return nil
}

// List implements storage.Lister by reading the files back.
func (d *Driver) List(_ context.Context, kind storage.Kind) ([]json.RawMessage, error) {
	var (
		name   string
		filter func([]byte) bool
	)
	switch kind {
	case storage.KindRaw:
		name = RawFile
		filter = func(line []byte) bool { return !gjson.GetBytes(line, "orphaned").Bool() }
	case storage.KindOrphan:
		name = RawFile
		filter = func(line []byte) bool { return gjson.GetBytes(line, "orphaned").Bool() }
	case storage.KindTransformed:
		name = TransformedFile
		filter = func([]byte) bool { return true }
	default:
		return nil, storage.UnknownKindError{Kind: kind}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	f, err := os.Open(filepath.Join(d.dir, name))
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", name, err)
	}
	defer f.Close()

	var out []json.RawMessage
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 64*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 || !gjson.ValidBytes(line) || !filter(line) {
			continue
		}
		out = append(out, append(json.RawMessage(nil), line...))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	return out, nil
}

// Close closes both files.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	rawErr := d.raw.Close()
	transformedErr := d.transformed.Close()
	if rawErr != nil {
		return rawErr
	}
	return transformedErr
}
