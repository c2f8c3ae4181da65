// Package session tracks in-flight intercepted requests so that requests
// still pending at shutdown can be logged as orphans.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/bridge/pkg/normalize"
	"github.com/papercomputeco/bridge/pkg/storage"
)

// NewID returns a request id of the form req_<unix-millis>_<8 hex>.
// Ids are unique with high probability, not guaranteed.
func NewID() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("req_%d_%s", time.Now().UnixMilli(), suffix)
}

// Entry is a request that has started but not yet been logged.
type Entry struct {
	RequestID string
	Request   *normalize.Request
	StartedAt time.Time
}

// OrphanWriter receives orphan records on flush.
type OrphanWriter interface {
	WriteOrphan(ctx context.Context, entry *storage.OrphanEntry) error
}

// Tracker holds the pending request map.
type Tracker struct {
	mu      sync.Mutex
	pending map[string]*Entry

	logger *slog.Logger
	now    func() time.Time
}

// NewTracker creates an empty Tracker.
func NewTracker(logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		pending: make(map[string]*Entry),
		logger:  logger,
		now:     time.Now,
	}
}

// Start registers a pending request and returns its id.
func (t *Tracker) Start(req *normalize.Request) string {
	id := NewID()

	t.mu.Lock()
	t.pending[id] = &Entry{
		RequestID: id,
		Request:   req,
		StartedAt: t.now().UTC(),
	}
	t.mu.Unlock()

	return id
}

// Finish retires a pending request. It reports whether id was pending.
func (t *Tracker) Finish(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.pending[id]; !ok {
		return false
	}
	delete(t.pending, id)
	return true
}

// Pending returns a snapshot of pending entries ordered by start time.
func (t *Tracker) Pending() []Entry {
	t.mu.Lock()
	out := make([]Entry, 0, len(t.pending))
	for _, e := range t.pending {
		out = append(out, *e)
	}
	t.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].RequestID < out[j].RequestID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

// Len returns the number of pending requests.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// FlushOrphans writes every pending entry to w as an orphan record and
// empties the map. Entries are removed even when a write fails; the joined
// write errors are returned.
func (t *Tracker) FlushOrphans(ctx context.Context, w OrphanWriter) error {
	t.mu.Lock()
	entries := t.pending
	t.pending = make(map[string]*Entry)
	t.mu.Unlock()

	if len(entries) == 0 {
		return nil
	}

	t.logger.Info("flushing orphaned requests", "count", len(entries))

	var errs []error
	for id, e := range entries {
		err := w.WriteOrphan(ctx, &storage.OrphanEntry{
			Orphaned:  true,
			RequestID: id,
			Request:   e.Request,
			StartedAt: e.StartedAt,
		})
		if err != nil {
			t.logger.Error("failed to write orphan", "request_id", id, "error", err)
			errs = append(errs, fmt.Errorf("writing orphan %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}
