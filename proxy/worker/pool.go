// Package worker provides an asynchronous worker pool that persists traffic
// records to a storage.Driver and publishes turn events.
//
// The pool decouples log writes from the interception hot path: a slow or
// failing sink never delays or fails the caller's request.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/papercomputeco/bridge/pkg/eventstream"
	"github.com/papercomputeco/bridge/pkg/storage"
)

var (
	defaultNumWorkers   uint = 3
	defaultJobQueueSize uint = 256
)

// Job is a unit of work for the worker pool. Any field may be nil.
type Job struct {
	Raw         *storage.RawPair
	Transformed *storage.TransformedEntry
	Orphan      *storage.OrphanEntry
	Event       *eventstream.TurnTransformedEvent

	// Done runs after the job's records were written, whether or not the
	// writes succeeded. It does not run for dropped jobs.
	Done func()
}

func (j Job) requestID() string {
	switch {
	case j.Transformed != nil:
		return j.Transformed.RequestID
	case j.Raw != nil:
		return j.Raw.RequestID
	case j.Orphan != nil:
		return j.Orphan.RequestID
	case j.Event != nil:
		return j.Event.RequestMeta.RequestID
	}
	return ""
}

// Config is the configuration options for the worker pool.
type Config struct {
	// Driver is the storage backend records are written to.
	Driver storage.Driver

	// Publisher receives turn events. Optional.
	Publisher eventstream.Publisher

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 256).
	QueueSize uint

	Logger *slog.Logger
}

// Pool processes log jobs asynchronously via a worker pool.
type Pool struct {
	config *Config
	queue  chan Job
	wg     sync.WaitGroup
	logger *slog.Logger

	// mu guards closed against sends on a closed queue
	mu     sync.RWMutex
	closed bool
}

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.Driver == nil {
		return nil, fmt.Errorf("worker pool requires a storage driver")
	}

	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	if c.Logger == nil {
		c.Logger = slog.Default()
	}

	wp := &Pool{
		config: c,
		queue:  make(chan Job, c.QueueSize),
		logger: c.Logger,
	}

	wp.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go wp.worker(i)
	}

	return wp, nil
}

// Enqueue submits a job for processing by the worker pool.
// Returns true if enqueued, false if the queue is full or the pool is closed,
// resulting in the job being dropped.
func (p *Pool) Enqueue(job Job) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.logger.Warn("job not queued, pool closed", "request_id", job.requestID())
		return false
	}

	select {
	case p.queue <- job:
		p.logger.Debug("job queued", "request_id", job.requestID())
		return true
	default:
		p.logger.Error("job not queued, queue full, job dropped", "request_id", job.requestID())
		return false
	}
}

// Close signals workers to stop and waits for in-flight jobs to drain.
// Call this during graceful shutdown after the proxy HTTP server has stopped.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()
}

// worker is the inner worker thread that continuously pulls jobs off the jobs queue
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("worker started", "worker_id", id)

	for job := range p.queue {
		p.processJob(job)
	}

	p.logger.Debug("log worker stopped", "worker_id", id)
}

// processJob writes each record the job carries, then publishes its event.
// Failures are logged and otherwise swallowed.
func (p *Pool) processJob(job Job) {
	ctx := context.Background()
	id := job.requestID()

	if job.Done != nil {
		defer job.Done()
	}

	if job.Raw != nil {
		if err := p.config.Driver.WriteRaw(ctx, job.Raw); err != nil {
			p.logger.Error("async raw log write failed", "request_id", id, "error", err)
		}
	}

	if job.Transformed != nil {
		if err := p.config.Driver.WriteTransformed(ctx, job.Transformed); err != nil {
			p.logger.Error("async transformed log write failed", "request_id", id, "error", err)
		}
	}

	if job.Orphan != nil {
		if err := p.config.Driver.WriteOrphan(ctx, job.Orphan); err != nil {
			p.logger.Error("async orphan log write failed", "request_id", id, "error", err)
		}
	}

	if job.Event != nil && p.config.Publisher != nil {
		if err := p.config.Publisher.PublishTurn(ctx, job.Event); err != nil {
			p.logger.Warn("failed to publish turn event", "request_id", id, "error", err)
			return
		}
		p.logger.Debug("turn event published", "request_id", id, "event_id", job.Event.EventID)
	}

	p.logger.Debug("records stored", "request_id", id)
}
