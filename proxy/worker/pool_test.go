package worker

import (
	"bytes"
	"context"
	"errors"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/bridge/pkg/eventstream"
	"github.com/papercomputeco/bridge/pkg/llm"
	"github.com/papercomputeco/bridge/pkg/logger"
	"github.com/papercomputeco/bridge/pkg/storage"
	"github.com/papercomputeco/bridge/pkg/storage/inmemory"
)

// failingDriver rejects every write.
type failingDriver struct{}

func (failingDriver) WriteRaw(context.Context, *storage.RawPair) error {
	return errors.New("disk full")
}
func (failingDriver) WriteTransformed(context.Context, *storage.TransformedEntry) error {
	return errors.New("disk full")
}
func (failingDriver) WriteOrphan(context.Context, *storage.OrphanEntry) error {
	return errors.New("disk full")
}
func (failingDriver) Close() error { return nil }

// recordingPublisher keeps published events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []*eventstream.TurnTransformedEvent
	err    error
}

func (r *recordingPublisher) PublishTurn(_ context.Context, e *eventstream.TurnTransformedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, e)
	return nil
}

func (r *recordingPublisher) Close() error { return nil }

// newTestPool creates a worker pool backed by an in-memory driver.
// Callers should "wp.Close()" to drain enqueued jobs before asserting storage state.
func newTestPool(pub eventstream.Publisher) (*Pool, *inmemory.Driver) {
	driver := inmemory.NewDriver()

	wp, err := NewPool(&Config{
		Driver:    driver,
		Publisher: pub,
		Logger:    logger.Nop(),
	})
	Expect(err).NotTo(HaveOccurred())

	return wp, driver
}

func transformedEntry(id string) *storage.TransformedEntry {
	return &storage.TransformedEntry{
		RequestID: id,
		NeutralConversation: &llm.Conversation{
			Messages: []llm.Message{llm.NewTextMessage("user", "What is 2+2?")},
		},
		ProviderConfig: storage.ProviderConfig{Provider: "openai", Model: "gpt-4o"},
		Result: &llm.AskResult{
			Type:    llm.ResultSuccess,
			Message: llm.NewTextMessage("assistant", "4"),
		},
	}
}

var _ = Describe("Worker Pool", func() {
	Describe("NewPool", func() {
		It("requires a driver", func() {
			_, err := NewPool(&Config{})
			Expect(err).To(HaveOccurred())
		})

		It("fills defaults", func() {
			c := &Config{Driver: inmemory.NewDriver()}
			wp, err := NewPool(c)
			Expect(err).NotTo(HaveOccurred())
			defer wp.Close()

			Expect(c.NumWorkers).To(Equal(defaultNumWorkers))
			Expect(c.QueueSize).To(Equal(defaultJobQueueSize))
			Expect(c.Logger).NotTo(BeNil())
		})
	})

	Describe("Enqueue", func() {
		It("returns true when the queue has capacity", func() {
			wp, _ := newTestPool(nil)
			Expect(wp.Enqueue(Job{Raw: &storage.RawPair{RequestID: "req_1"}})).To(BeTrue())
			wp.Close()
		})

		It("returns false once the pool is closed", func() {
			wp, _ := newTestPool(nil)
			wp.Close()
			Expect(wp.Enqueue(Job{Raw: &storage.RawPair{}})).To(BeFalse())
		})

		It("tolerates Close being called twice", func() {
			wp, _ := newTestPool(nil)
			wp.Close()
			Expect(wp.Close).NotTo(Panic())
		})

		It("drops jobs when the queue is full", func() {
			block := make(chan struct{})
			wp, err := NewPool(&Config{
				Driver:     &blockingDriver{Driver: inmemory.NewDriver(), release: block},
				NumWorkers: 1,
				QueueSize:  1,
				Logger:     logger.Nop(),
			})
			Expect(err).NotTo(HaveOccurred())

			// One job is held by the worker, one fills the queue.
			Expect(wp.Enqueue(Job{Raw: &storage.RawPair{}})).To(BeTrue())
			Eventually(func() bool {
				return wp.Enqueue(Job{Raw: &storage.RawPair{}})
			}).Should(BeTrue())
			Expect(wp.Enqueue(Job{Raw: &storage.RawPair{}})).To(BeFalse())

			close(block)
			wp.Close()
		})
	})

	Describe("processing", func() {
		It("writes every record a job carries", func() {
			wp, driver := newTestPool(nil)

			wp.Enqueue(Job{
				Raw:         &storage.RawPair{RequestID: "req_1"},
				Transformed: transformedEntry("req_1"),
			})
			wp.Enqueue(Job{Orphan: &storage.OrphanEntry{RequestID: "req_2"}})
			wp.Close()

			Expect(driver.Raw()).To(HaveLen(1))
			Expect(driver.Transformed()).To(HaveLen(1))
			Expect(driver.Transformed()[0].LoggedAt).NotTo(BeZero())
			Expect(driver.Orphans()).To(HaveLen(1))
		})

		It("runs Done after the records are written", func() {
			wp, driver := newTestPool(nil)

			var written int
			wp.Enqueue(Job{
				Raw: &storage.RawPair{RequestID: "req_1"},
				Done: func() {
					written = len(driver.Raw())
				},
			})
			wp.Close()

			Expect(written).To(Equal(1))
		})

		It("publishes turn events", func() {
			pub := &recordingPublisher{}
			wp, _ := newTestPool(pub)

			event := eventstream.NewTurnEvent(llm.ConversationTurn{Provider: "openai"}, eventstream.TurnRequestMeta{RequestID: "req_1"})
			wp.Enqueue(Job{Transformed: transformedEntry("req_1"), Event: event})
			wp.Close()

			Expect(pub.events).To(ConsistOf(event))
		})

		It("swallows sink and publisher failures", func() {
			var buf bytes.Buffer
			pub := &recordingPublisher{err: errors.New("broker down")}
			wp, err := NewPool(&Config{
				Driver:    failingDriver{},
				Publisher: pub,
				Logger:    logger.New(logger.WithWriter(&buf), logger.WithJSON(true)),
			})
			Expect(err).NotTo(HaveOccurred())

			event := eventstream.NewTurnEvent(llm.ConversationTurn{}, eventstream.TurnRequestMeta{RequestID: "req_9"})
			Expect(wp.Enqueue(Job{Raw: &storage.RawPair{RequestID: "req_9"}, Event: event})).To(BeTrue())
			wp.Close()

			Expect(buf.String()).To(ContainSubstring("async raw log write failed"))
			Expect(buf.String()).To(ContainSubstring("failed to publish turn event"))
			Expect(buf.String()).To(ContainSubstring("req_9"))
		})
	})
})

// blockingDriver holds WriteRaw until release is closed.
type blockingDriver struct {
	storage.Driver
	release chan struct{}
}

func (b *blockingDriver) WriteRaw(ctx context.Context, pair *storage.RawPair) error {
	<-b.release
	return b.Driver.WriteRaw(ctx, pair)
}
