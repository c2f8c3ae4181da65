// Package nop provides the publisher used when no event broker is
// configured.
package nop

import (
	"context"
	"sync/atomic"

	"github.com/papercomputeco/bridge/pkg/eventstream"
)

// Publisher drops every event. It only counts what it was handed so the
// serve command can report events that would have been published.
type Publisher struct {
	dropped atomic.Int64
}

func NewPublisher() *Publisher {
	return &Publisher{}
}

// PublishTurn rejects nil events and discards the rest.
func (p *Publisher) PublishTurn(_ context.Context, event *eventstream.TurnTransformedEvent) error {
	if event == nil {
		return eventstream.ErrNilTurnEvent
	}
	p.dropped.Add(1)
	return nil
}

// Dropped returns the number of events discarded so far.
func (p *Publisher) Dropped() int64 {
	return p.dropped.Load()
}

func (p *Publisher) Close() error {
	return nil
}
