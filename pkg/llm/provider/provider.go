// Package provider defines the model client contract and builds the client
// for a configured target provider.
package provider

import (
	"context"
	"errors"

	"github.com/papercomputeco/bridge/pkg/llm"
)

// ErrMissingAPIKey is returned when a provider that needs a credential is
// configured without one.
var ErrMissingAPIKey = errors.New("missing API key")

// Client answers a final user turn given the conversation before it.
// Implementations return a non-nil error only when the call itself failed;
// a provider that answered with an error result may return that result with
// a nil error instead.
type Client interface {
	// Name returns the provider name, e.g. "openai".
	Name() string

	// Ask sends input with opts.Context as history.
	Ask(ctx context.Context, input llm.Input, opts llm.Options) (*llm.AskResult, error)
}
