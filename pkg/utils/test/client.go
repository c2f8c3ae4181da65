package testutils

import (
	"context"
	"sync"

	"github.com/papercomputeco/bridge/pkg/llm"
)

// MockClient is a model client that records its calls and answers with a
// configurable result.
type MockClient struct {
	ProviderName string

	// Result is returned by Ask when Err is nil.
	Result *llm.AskResult

	// Err is returned by Ask.
	Err error

	// Panic, when set, is raised by Ask.
	Panic any

	mu    sync.Mutex
	calls []MockCall
}

// MockCall is one recorded Ask.
type MockCall struct {
	Input   llm.Input
	Options llm.Options
}

// NewMockClient creates a client answering text.
func NewMockClient(name, text string) *MockClient {
	return &MockClient{
		ProviderName: name,
		Result: &llm.AskResult{
			Type:       llm.ResultSuccess,
			Model:      "mock-model",
			Message:    llm.NewTextMessage(llm.RoleAssistant, text),
			Usage:      llm.Usage{InputTokens: 3, OutputTokens: 2},
			StopReason: llm.StopEndTurn,
		},
	}
}

func (m *MockClient) Name() string {
	return m.ProviderName
}

func (m *MockClient) Ask(_ context.Context, input llm.Input, opts llm.Options) (*llm.AskResult, error) {
	m.mu.Lock()
	m.calls = append(m.calls, MockCall{Input: input, Options: opts})
	m.mu.Unlock()

	if m.Panic != nil {
		panic(m.Panic)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Result, nil
}

// Calls returns the recorded calls.
func (m *MockClient) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockCall(nil), m.calls...)
}
