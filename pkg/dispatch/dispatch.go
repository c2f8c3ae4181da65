// Package dispatch calls the target model client with a neutral
// conversation and turns every failure into an error result.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strings"

	"github.com/papercomputeco/bridge/pkg/llm"
	"github.com/papercomputeco/bridge/pkg/llm/provider"
	"github.com/papercomputeco/bridge/pkg/llm/schema"
	"github.com/papercomputeco/bridge/pkg/logger"
)

// ErrEmptyResult is diagnosed when a client returns neither a result nor an
// error.
var ErrEmptyResult = errors.New("client returned no result")

// Request is one dispatch.
type Request struct {
	RequestID       string
	Conversation    *llm.Conversation
	MaxOutputTokens *int
	Temperature     *float64
	Thinking        bool
	ThinkingBudget  int
}

// Dispatcher owns a model client.
type Dispatcher struct {
	client provider.Client
	logger *slog.Logger
}

// New creates a Dispatcher. log receives diagnostics.
func New(client provider.Client, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = logger.Nop()
	}
	return &Dispatcher{client: client, logger: log}
}

// Provider names the client's provider.
func (d *Dispatcher) Provider() string {
	return d.client.Name()
}

// SplitLastTurn separates the final user message from the history before it.
// The returned conversation shares System and Tools with conv.
func SplitLastTurn(conv *llm.Conversation) (llm.Input, *llm.Conversation) {
	history := &llm.Conversation{System: conv.System, Tools: conv.Tools}
	last := conv.LastMessage()
	if last == nil || last.Role != llm.RoleUser {
		history.Messages = conv.Messages
		return llm.Input{}, history
	}
	history.Messages = conv.Messages[:len(conv.Messages)-1]

	var input llm.Input
	var text []string
	for _, b := range last.Content {
		switch b.Type {
		case llm.BlockToolResult:
			input.ToolResults = append(input.ToolResults, b)
		case llm.BlockImage:
			input.Attachments = append(input.Attachments, b)
		case llm.BlockText:
			text = append(text, b.Text)
		}
	}
	input.Content = strings.Join(text, "\n")

	return input, history
}

// Options builds the client options for req.
func (d *Dispatcher) Options(req Request, history *llm.Conversation) llm.Options {
	opts := llm.Options{
		Context:         history,
		MaxOutputTokens: req.MaxOutputTokens,
		Temperature:     req.Temperature,
	}
	if req.Thinking {
		if extra := ThinkingOptions(d.client.Name(), req.ThinkingBudget); extra != nil {
			opts.Extra = make(map[string]any, len(extra))
			maps.Copy(opts.Extra, extra)
		}
	}
	return opts
}

// Dispatch asks the client and always returns a result. Client failures are
// diagnosed, logged, and returned as error results.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (result *llm.AskResult) {
	log := d.logger.With("request_id", req.RequestID, "provider", d.client.Name())

	defer func() {
		if r := recover(); r != nil {
			diag := Diagnose(fmt.Errorf("client panicked: %v", r))
			diag.Kind = KindPanic
			result = d.fail(log, diag)
		}
	}()

	input, history := SplitLastTurn(req.Conversation)
	opts := d.Options(req, history)

	log.Debug("dispatching",
		"history", len(history.Messages),
		"tool_results", len(input.ToolResults),
		"attachments", len(input.Attachments),
	)

	res, err := d.client.Ask(ctx, input, opts)
	if err != nil {
		return d.fail(log, Diagnose(err))
	}
	if res == nil {
		return d.fail(log, Diagnose(ErrEmptyResult))
	}
	if !res.OK() {
		log.Warn("client returned an error result", "error_type", errorType(res))
		return res
	}

	d.checkToolCalls(log, req.Conversation.Tools, res)
	return res
}

func (d *Dispatcher) fail(log *slog.Logger, diag *DiagnosticError) *llm.AskResult {
	log.Error("dispatch failed",
		"kind", diag.Kind,
		"message", diag.Message,
		"cause", diag.Cause,
		"code", diag.Code,
		"http_status", diag.HTTPStatus,
		"stack", diag.Stack,
	)
	return llm.NewErrorResult(diag.VendorErrorType(), diag.VendorMessage())
}

// checkToolCalls logs tool calls whose arguments do not match the declared
// schema. The result is returned to the caller as is.
func (d *Dispatcher) checkToolCalls(log *slog.Logger, tools []llm.ToolDefinition, res *llm.AskResult) {
	calls := res.Message.ToolCalls()
	if len(calls) == 0 {
		return
	}

	set, err := schema.Compile(tools)
	if err != nil {
		log.Debug("some tool schemas did not compile", "error", err)
	}
	for _, call := range calls {
		if err := set.Validate(call); err != nil {
			log.Warn("tool call does not match its schema", "tool", call.ToolName, "error", err)
		}
	}
}

func errorType(res *llm.AskResult) string {
	if res.Error == nil {
		return ""
	}
	return res.Error.Type
}
