package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/papercomputeco/bridge/pkg/capability"
	"github.com/papercomputeco/bridge/pkg/dispatch"
	"github.com/papercomputeco/bridge/pkg/llm"
	"github.com/papercomputeco/bridge/pkg/storage"
	"github.com/papercomputeco/bridge/pkg/stream"
	"github.com/papercomputeco/bridge/pkg/transform"
	"github.com/papercomputeco/bridge/pkg/utils"
)

const previewLen = 80

// PipelineConfig holds the collaborators of a Pipeline. Dispatcher is
// required; the rest default.
type PipelineConfig struct {
	Engine     *transform.Engine
	Registry   *capability.Registry
	Validator  *capability.Validator
	Dispatcher *dispatch.Dispatcher
	Encoder    *stream.Encoder

	// Target describes the provider the dispatcher talks to, for logs.
	Target storage.ProviderConfig

	Logger *slog.Logger
}

// Pipeline translates one Messages API call and answers it from the target
// provider: transform, validate, dispatch, synthesize.
type Pipeline struct {
	engine     *transform.Engine
	registry   *capability.Registry
	validator  *capability.Validator
	dispatcher *dispatch.Dispatcher
	encoder    *stream.Encoder
	target     storage.ProviderConfig
	logger     *slog.Logger
}

// NewPipeline creates a Pipeline.
func NewPipeline(c PipelineConfig) (*Pipeline, error) {
	if c.Dispatcher == nil {
		return nil, errors.New("pipeline requires a dispatcher")
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Engine == nil {
		c.Engine = transform.NewEngine(nil)
	}
	if c.Registry == nil {
		c.Registry = capability.DefaultRegistry()
	}
	if c.Validator == nil {
		c.Validator = capability.NewValidator(c.Logger, capability.EstimateTokens)
	}
	if c.Encoder == nil {
		c.Encoder = stream.NewEncoder(stream.DefaultChunkSize)
	}
	if c.Target.Provider == "" {
		c.Target.Provider = c.Dispatcher.Provider()
	}

	return &Pipeline{
		engine:     c.Engine,
		registry:   c.Registry,
		validator:  c.Validator,
		dispatcher: c.Dispatcher,
		encoder:    c.Encoder,
		target:     c.Target,
		logger:     c.Logger,
	}, nil
}

// Engine returns the transform engine, whose exclusion list may be updated
// at runtime.
func (p *Pipeline) Engine() *transform.Engine {
	return p.engine
}

// Target returns the configured target provider.
func (p *Pipeline) Target() storage.ProviderConfig {
	return p.target
}

// Outcome is the synthesized answer to one translated call.
type Outcome struct {
	Status int
	Header http.Header
	Body   []byte

	Translation *transform.Translation
	Validation  capability.Result
	Result      *llm.AskResult
	Streaming   bool
}

// Run translates and answers body. An error means the call was not
// translated and should pass through to the vendor; it is never a provider
// failure, which is answered with a vendor-shaped error instead.
func (p *Pipeline) Run(ctx context.Context, requestID string, body []byte) (*Outcome, error) {
	tr, err := p.engine.Translate(body)
	if err != nil {
		return nil, err
	}

	log := p.logger.With("request_id", requestID, "model", tr.Request.Model)

	desc, _ := p.registry.Lookup(p.target.Model)
	validation := p.validator.Validate(desc, capability.ParamsFrom(tr.Request, tr.Conversation))

	maxTokens := tr.Request.MaxTokens
	if adj := validation.Adjustments.MaxOutputTokens; adj != nil {
		log.Debug("max_tokens adjusted", "from", maxTokens, "to", *adj)
		maxTokens = *adj
	}

	dreq := dispatch.Request{
		RequestID:    requestID,
		Conversation: tr.Conversation,
		Temperature:  tr.Request.Temperature,
		Thinking:     tr.Request.Thinking.Enabled(),
	}
	if validation.Adjustments.DropThinking {
		log.Debug("thinking dropped, target does not support it")
		dreq.Thinking = false
	}
	if maxTokens > 0 {
		dreq.MaxOutputTokens = &maxTokens
	}
	if dreq.Thinking {
		dreq.ThinkingBudget = tr.Request.Thinking.BudgetTokens
	}

	result := p.dispatcher.Dispatch(ctx, dreq)

	out := &Outcome{
		Status:      http.StatusOK,
		Header:      http.Header{},
		Translation: tr,
		Validation:  validation,
		Result:      result,
		Streaming:   tr.Request.Stream,
	}
	// A stream that has started answers 200 and carries the failure as an
	// error event.
	if !result.OK() && !out.Streaming {
		out.Status = transform.ErrorStatus(errorType(result))
	}

	if err := p.synthesize(out, tr.Request.Model); err != nil {
		return nil, err
	}

	log.Debug("request translated",
		"provider", p.target.Provider,
		"streaming", out.Streaming,
		"status", out.Status,
		"stop_reason", result.WireStopReason(),
		"content_preview", utils.Truncate(result.Message.GetText(), previewLen),
	)
	return out, nil
}

// synthesize renders out.Result in the vendor wire format.
func (p *Pipeline) synthesize(out *Outcome, model string) error {
	id := transform.NewMessageID()

	if out.Streaming {
		var buf bytes.Buffer
		if err := p.encoder.Encode(&buf, out.Result, stream.Meta{ID: id, Model: model}); err != nil {
			return fmt.Errorf("encoding event stream: %w", err)
		}
		out.Header.Set("Content-Type", "text/event-stream")
		out.Header.Set("Cache-Control", "no-cache")
		out.Body = buf.Bytes()
		return nil
	}

	var payload any
	if out.Result.OK() {
		payload = transform.ToMessageResponse(out.Result, model, id)
	} else {
		payload = transform.ErrorResponse(errorType(out.Result), errorMessage(out.Result))
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding response: %w", err)
	}
	out.Header.Set("Content-Type", "application/json")
	out.Body = body
	return nil
}

func errorType(r *llm.AskResult) string {
	if r == nil || r.Error == nil || r.Error.Type == "" {
		return transform.ErrorTypeAPI
	}
	return r.Error.Type
}

func errorMessage(r *llm.AskResult) string {
	if r == nil || r.Error == nil {
		return "unknown error"
	}
	return r.Error.Message
}
