// Package openai implements a model client for OpenAI's chat completions API.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/papercomputeco/bridge/pkg/llm"
	"github.com/papercomputeco/bridge/pkg/llm/schema"
	"github.com/papercomputeco/bridge/pkg/logger"
)

const (
	providerName = "openai"

	// DefaultBaseURL is the public OpenAI API.
	DefaultBaseURL = "https://api.openai.com"

	// DefaultModel is used when neither the config nor the call names one.
	DefaultModel = "gpt-4o"

	defaultTimeout = 5 * time.Minute
)

// Config configures a Client.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
	Logger  *slog.Logger

	// HTTPClient overrides the client built from Timeout.
	HTTPClient *http.Client
}

// Client calls POST /v1/chat/completions.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Client, filling defaults for empty fields.
func NewClient(cfg Config) (*Client, error) {
	c := &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		httpClient: cfg.HTTPClient,
		logger:     cfg.Logger,
	}

	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.model == "" {
		c.model = DefaultModel
	}
	if c.httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = defaultTimeout
		}
		c.httpClient = &http.Client{Timeout: timeout}
	}
	if c.logger == nil {
		c.logger = logger.Nop()
	}

	return c, nil
}

func (c *Client) Name() string {
	return providerName
}

// Ask sends one non-streaming completion request.
func (c *Client) Ask(ctx context.Context, input llm.Input, opts llm.Options) (*llm.AskResult, error) {
	body, err := c.buildRequest(input, opts)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	c.logger.Debug("sending chat completion",
		"model", body.Model,
		"messages", len(body.Messages),
		"tools", len(body.Tools),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newAPIError(resp.StatusCode, raw)
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	return toResult(&parsed)
}

func (c *Client) buildRequest(input llm.Input, opts llm.Options) (*chatRequest, error) {
	req := &chatRequest{
		Model:               c.model,
		MaxCompletionTokens: opts.MaxOutputTokens,
		Temperature:         opts.Temperature,
	}
	if opts.Model != "" {
		req.Model = opts.Model
	}
	if effort, ok := opts.Extra["reasoning_effort"].(string); ok {
		req.ReasoningEffort = effort
	}

	if opts.Context != nil {
		if opts.Context.System != "" {
			req.Messages = append(req.Messages, chatMessage{Role: "system", Content: opts.Context.System})
		}
		for _, m := range opts.Context.Messages {
			req.Messages = append(req.Messages, convertMessage(m)...)
		}
		for _, t := range opts.Context.Tools {
			params, err := schema.Normalize(t.Parameters)
			if err != nil {
				return nil, fmt.Errorf("tool %q: %w", t.Name, err)
			}
			req.Tools = append(req.Tools, chatTool{
				Type:     "function",
				Function: toolFunction{Name: t.Name, Description: t.Description, Parameters: params},
			})
		}
	}

	final := llm.Message{Role: llm.RoleUser}
	final.Content = append(final.Content, input.ToolResults...)
	if input.Content != "" {
		final.Content = append(final.Content, llm.ContentBlock{Type: llm.BlockText, Text: input.Content})
	}
	final.Content = append(final.Content, input.Attachments...)
	req.Messages = append(req.Messages, convertMessage(final)...)

	return req, nil
}

// convertMessage maps one neutral message onto one or more chat messages.
// Tool results become their own "tool" messages ahead of any user content.
func convertMessage(m llm.Message) []chatMessage {
	if m.Role == llm.RoleAssistant {
		out := chatMessage{Role: "assistant"}
		if text := m.GetText(); text != "" {
			out.Content = text
		}
		for _, call := range m.ToolCalls() {
			out.ToolCalls = append(out.ToolCalls, toolCall{
				ID:       call.ToolUseID,
				Type:     "function",
				Function: functionCall{Name: call.ToolName, Arguments: encodeArguments(call)},
			})
		}
		return []chatMessage{out}
	}

	var out []chatMessage
	var parts []contentPart
	for _, b := range m.Content {
		switch b.Type {
		case llm.BlockToolResult:
			out = append(out, chatMessage{Role: "tool", ToolCallID: b.ToolResultID, Content: b.ToolOutput})
		case llm.BlockText:
			parts = append(parts, contentPart{Type: "text", Text: b.Text})
		case llm.BlockImage:
			url := b.ImageURL
			if url == "" {
				url = "data:" + b.MediaType + ";base64," + b.ImageBase64
			}
			parts = append(parts, contentPart{Type: "image_url", ImageURL: &imageURL{URL: url}})
		}
	}

	switch {
	case len(parts) == 1 && parts[0].Type == "text":
		out = append(out, chatMessage{Role: "user", Content: parts[0].Text})
	case len(parts) > 0:
		out = append(out, chatMessage{Role: "user", Content: parts})
	}
	return out
}

func encodeArguments(call llm.ContentBlock) string {
	if call.ToolInput == nil && call.ToolInputRaw != "" {
		return call.ToolInputRaw
	}
	if call.ToolInput == nil {
		return "{}"
	}
	raw, err := json.Marshal(call.ToolInput)
	if err != nil {
		return "{}"
	}
	return string(raw)
}

func toResult(resp *chatResponse) (*llm.AskResult, error) {
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%s returned no choices", providerName)
	}
	choice := resp.Choices[0]

	msg := llm.Message{Role: llm.RoleAssistant}
	if choice.Message.ReasoningContent != "" {
		msg.Content = append(msg.Content, llm.ContentBlock{Type: llm.BlockThinking, Thinking: choice.Message.ReasoningContent})
	}
	if text, ok := choice.Message.Content.(string); ok && text != "" {
		msg.Content = append(msg.Content, llm.ContentBlock{Type: llm.BlockText, Text: text})
	}
	for _, call := range choice.Message.ToolCalls {
		block := llm.ContentBlock{Type: llm.BlockToolUse, ToolUseID: call.ID, ToolName: call.Function.Name}
		var args map[string]any
		if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err == nil {
			block.ToolInput = args
		} else {
			block.ToolInputRaw = call.Function.Arguments
		}
		msg.Content = append(msg.Content, block)
	}

	result := &llm.AskResult{
		Type:       llm.ResultSuccess,
		Model:      resp.Model,
		Message:    msg,
		StopReason: convertStopReason(choice.FinishReason),
	}
	if resp.Usage != nil {
		result.Usage = llm.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		}
		if resp.Usage.PromptTokensDetails != nil {
			result.Usage.CacheReadInputTokens = resp.Usage.PromptTokensDetails.CachedTokens
		}
	}

	return result, nil
}

func convertStopReason(finish string) string {
	switch finish {
	case "length":
		return llm.StopMaxTokens
	case "tool_calls", "function_call":
		return llm.StopToolUse
	default:
		return llm.StopEndTurn
	}
}

func newAPIError(status int, body []byte) *llm.APIError {
	apiErr := &llm.APIError{
		Provider:   providerName,
		StatusCode: status,
		Body:       string(body),
	}

	var parsed errorResponse
	if err := json.Unmarshal(body, &parsed); err == nil {
		apiErr.Type = parsed.Error.Type
		apiErr.Message = parsed.Error.Message
		if parsed.Error.Code != nil {
			apiErr.Code = fmt.Sprint(parsed.Error.Code)
		}
	}

	return apiErr
}
