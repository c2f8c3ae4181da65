// Package ollama implements a model client for a local Ollama server.
package ollama

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

	"github.com/google/uuid"

	"github.com/papercomputeco/bridge/pkg/llm"
	"github.com/papercomputeco/bridge/pkg/llm/schema"
	"github.com/papercomputeco/bridge/pkg/logger"
)

const (
	providerName = "ollama"

	// DefaultBaseURL is where "ollama serve" listens by default.
	DefaultBaseURL = "http://localhost:11434"

	// DefaultModel is used when neither the config nor the call names one.
	DefaultModel = "llama3.2"

	defaultTimeout = 5 * time.Minute
)

// Config configures a Client.
type Config struct {
	BaseURL string
	Model   string
	Timeout time.Duration
	Logger  *slog.Logger

	HTTPClient *http.Client
}

// Client calls POST /api/chat with streaming disabled.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Client, filling defaults for empty fields.
func NewClient(cfg Config) (*Client, error) {
	c := &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
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

func (c *Client) Ask(ctx context.Context, input llm.Input, opts llm.Options) (*llm.AskResult, error) {
	body, err := c.buildRequest(input, opts)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debug("sending ollama chat",
		"model", body.Model,
		"messages", len(body.Messages),
		"think", body.Think != nil && *body.Think,
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

	var parsed chatResponse
	decodeErr := json.Unmarshal(raw, &parsed)

	if resp.StatusCode < 200 || resp.StatusCode > 299 || parsed.Error != "" {
		return nil, &llm.APIError{
			Provider:   providerName,
			StatusCode: resp.StatusCode,
			Message:    parsed.Error,
			Body:       string(raw),
		}
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("decoding response: %w", decodeErr)
	}

	return toResult(&parsed), nil
}

func (c *Client) buildRequest(input llm.Input, opts llm.Options) (*chatRequest, error) {
	req := &chatRequest{Model: c.model}
	if opts.Model != "" {
		req.Model = opts.Model
	}
	if think, ok := opts.Extra["think"].(bool); ok {
		req.Think = &think
	}
	if opts.Temperature != nil || opts.MaxOutputTokens != nil {
		req.Options = &chatOptions{Temperature: opts.Temperature, NumPredict: opts.MaxOutputTokens}
	}

	// Tool messages carry the tool name, so remember it per call ID.
	names := map[string]string{}

	if opts.Context != nil {
		if opts.Context.System != "" {
			req.Messages = append(req.Messages, chatMessage{Role: "system", Content: opts.Context.System})
		}
		for _, m := range opts.Context.Messages {
			req.Messages = append(req.Messages, convertMessage(m, names)...)
		}
		for _, t := range opts.Context.Tools {
			params, err := schema.Normalize(t.Parameters)
			if err != nil {
				return nil, fmt.Errorf("tool %q: %w", t.Name, err)
			}
			req.Tools = append(req.Tools, chatTool{
				Type:     "function",
				Function: toolSchema{Name: t.Name, Description: t.Description, Parameters: params},
			})
		}
	}

	final := llm.Message{Role: llm.RoleUser}
	final.Content = append(final.Content, input.ToolResults...)
	if input.Content != "" {
		final.Content = append(final.Content, llm.ContentBlock{Type: llm.BlockText, Text: input.Content})
	}
	final.Content = append(final.Content, input.Attachments...)
	req.Messages = append(req.Messages, convertMessage(final, names)...)

	return req, nil
}

func convertMessage(m llm.Message, names map[string]string) []chatMessage {
	if m.Role == llm.RoleAssistant {
		out := chatMessage{Role: "assistant", Content: m.GetText()}
		for _, call := range m.ToolCalls() {
			names[call.ToolUseID] = call.ToolName
			args := call.ToolInput
			if args == nil {
				args = map[string]any{}
			}
			out.ToolCalls = append(out.ToolCalls, toolCall{
				ID:       call.ToolUseID,
				Function: toolFunction{Name: call.ToolName, Arguments: args},
			})
		}
		return []chatMessage{out}
	}

	var out []chatMessage
	user := chatMessage{Role: "user"}
	var text []string
	for _, b := range m.Content {
		switch b.Type {
		case llm.BlockToolResult:
			out = append(out, chatMessage{Role: "tool", Content: b.ToolOutput, ToolName: names[b.ToolResultID]})
		case llm.BlockText:
			text = append(text, b.Text)
		case llm.BlockImage:
			// Ollama only accepts inline image data.
			if b.ImageBase64 != "" {
				user.Images = append(user.Images, b.ImageBase64)
			}
		}
	}

	user.Content = strings.Join(text, "\n")
	if user.Content != "" || len(user.Images) > 0 {
		out = append(out, user)
	}
	return out
}

func toResult(resp *chatResponse) *llm.AskResult {
	msg := llm.Message{Role: llm.RoleAssistant}
	if resp.Message.Thinking != "" {
		msg.Content = append(msg.Content, llm.ContentBlock{Type: llm.BlockThinking, Thinking: resp.Message.Thinking})
	}
	if resp.Message.Content != "" {
		msg.Content = append(msg.Content, llm.ContentBlock{Type: llm.BlockText, Text: resp.Message.Content})
	}
	for _, call := range resp.Message.ToolCalls {
		id := call.ID
		if id == "" {
			id = "toolu_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:24]
		}
		msg.Content = append(msg.Content, llm.ContentBlock{
			Type:      llm.BlockToolUse,
			ToolUseID: id,
			ToolName:  call.Function.Name,
			ToolInput: call.Function.Arguments,
		})
	}

	stop := llm.StopEndTurn
	switch {
	case len(resp.Message.ToolCalls) > 0:
		stop = llm.StopToolUse
	case resp.DoneReason == "length":
		stop = llm.StopMaxTokens
	}

	return &llm.AskResult{
		Type:       llm.ResultSuccess,
		Model:      resp.Model,
		Message:    msg,
		StopReason: stop,
		Usage: llm.Usage{
			InputTokens:  resp.PromptEvalCount,
			OutputTokens: resp.EvalCount,
		},
	}
}
