package llm

// ResultType discriminates AskResult.
type ResultType string

const (
	ResultSuccess ResultType = "success"
	ResultFailed  ResultType = "error"
)

// Stop reasons in vendor vocabulary.
const (
	StopEndTurn   = "end_turn"
	StopToolUse   = "tool_use"
	StopMaxTokens = "max_tokens"
)

// AskResult is what a model client returns: either a success carrying the
// assistant message, or an error.
type AskResult struct {
	Type       ResultType   `json:"type"`
	Model      string       `json:"model,omitempty"`
	Message    Message      `json:"message,omitzero"`
	Usage      Usage        `json:"usage,omitzero"`
	StopReason string       `json:"stop_reason,omitempty"`
	Error      *ResultError `json:"error,omitempty"`
}

// ResultError is the vendor-facing part of a failed result. Type uses the
// vendor's error vocabulary, e.g. "api_error" or "rate_limit_error".
type ResultError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Usage counts tokens for one exchange.
type Usage struct {
	InputTokens              int `json:"input_tokens"`
	OutputTokens             int `json:"output_tokens"`
	CacheCreationInputTokens int `json:"cache_creation_input_tokens,omitempty"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens,omitempty"`
}

// NewErrorResult builds an error result.
func NewErrorResult(errType, message string) *AskResult {
	return &AskResult{
		Type:  ResultFailed,
		Error: &ResultError{Type: errType, Message: message},
	}
}

// OK reports whether r is a success.
func (r *AskResult) OK() bool {
	return r != nil && r.Type == ResultSuccess
}

// WireStopReason is the stop reason reported to vendor clients: tool_use
// whenever the message calls a tool, end_turn otherwise. The client's own
// StopReason is kept for the logs only.
func (r *AskResult) WireStopReason() string {
	if len(r.Message.ToolCalls()) > 0 {
		return StopToolUse
	}
	return StopEndTurn
}
