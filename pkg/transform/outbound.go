package transform

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/papercomputeco/bridge/pkg/llm"
	"github.com/papercomputeco/bridge/pkg/llm/provider/anthropic"
)

// Vendor error types.
const (
	ErrorTypeInvalidRequest = "invalid_request_error"
	ErrorTypeAuthentication = "authentication_error"
	ErrorTypePermission     = "permission_error"
	ErrorTypeNotFound       = "not_found_error"
	ErrorTypeRateLimit      = "rate_limit_error"
	ErrorTypeAPI            = "api_error"
	ErrorTypeOverloaded     = "overloaded_error"
)

// NewMessageID returns an id in the vendor's "msg_" form.
func NewMessageID() string {
	return "msg_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:24]
}

// ToolArguments serializes a tool call's arguments. Arguments that never
// parsed are returned as the original text.
func ToolArguments(call llm.ContentBlock) string {
	if call.ToolInput == nil {
		if call.ToolInputRaw != "" {
			return call.ToolInputRaw
		}
		return "{}"
	}
	raw, err := json.Marshal(call.ToolInput)
	if err != nil {
		return "{}"
	}
	return string(raw)
}

// ResponseBlocks lays out a result message in response order: one thinking
// block, the redacted thinking blocks, one text block, then one block per
// tool call. Thinking blocks are merged into one that carries the first
// non-empty signature. Empty thinking and text are omitted.
func ResponseBlocks(msg llm.Message) []anthropic.ContentBlock {
	var out []anthropic.ContentBlock

	if thinking := msg.GetThinking(); thinking != "" {
		block := anthropic.ContentBlock{Type: llm.BlockThinking, Thinking: thinking}
		for _, b := range msg.Blocks(llm.BlockThinking) {
			if b.Signature != "" {
				block.Signature = b.Signature
				break
			}
		}
		out = append(out, block)
	}

	for _, b := range msg.Blocks(llm.BlockRedactedThinking) {
		out = append(out, anthropic.ContentBlock{Type: llm.BlockRedactedThinking, Data: b.Data})
	}

	if text := msg.GetText(); text != "" {
		out = append(out, anthropic.ContentBlock{Type: llm.BlockText, Text: text})
	}

	for _, call := range msg.ToolCalls() {
		out = append(out, anthropic.ContentBlock{
			Type:  llm.BlockToolUse,
			ID:    call.ToolUseID,
			Name:  call.ToolName,
			Input: json.RawMessage(ToolArguments(call)),
		})
	}

	return out
}

// ToUsage converts neutral token counts.
func ToUsage(u llm.Usage) anthropic.Usage {
	return anthropic.Usage{
		InputTokens:              u.InputTokens,
		OutputTokens:             u.OutputTokens,
		CacheCreationInputTokens: u.CacheCreationInputTokens,
		CacheReadInputTokens:     u.CacheReadInputTokens,
	}
}

// ToMessageResponse builds the non-streaming answer for a successful result.
// model is the id the caller asked for, not the target's.
func ToMessageResponse(result *llm.AskResult, model, id string) *anthropic.MessageResponse {
	blocks := ResponseBlocks(result.Message)
	for i := range blocks {
		// A JSON body cannot carry arguments that are not JSON.
		if blocks[i].Type == llm.BlockToolUse && !gjson.ValidBytes(blocks[i].Input) {
			blocks[i].Input = json.RawMessage("{}")
		}
	}
	if blocks == nil {
		blocks = []anthropic.ContentBlock{}
	}

	stop := result.WireStopReason()
	return &anthropic.MessageResponse{
		ID:         id,
		Type:       "message",
		Role:       llm.RoleAssistant,
		Model:      model,
		Content:    blocks,
		StopReason: &stop,
		Usage:      ToUsage(result.Usage),
	}
}

// ErrorResponse builds the vendor error envelope.
func ErrorResponse(errType, message string) *anthropic.ErrorEnvelope {
	if errType == "" {
		errType = ErrorTypeAPI
	}
	return &anthropic.ErrorEnvelope{
		Type:  "error",
		Error: anthropic.ErrorBody{Type: errType, Message: message},
	}
}

// ErrorStatus is the HTTP status the vendor uses for an error type.
func ErrorStatus(errType string) int {
	switch errType {
	case ErrorTypeInvalidRequest:
		return http.StatusBadRequest
	case ErrorTypeAuthentication:
		return http.StatusUnauthorized
	case ErrorTypePermission:
		return http.StatusForbidden
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeRateLimit:
		return http.StatusTooManyRequests
	case ErrorTypeOverloaded:
		return 529
	default:
		return http.StatusInternalServerError
	}
}
