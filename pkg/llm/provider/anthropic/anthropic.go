// Package anthropic is the wire codec for the Anthropic Messages API: the
// request schema bridge accepts and the response and stream schemas it
// synthesizes.
package anthropic

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// MessagesPath is the endpoint bridge translates.
const MessagesPath = "/v1/messages"

var (
	// ErrMissingModel is returned for a request without a model.
	ErrMissingModel = errors.New("request has no model")

	// ErrUnexpectedContent is returned when a content union is neither a
	// string nor an array of blocks.
	ErrUnexpectedContent = errors.New("content is neither a string nor a block array")
)

// IsMessagesPath reports whether path is the Messages endpoint, optionally
// behind a prefix. The token counting endpoint does not match.
func IsMessagesPath(path string) bool {
	path = strings.TrimSuffix(path, "/")
	return strings.HasSuffix(path, MessagesPath)
}

// PeekModel reads the model id from a raw body without decoding it.
func PeekModel(payload []byte) string {
	return gjson.GetBytes(payload, "model").String()
}

// PeekStream reports whether a raw body asks for a streamed answer.
func PeekStream(payload []byte) bool {
	return gjson.GetBytes(payload, "stream").Bool()
}

// CanHandle reports whether payload looks like a Messages API request.
func CanHandle(payload []byte) bool {
	if !gjson.ValidBytes(payload) {
		return false
	}
	res := gjson.GetManyBytes(payload, "model", "messages", "max_tokens")
	return res[0].Type == gjson.String && res[1].IsArray() && res[2].Exists()
}

// ParseRequest decodes a request body.
func ParseRequest(payload []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("decoding messages request: %w", err)
	}
	if req.Model == "" {
		return nil, ErrMissingModel
	}
	return &req, nil
}

// Blocks returns the message content as blocks. A string becomes a single
// text block.
func (m Message) Blocks() ([]ContentBlock, error) {
	return decodeUnion(m.Content)
}

// SystemText flattens a system prompt given as a string or as text blocks.
func SystemText(raw json.RawMessage) (string, error) {
	blocks, err := decodeUnion(raw)
	if err != nil {
		return "", fmt.Errorf("system: %w", err)
	}
	return joinText(blocks), nil
}

// ToolResultText flattens the content of a tool_result block. Non-text
// blocks are dropped.
func ToolResultText(raw json.RawMessage) (string, error) {
	blocks, err := decodeUnion(raw)
	if err != nil {
		return "", fmt.Errorf("tool_result content: %w", err)
	}
	return joinText(blocks), nil
}

func decodeUnion(raw json.RawMessage) ([]ContentBlock, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	switch trimmed[0] {
	case '"':
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return nil, err
		}
		return []ContentBlock{{Type: "text", Text: text}}, nil
	case '[':
		var blocks []ContentBlock
		if err := json.Unmarshal(trimmed, &blocks); err != nil {
			return nil, err
		}
		return blocks, nil
	default:
		return nil, ErrUnexpectedContent
	}
}

func joinText(blocks []ContentBlock) string {
	var parts []string
	for _, b := range blocks {
		if b.Type == "text" && b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n")
}
