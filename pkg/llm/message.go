// Package llm holds the provider-neutral conversation model that sits
// between the vendor wire format and the model clients.
package llm

// Roles accepted in a neutral conversation.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Content block types.
const (
	BlockText             = "text"
	BlockThinking         = "thinking"
	BlockRedactedThinking = "redacted_thinking"
	BlockToolUse          = "tool_use"
	BlockToolResult       = "tool_result"
	BlockImage            = "image"
)

// Message is one turn of a conversation.
type Message struct {
	Role    string         `json:"role"`
	Content []ContentBlock `json:"content"`
}

// ContentBlock is a tagged piece of message content. Type decides which of
// the other fields are meaningful.
type ContentBlock struct {
	Type string `json:"type"`

	// text
	Text string `json:"text,omitempty"`

	// thinking / redacted_thinking
	Thinking  string `json:"thinking,omitempty"`
	Signature string `json:"signature,omitempty"`
	Data      string `json:"data,omitempty"`

	// image
	ImageURL    string `json:"image_url,omitempty"`
	ImageBase64 string `json:"image_base64,omitempty"`
	MediaType   string `json:"media_type,omitempty"`

	// tool_use. ToolInputRaw carries arguments that were not valid JSON.
	ToolUseID    string         `json:"tool_use_id,omitempty"`
	ToolName     string         `json:"tool_name,omitempty"`
	ToolInput    map[string]any `json:"tool_input,omitempty"`
	ToolInputRaw string         `json:"tool_input_raw,omitempty"`

	// tool_result. ToolName is set on a result once it has been linked to
	// the tool_use it answers.
	ToolResultID string `json:"tool_result_id,omitempty"`
	ToolOutput   string `json:"tool_output,omitempty"`
	IsError      bool   `json:"is_error,omitempty"`
}

// NewTextMessage creates a single text block message.
func NewTextMessage(role, text string) Message {
	return Message{
		Role:    role,
		Content: []ContentBlock{{Type: BlockText, Text: text}},
	}
}

// GetText concatenates the message's text blocks.
func (m *Message) GetText() string {
	var result string
	for _, block := range m.Content {
		if block.Type == BlockText {
			result += block.Text
		}
	}
	return result
}

// GetThinking concatenates the message's thinking blocks.
func (m *Message) GetThinking() string {
	var result string
	for _, block := range m.Content {
		if block.Type == BlockThinking {
			result += block.Thinking
		}
	}
	return result
}

// Blocks returns the blocks of the given type, in order.
func (m *Message) Blocks(blockType string) []ContentBlock {
	var out []ContentBlock
	for _, block := range m.Content {
		if block.Type == blockType {
			out = append(out, block)
		}
	}
	return out
}

// ToolCalls returns the message's tool_use blocks.
func (m *Message) ToolCalls() []ContentBlock {
	return m.Blocks(BlockToolUse)
}
