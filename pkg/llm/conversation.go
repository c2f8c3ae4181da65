package llm

import "encoding/json"

// Conversation is a provider-neutral chat history. Messages keep the exact
// order they were supplied in.
type Conversation struct {
	System   string           `json:"system,omitempty"`
	Messages []Message        `json:"messages"`
	Tools    []ToolDefinition `json:"tools,omitempty"`
}

// ToolDefinition declares a tool the model may call. Parameters is a JSON
// Schema document; see package schema for validation.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// LastMessage returns the final message, or nil for an empty conversation.
func (c *Conversation) LastMessage() *Message {
	if len(c.Messages) == 0 {
		return nil
	}
	return &c.Messages[len(c.Messages)-1]
}

// HasImages reports whether any message carries an image block.
func (c *Conversation) HasImages() bool {
	for i := range c.Messages {
		if len(c.Messages[i].Blocks(BlockImage)) > 0 {
			return true
		}
	}
	return false
}

// Text flattens every textual field of the conversation, used for token
// estimates.
func (c *Conversation) Text() string {
	out := c.System
	for _, m := range c.Messages {
		for _, b := range m.Content {
			out += b.Text + b.Thinking + b.ToolOutput + b.ToolInputRaw
			if b.ToolInput != nil {
				raw, _ := json.Marshal(b.ToolInput)
				out += string(raw)
			}
		}
	}
	for _, t := range c.Tools {
		out += t.Name + t.Description + string(t.Parameters)
	}
	return out
}
