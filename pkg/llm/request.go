package llm

// Input is what a model client is asked to answer: the final user turn,
// split into its parts.
type Input struct {
	Content     string         `json:"content,omitempty"`
	ToolResults []ContentBlock `json:"tool_results,omitempty"`
	Attachments []ContentBlock `json:"attachments,omitempty"`
}

// Options accompany an Input. Context holds the conversation preceding the
// final user turn, including the system prompt and tool declarations.
type Options struct {
	Context         *Conversation  `json:"context,omitempty"`
	Model           string         `json:"model,omitempty"`
	MaxOutputTokens *int           `json:"max_output_tokens,omitempty"`
	Temperature     *float64       `json:"temperature,omitempty"`
	Extra           map[string]any `json:"extra,omitempty"`
}
