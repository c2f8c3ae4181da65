package llm

// ConversationTurn pairs a translated conversation with the answer the
// target provider produced for it.
type ConversationTurn struct {
	Provider     string        `json:"provider"`
	Model        string        `json:"model"`
	Conversation *Conversation `json:"conversation"`
	Result       *AskResult    `json:"result"`
}
