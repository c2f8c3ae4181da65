package eventstream

import (
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/bridge/pkg/llm"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeTurnTransformed is emitted after a translated turn is answered
	// by the target provider and logged.
	EventTypeTurnTransformed = "bridge.turn.transformed"
)

// TurnTransformedEvent is a transport-neutral event payload for a translated turn.
type TurnTransformedEvent struct {
	SchemaVersion int                  `json:"schema_version"`
	EventType     string               `json:"event_type"`
	EventID       string               `json:"event_id"`
	EmittedAt     time.Time            `json:"emitted_at"`
	Source        EventSource          `json:"source"`
	RequestMeta   TurnRequestMeta      `json:"request_meta"`
	Turn          llm.ConversationTurn `json:"turn"`
}

// EventSource identifies the target the turn was dispatched to.
type EventSource struct {
	Provider string `json:"provider"`
	Model    string `json:"model,omitempty"`
}

// TurnRequestMeta captures request lifecycle metadata for the event.
type TurnRequestMeta struct {
	RequestID   string    `json:"request_id"`
	Path        string    `json:"path,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	DurationMs  int64     `json:"duration_ms"`
	Streaming   bool      `json:"streaming"`
	HTTPStatus  int       `json:"http_status"`
	Warnings    []string  `json:"warnings,omitempty"`
}

// NewTurnEvent builds a v1 event for turn, deriving the duration from meta.
func NewTurnEvent(turn llm.ConversationTurn, meta TurnRequestMeta) *TurnTransformedEvent {
	if !meta.CompletedAt.IsZero() && !meta.StartedAt.IsZero() {
		meta.DurationMs = meta.CompletedAt.Sub(meta.StartedAt).Milliseconds()
	}

	return &TurnTransformedEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeTurnTransformed,
		EventID:       "evt_" + uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Source: EventSource{
			Provider: turn.Provider,
			Model:    turn.Model,
		},
		RequestMeta: meta,
		Turn:        turn,
	}
}
