package storage

import (
	"encoding/json"
	"time"

	"github.com/papercomputeco/bridge/pkg/capability"
	"github.com/papercomputeco/bridge/pkg/llm"
	"github.com/papercomputeco/bridge/pkg/normalize"
)

// Kind names a record family.
type Kind string

const (
	KindRaw         Kind = "raw"
	KindTransformed Kind = "transformed"
	KindOrphan      Kind = "orphan"
)

// Kinds lists every Kind.
func Kinds() []Kind {
	return []Kind{KindRaw, KindTransformed, KindOrphan}
}

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds() {
		if string(k) == s {
			return k, nil
		}
	}
	return "", UnknownKindError{Kind: Kind(s)}
}

// Response is the response half of a RawPair.
type Response struct {
	Status  int               `json:"status"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    string            `json:"body"`
}

// RawPair is one intercepted exchange. DecodedSSE is set when the response
// was an event stream.
type RawPair struct {
	RequestID  string             `json:"request_id,omitempty"`
	Request    *normalize.Request `json:"request"`
	Response   *Response          `json:"response"`
	DecodedSSE *llm.AskResult     `json:"decoded_sse,omitempty"`
	LoggedAt   time.Time          `json:"logged_at"`
}

// ProviderConfig names the target that answered a translated request.
type ProviderConfig struct {
	Provider string `json:"provider"`
	Model    string `json:"model,omitempty"`
	BaseURL  string `json:"base_url,omitempty"`
}

// TransformedEntry records a translated request end to end. RawResponse is
// the body synthesized for the caller.
type TransformedEntry struct {
	Timestamp           time.Time          `json:"timestamp"`
	RequestID           string             `json:"request_id"`
	RawRequest          json.RawMessage    `json:"raw_request"`
	NeutralConversation *llm.Conversation  `json:"neutral_conversation"`
	ProviderConfig      ProviderConfig     `json:"provider_config"`
	Validation          *capability.Result `json:"validation,omitempty"`
	Result              *llm.AskResult     `json:"result,omitempty"`
	RawResponse         string             `json:"raw_response"`
	DecodedSSE          *llm.AskResult     `json:"decoded_sse,omitempty"`
	LoggedAt            time.Time          `json:"logged_at"`
}

// OrphanEntry is a request still pending at shutdown.
type OrphanEntry struct {
	Orphaned  bool               `json:"orphaned"`
	RequestID string             `json:"request_id"`
	Request   *normalize.Request `json:"request"`
	StartedAt time.Time          `json:"started_at"`
	LoggedAt  time.Time          `json:"logged_at"`
}

// Stamp sets LoggedAt when it is unset and returns the record's request id.
func Stamp(record any, now time.Time) string {
	switch r := record.(type) {
	case *RawPair:
		if r.LoggedAt.IsZero() {
			r.LoggedAt = now
		}
		return r.RequestID
	case *TransformedEntry:
		if r.LoggedAt.IsZero() {
			r.LoggedAt = now
		}
		return r.RequestID
	case *OrphanEntry:
		r.Orphaned = true
		if r.LoggedAt.IsZero() {
			r.LoggedAt = now
		}
		return r.RequestID
	}
	return ""
}
