// Package normalize turns a raw outbound HTTP call into a Request whose
// headers are safe to log.
package normalize

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
)

// Request is an intercepted call. It is not modified after Normalize
// returns. Body is nil when the call did not carry valid JSON.
type Request struct {
	URL       string            `json:"url"`
	Method    string            `json:"method"`
	Timestamp time.Time         `json:"timestamp"`
	Headers   map[string]string `json:"headers"`
	Body      json.RawMessage   `json:"body"`
}

// Transformable reports whether the body parsed.
func (r *Request) Transformable() bool {
	return r != nil && r.Body != nil
}

// Normalize builds a Request. body may be a []byte, a string or an
// io.Reader; any other type, a read failure or invalid JSON leaves Body nil.
// Normalize never fails.
func Normalize(url, method string, headers http.Header, body any) *Request {
	return &Request{
		URL:       url,
		Method:    method,
		Timestamp: time.Now().UTC(),
		Headers:   RedactHeaders(headers),
		Body:      parseBody(body),
	}
}

func parseBody(body any) json.RawMessage {
	var raw []byte
	switch b := body.(type) {
	case []byte:
		raw = b
	case string:
		raw = []byte(b)
	case io.Reader:
		read, err := io.ReadAll(b)
		if err != nil {
			return nil
		}
		raw = read
	default:
		return nil
	}

	if len(raw) == 0 || !gjson.ValidBytes(raw) {
		return nil
	}

	out := make(json.RawMessage, len(raw))
	copy(out, raw)
	return out
}
