package normalize

import (
	"net/http"
	"strings"
)

// RedactedMarker replaces values too short to partially reveal.
const RedactedMarker = "[REDACTED]"

const ellipsis = "..."

var sensitiveKeys = []string{
	"authorization",
	"x-api-key",
	"api-key",
	"cookie",
	"bearer",
	"token",
	"secret",
	"password",
}

// IsSensitive reports whether a header key names a credential.
func IsSensitive(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// RedactHeaders flattens headers into a map, redacting sensitive values.
// Multiple values for one key are joined with ", ".
func RedactHeaders(headers http.Header) map[string]string {
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		value := strings.Join(v, ", ")
		if IsSensitive(k) {
			value = RedactValue(value)
		}
		out[k] = value
	}
	return out
}

// RedactValue masks a credential, keeping at most its first 10 and last 4
// characters. Values already in redacted form are returned unchanged.
func RedactValue(value string) string {
	if IsRedacted(value) {
		return value
	}

	runes := []rune(value)
	switch n := len(runes); {
	case n > 14:
		return string(runes[:10]) + ellipsis + string(runes[n-4:])
	case n >= 5:
		return string(runes[:2]) + ellipsis + string(runes[n-2:])
	default:
		return RedactedMarker
	}
}

// IsRedacted reports whether value has exactly the shape RedactValue
// produces. A raw value of that shape masks to itself, so accepting it
// reveals nothing masking would have hidden.
func IsRedacted(value string) bool {
	if value == RedactedMarker {
		return true
	}

	runes := []rune(value)
	n := len(runes)
	switch n {
	case 10 + len(ellipsis) + 4, 2 + len(ellipsis) + 2:
	default:
		return false
	}

	head := 10
	if n == 2+len(ellipsis)+2 {
		head = 2
	}
	return string(runes[head:head+len(ellipsis)]) == ellipsis
}
