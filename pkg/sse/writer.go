package sse

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Format renders a single event frame.
func Format(eventType string, data []byte) []byte {
	var b strings.Builder
	if eventType != "" {
		b.WriteString("event: ")
		b.WriteString(eventType)
		b.WriteByte('\n')
	}
	for line := range strings.SplitSeq(string(data), "\n") {
		b.WriteString("data: ")
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	return []byte(b.String())
}

// WriteEvent JSON-encodes payload and writes it as one frame to w.
func WriteEvent(w io.Writer, eventType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding %s event: %w", eventType, err)
	}

	if _, err := w.Write(Format(eventType, data)); err != nil {
		return fmt.Errorf("writing %s event: %w", eventType, err)
	}

	switch f := w.(type) {
	case interface{ Flush() error }:
		return f.Flush()
	case interface{ Flush() }:
		f.Flush()
	}
	return nil
}
