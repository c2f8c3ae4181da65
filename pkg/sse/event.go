// Package sse reads and writes Server-Sent Events framing.
//
// Reading tolerates the loose framing real upstreams produce (comments,
// missing trailing blank line, CRLF). Writing always emits the canonical
// "event:"/"data:" pair followed by a blank line.
//
// See https://html.spec.whatwg.org/multipage/server-sent-events.html
package sse

// Event is one SSE event, delimited by a blank line in the byte stream.
type Event struct {
	// Type is the "event:" field. Empty means the default "message" type.
	Type string

	// Data holds every "data:" line of the event joined with "\n".
	Data string

	// ID is the "id:" field, if present.
	ID string
}
