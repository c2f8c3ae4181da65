package sse

import (
	"bufio"
	"io"
	"strings"
)

const (
	initialBufSize = 64 * 1024
	maxLineSize    = 1024 * 1024
)

// Reader parses SSE events from a byte stream. When built with
// NewTeeReader every raw line is also copied, verbatim, to a destination
// writer so a proxy can forward the stream while inspecting it.
type Reader struct {
	scanner *bufio.Scanner
	dest    io.Writer

	current Event
	hasData bool
}

// NewReader returns a Reader over src.
func NewReader(src io.Reader) *Reader {
	return NewTeeReader(src, nil)
}

// NewTeeReader returns a Reader over src that writes every raw line to dest.
// A nil dest disables the copy.
func NewTeeReader(src io.Reader, dest io.Writer) *Reader {
	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, initialBufSize), maxLineSize)

	return &Reader{scanner: scanner, dest: dest}
}

// Next blocks until a complete event is available and returns it.
// It returns nil, nil once src is exhausted.
func (r *Reader) Next() (*Event, error) {
	for r.scanner.Scan() {
		raw := r.scanner.Text()

		if r.dest != nil {
			// Scanner strips the line terminator; put one back.
			if _, err := io.WriteString(r.dest, raw+"\n"); err != nil {
				return nil, err
			}
		}

		line := strings.TrimSuffix(raw, "\r")
		if line == "" {
			if r.hasData {
				return r.take(), nil
			}
			continue
		}

		if strings.HasPrefix(line, ":") {
			continue
		}

		r.parseLine(line)
	}

	if err := r.scanner.Err(); err != nil {
		return nil, err
	}

	// Stream ended without a trailing blank line.
	if r.hasData {
		return r.take(), nil
	}

	return nil, nil
}

// All drains the reader and returns every event.
func (r *Reader) All() ([]Event, error) {
	var events []Event
	for {
		ev, err := r.Next()
		if err != nil {
			return events, err
		}
		if ev == nil {
			return events, nil
		}
		events = append(events, *ev)
	}
}

func (r *Reader) parseLine(line string) {
	field, value, found := strings.Cut(line, ":")
	if found {
		value = strings.TrimPrefix(value, " ")
	}

	switch field {
	case "data":
		if r.hasData && r.current.Data != "" {
			r.current.Data += "\n"
		}
		r.current.Data += value
		r.hasData = true
	case "event":
		r.current.Type = value
		r.hasData = true
	case "id":
		r.current.ID = value
		r.hasData = true
	default:
		// retry and unknown fields are ignored
	}
}

func (r *Reader) take() *Event {
	ev := r.current
	r.current = Event{}
	r.hasData = false
	return &ev
}
