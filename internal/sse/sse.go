// Package sse parses and writes Server-Sent Events, grounded on the
// teacher's pkg/providerutils/streaming/sse.go line-oriented scanner,
// carried over near verbatim since the wire format is identical for every
// SSE-speaking backend this proxy dispatches to.
package sse

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"
)

// Event is a single parsed Server-Sent Event.
type Event struct {
	Event string
	Data  string
	ID    string
	Retry int
}

// DoneSentinel is the conventional payload marking stream completion.
const DoneSentinel = "[DONE]"

// Parser reads Events off an io.Reader.
type Parser struct {
	scanner *bufio.Scanner
	err     error
}

// NewParser wraps r. The scanner's buffer is grown beyond bufio's default
// to tolerate large single-line JSON payloads some backends emit.
func NewParser(r io.Reader) *Parser {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &Parser{scanner: scanner}
}

// Next returns the next event, or io.EOF when the stream ends.
func (p *Parser) Next() (*Event, error) {
	if p.err != nil {
		return nil, p.err
	}

	event := &Event{}
	var dataLines []string

	for p.scanner.Scan() {
		line := p.scanner.Text()

		if line == "" {
			if len(dataLines) > 0 || event.Event != "" {
				event.Data = strings.Join(dataLines, "\n")
				return event, nil
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		colonIdx := strings.Index(line, ":")
		if colonIdx == -1 {
			continue
		}
		field := line[:colonIdx]
		value := line[colonIdx+1:]
		if len(value) > 0 && value[0] == ' ' {
			value = value[1:]
		}

		switch field {
		case "event":
			event.Event = value
		case "data":
			dataLines = append(dataLines, value)
		case "id":
			event.ID = value
		case "retry":
			_, _ = fmt.Sscanf(value, "%d", &event.Retry)
		}
	}

	if err := p.scanner.Err(); err != nil {
		p.err = err
		return nil, err
	}
	if len(dataLines) > 0 || event.Event != "" {
		event.Data = strings.Join(dataLines, "\n")
		return event, nil
	}
	p.err = io.EOF
	return nil, io.EOF
}

// IsDone reports whether event signals stream completion.
func IsDone(event *Event) bool {
	return event != nil && (event.Data == DoneSentinel || event.Event == "done")
}

// Writer writes Events to an underlying io.Writer as wire-format SSE.
type Writer struct {
	w io.Writer
}

// NewWriter wraps w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteEvent serializes and writes event.
func (w *Writer) WriteEvent(event Event) error {
	var buf bytes.Buffer
	if event.Event != "" {
		fmt.Fprintf(&buf, "event: %s\n", event.Event)
	}
	if event.ID != "" {
		fmt.Fprintf(&buf, "id: %s\n", event.ID)
	}
	if event.Retry > 0 {
		fmt.Fprintf(&buf, "retry: %d\n", event.Retry)
	}
	if event.Data != "" {
		for _, line := range strings.Split(event.Data, "\n") {
			fmt.Fprintf(&buf, "data: %s\n", line)
		}
	}
	buf.WriteString("\n")
	_, err := w.w.Write(buf.Bytes())
	return err
}

// WriteData writes a bare data-only event.
func (w *Writer) WriteData(data string) error {
	return w.WriteEvent(Event{Data: data})
}

// WriteDone writes the terminal [DONE] sentinel event.
func (w *Writer) WriteDone() error {
	return w.WriteEvent(Event{Data: DoneSentinel})
}
