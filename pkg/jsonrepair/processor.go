package jsonrepair

import "strings"

// DefaultSoftBufferCap is the buffer size above which Processor logs an
// overflow warning but keeps buffering rather than truncating mid-object
// (spec §4.8 Overflow).
const DefaultSoftBufferCap = 64 * 1024

// Logger receives an overflow notice; nil is a valid no-op logger.
type Logger func(bufferedBytes int)

// Processor transforms a stream of text chunks into a stream of text
// chunks, repairing any complete JSON object/array it finds along the way
// (spec §4.8). It is not safe for concurrent use; one Processor serves one
// logical stream.
type Processor struct {
	softCap int
	onOverflow Logger
	loggedOverflow bool

	buffering bool
	buf       strings.Builder
	depth     int
	inString  bool
	escaped   bool
}

// NewProcessor returns a Processor with the given soft buffer cap. A
// non-positive cap uses DefaultSoftBufferCap.
func NewProcessor(softCap int, onOverflow Logger) *Processor {
	if softCap <= 0 {
		softCap = DefaultSoftBufferCap
	}
	return &Processor{softCap: softCap, onOverflow: onOverflow}
}

// Feed processes one chunk of upstream text, returning the text that
// should be forwarded downstream immediately (plain passthrough text and
// any objects that closed within this chunk, already repaired).
func (p *Processor) Feed(chunk string) string {
	var out strings.Builder
	for i := 0; i < len(chunk); i++ {
		c := chunk[i]

		if !p.buffering {
			if c == '{' || c == '[' {
				p.buffering = true
				p.depth = 0
				p.inString = false
				p.escaped = false
				p.buf.Reset()
				p.loggedOverflow = false
			} else {
				out.WriteByte(c)
				continue
			}
		}

		p.buf.WriteByte(c)
		p.advance(c)

		if p.buffering && p.buf.Len() > p.softCap && !p.loggedOverflow {
			p.loggedOverflow = true
			if p.onOverflow != nil {
				p.onOverflow(p.buf.Len())
			}
		}

		if p.buffering && p.depth == 0 {
			out.WriteString(p.flush())
		}
	}
	return out.String()
}

// advance updates bracket-depth and string/escape state for one byte
// already appended to p.buf.
func (p *Processor) advance(c byte) {
	if p.escaped {
		p.escaped = false
		return
	}
	if c == '\\' && p.inString {
		p.escaped = true
		return
	}
	if c == '"' {
		p.inString = !p.inString
		return
	}
	if p.inString {
		return
	}
	switch c {
	case '{', '[':
		p.depth++
	case '}', ']':
		p.depth--
	}
}

// flush repairs the buffered object and resets buffering state, returning
// what should be emitted.
func (p *Processor) flush() string {
	raw := p.buf.String()
	p.buffering = false
	p.buf.Reset()

	repaired, ok := Repair(raw)
	if ok {
		return repaired
	}
	return raw
}

// Close finalizes the stream: a still-pending buffer gets the EOF
// treatment (dangling ':' padded with " null", one repair attempt, raw
// flush on failure).
func (p *Processor) Close() string {
	if !p.buffering || p.buf.Len() == 0 {
		return ""
	}
	raw := p.buf.String()
	p.buffering = false
	p.buf.Reset()

	repaired, ok := Repair(raw)
	if ok {
		return repaired
	}
	return raw
}
