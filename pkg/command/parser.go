package command

import "strings"

// DefaultPrefix is the directive marker recognized when a Parser is
// constructed with NewParser(""), matching spec default "!/".
const DefaultPrefix = "!/"

// Parser extracts Command occurrences from message text.
type Parser struct {
	prefix string
}

// NewParser returns a Parser using prefix, or DefaultPrefix if empty.
func NewParser(prefix string) *Parser {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Parser{prefix: prefix}
}

func isNameChar(b byte) bool {
	return b == '-' || b == '_' ||
		(b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// ExtractFirst scans text left to right for the first well-formed command
// occurrence and returns it along with text with that occurrence's full
// span removed. If no command is found, or a candidate has unterminated
// brackets/quotes, Found is false and Residual equals text unchanged.
func (p *Parser) ExtractFirst(text string) ParseOutcome {
	start := strings.Index(text, p.prefix)
	for start >= 0 {
		nameStart := start + len(p.prefix)
		i := nameStart
		for i < len(text) && isNameChar(text[i]) {
			i++
		}
		if i == nameStart {
			next := strings.Index(text[start+1:], p.prefix)
			if next < 0 {
				break
			}
			start = start + 1 + next
			continue
		}
		name := text[nameStart:i]

		if i >= len(text) || text[i] != '(' {
			// No argument list: bare command.
			return ParseOutcome{
				Command:  Command{Name: name, Args: map[string]string{}},
				Found:    true,
				Residual: text[:start] + text[i:],
			}
		}

		argsEnd, ok := findMatchingParen(text, i)
		if !ok {
			next := strings.Index(text[start+1:], p.prefix)
			if next < 0 {
				break
			}
			start = start + 1 + next
			continue
		}

		rawArgs := text[i+1 : argsEnd]
		args := splitArgs(rawArgs)
		return ParseOutcome{
			Command:  Command{Name: name, Args: args},
			Found:    true,
			Residual: text[:start] + text[argsEnd+1:],
		}
	}
	return ParseOutcome{Residual: text}
}

// findMatchingParen returns the index of the ')' matching the '(' at
// open, tracking nested (), [], {} and quoted strings (honoring backslash
// escapes). ok is false if the brackets never balance before text ends.
func findMatchingParen(text string, open int) (int, bool) {
	depth := 0
	var quote byte
	for i := open; i < len(text); i++ {
		c := text[i]
		if quote != 0 {
			switch c {
			case '\\':
				i++
			case quote:
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			quote = c
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
			if depth == 0 && c == ')' {
				return i, true
			}
			if depth < 0 {
				return 0, false
			}
		}
	}
	return 0, false
}

// splitArgs splits a comma-separated key[=value] list, treating commas
// inside balanced brackets/quotes as literal rather than separators, and
// unescaping backslash-escaped quote characters in values.
func splitArgs(raw string) map[string]string {
	args := map[string]string{}
	if strings.TrimSpace(raw) == "" {
		return args
	}

	var parts []string
	depth := 0
	var quote byte
	var cur strings.Builder
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if quote != 0 {
			cur.WriteByte(c)
			switch c {
			case '\\':
				if i+1 < len(raw) {
					i++
					cur.WriteByte(raw[i])
				}
			case quote:
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			quote = c
			cur.WriteByte(c)
		case '(', '[', '{':
			depth++
			cur.WriteByte(c)
		case ')', ']', '}':
			depth--
			cur.WriteByte(c)
		case ',':
			if depth == 0 {
				parts = append(parts, cur.String())
				cur.Reset()
				continue
			}
			cur.WriteByte(c)
		default:
			cur.WriteByte(c)
		}
	}
	parts = append(parts, cur.String())

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		eq := strings.IndexByte(part, '=')
		if eq < 0 {
			args[part] = ""
			continue
		}
		key := strings.TrimSpace(part[:eq])
		val := strings.TrimSpace(part[eq+1:])
		val = unquote(val)
		args[key] = val
	}
	return args
}

func unquote(val string) string {
	if len(val) < 2 {
		return val
	}
	first, last := val[0], val[len(val)-1]
	if (first == '"' || first == '\'') && last == first {
		inner := val[1 : len(val)-1]
		var b strings.Builder
		for i := 0; i < len(inner); i++ {
			if inner[i] == '\\' && i+1 < len(inner) {
				i++
				b.WriteByte(inner[i])
				continue
			}
			b.WriteByte(inner[i])
		}
		return b.String()
	}
	return val
}
