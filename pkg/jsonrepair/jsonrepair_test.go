package jsonrepair

import "testing"

func TestRepair_ClosesUnbalancedObject(t *testing.T) {
	t.Parallel()

	out, ok := Repair(`{"a":1,"b":[1,2`)
	if !ok {
		t.Fatalf("expected repair success, got raw back")
	}
	if out != `{"a":1,"b":[1,2]}` {
		t.Fatalf("unexpected repaired output: %s", out)
	}
}

func TestRepair_CompletesPartialLiteral(t *testing.T) {
	t.Parallel()

	out, ok := Repair(`{"active":tr`)
	if !ok {
		t.Fatalf("expected repair success")
	}
	if out != `{"active":true}` {
		t.Fatalf("unexpected repaired output: %s", out)
	}
}

func TestRepair_DanglingColonAppendsNull(t *testing.T) {
	t.Parallel()

	out, ok := Repair(`{"key":`)
	if !ok {
		t.Fatalf("expected repair success")
	}
	if out != `{"key":null}` {
		t.Fatalf("unexpected repaired output: %s", out)
	}
}

func TestRepair_UnrecoverableReturnsRawFalse(t *testing.T) {
	t.Parallel()

	out, ok := Repair(`not json at all {{{`)
	if ok {
		t.Fatal("expected repair failure")
	}
	if out != `not json at all {{{` {
		t.Fatal("expected raw text returned unchanged")
	}
}

func TestProcessor_PassesNonJSONPrefixThrough(t *testing.T) {
	t.Parallel()

	p := NewProcessor(0, nil)
	out := p.Feed(`hello world, no json here`)
	if out != `hello world, no json here` {
		t.Fatalf("expected passthrough, got %q", out)
	}
}

func TestProcessor_RepairsObjectThatClosesWithinOneChunk(t *testing.T) {
	t.Parallel()

	p := NewProcessor(0, nil)
	out := p.Feed(`before {"a":1,"b":2} after`)
	if out != `before {"a":1,"b":2} after` {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestProcessor_BuffersAcrossChunksUntilDepthZero(t *testing.T) {
	t.Parallel()

	p := NewProcessor(0, nil)
	first := p.Feed(`text {"a":1,`)
	if first != "text " {
		t.Fatalf("expected only passthrough text so far, got %q", first)
	}
	second := p.Feed(`"b":2} tail`)
	if second != `{"a":1,"b":2} tail` {
		t.Fatalf("unexpected completion output: %q", second)
	}
}

func TestProcessor_Close_PadsDanglingColonAtEOF(t *testing.T) {
	t.Parallel()

	p := NewProcessor(0, nil)
	p.Feed(`{"key":`)
	out := p.Close()
	if out != `{"key":null}` {
		t.Fatalf("unexpected EOF repair: %q", out)
	}
}

func TestProcessor_OverflowCallsLoggerButKeepsBuffering(t *testing.T) {
	t.Parallel()

	var loggedBytes int
	p := NewProcessor(8, func(n int) { loggedBytes = n })
	p.Feed(`{"a":"` + string(make([]byte, 20)) + `x`)
	if loggedBytes == 0 {
		t.Fatal("expected overflow callback invoked")
	}
}
