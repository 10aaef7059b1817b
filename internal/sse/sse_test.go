package sse

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParser_ParsesDataOnlyEvents(t *testing.T) {
	p := NewParser(strings.NewReader("data: {\"a\":1}\n\ndata: {\"a\":2}\n\n"))

	ev1, err := p.Next()
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, ev1.Data)

	ev2, err := p.Next()
	require.NoError(t, err)
	assert.Equal(t, `{"a":2}`, ev2.Data)

	_, err = p.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestParser_JoinsMultilineData(t *testing.T) {
	p := NewParser(strings.NewReader("data: line one\ndata: line two\n\n"))
	ev, err := p.Next()
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two", ev.Data)
}

func TestParser_SkipsCommentLines(t *testing.T) {
	p := NewParser(strings.NewReader(": keep-alive\ndata: ping\n\n"))
	ev, err := p.Next()
	require.NoError(t, err)
	assert.Equal(t, "ping", ev.Data)
}

func TestIsDone_RecognizesSentinel(t *testing.T) {
	assert.True(t, IsDone(&Event{Data: "[DONE]"}))
	assert.True(t, IsDone(&Event{Event: "done"}))
	assert.False(t, IsDone(&Event{Data: "{}"}))
}

func TestWriter_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.WriteData(`{"x":1}`))
	require.NoError(t, w.WriteDone())

	p := NewParser(&buf)
	ev1, err := p.Next()
	require.NoError(t, err)
	assert.Equal(t, `{"x":1}`, ev1.Data)

	ev2, err := p.Next()
	require.NoError(t, err)
	assert.True(t, IsDone(ev2))
}
