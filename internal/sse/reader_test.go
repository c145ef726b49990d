package sse

import (
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readAll(t *testing.T, s *Stream) []Event {
	t.Helper()
	var events []Event
	for {
		ev, err := s.Next()
		if errors.Is(err, io.EOF) {
			return events
		}
		require.NoError(t, err)
		events = append(events, ev)
	}
}

func TestStreamParsesFields(t *testing.T) {
	raw := ": keep-alive\n" +
		"data: {\"type\":\"text\",\"msg\":\"hi\"}\n\n" +
		"event: speech_type\n" +
		"data: status\n\n" +
		"id: 7\n" +
		"retry: 1500\n" +
		"data: line one\n" +
		"data: line two\n\n" +
		"data:no-space\r\n\r\n"

	s := NewStream(io.NopCloser(strings.NewReader(raw)), 0)
	events := readAll(t, s)
	require.Len(t, events, 4)

	assert.Equal(t, Event{Event: "message", Data: `{"type":"text","msg":"hi"}`}, events[0])
	assert.Equal(t, "speech_type", events[1].Event)
	assert.Equal(t, "status", events[1].Data)

	assert.Equal(t, "message", events[2].Event)
	assert.Equal(t, "line one\nline two", events[2].Data)
	assert.Equal(t, "7", events[2].ID)
	assert.Equal(t, 1500*time.Millisecond, events[2].Retry)

	assert.Equal(t, "no-space", events[3].Data)
	assert.Equal(t, "7", events[3].ID, "last event id persists")
}

func TestStreamSkipsBlankDispatchWithoutData(t *testing.T) {
	raw := "event: ping\n\n\n\ndata: x\n\n"
	events := readAll(t, NewStream(io.NopCloser(strings.NewReader(raw)), 0))
	require.Len(t, events, 1)
	assert.Equal(t, "message", events[0].Event, "event name resets after blank line")
	assert.Equal(t, "x", events[0].Data)
}

func TestStreamFlushesUnterminatedEvent(t *testing.T) {
	events := readAll(t, NewStream(io.NopCloser(strings.NewReader("data: tail")), 0))
	require.Len(t, events, 1)
	assert.Equal(t, "tail", events[0].Data)
}

func TestStreamSurfacesTransportError(t *testing.T) {
	boom := errors.New("connection reset")
	body := io.NopCloser(io.MultiReader(
		strings.NewReader("data: a\n\n"),
		&failingReader{err: boom},
	))
	s := NewStream(body, 0)

	ev, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, "a", ev.Data)

	_, err = s.Next()
	assert.ErrorIs(t, err, boom)
}

func TestStreamIdleTimeout(t *testing.T) {
	pr, pw := io.Pipe()
	s := NewStream(pr, 50*time.Millisecond)
	defer s.Close()

	go func() {
		pw.Write([]byte("data: first\n\n"))
		// then stall without closing
	}()

	ev, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, "first", ev.Data)

	start := time.Now()
	_, err = s.Next()
	assert.ErrorIs(t, err, ErrIdleTimeout)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestStreamCloseIsIdempotent(t *testing.T) {
	rc := &countingCloser{Reader: strings.NewReader("")}
	s := NewStream(rc, time.Second)
	assert.NoError(t, s.Close())
	assert.NoError(t, s.Close())
	assert.Equal(t, 1, rc.closes)
}

type failingReader struct{ err error }

func (r *failingReader) Read([]byte) (int, error) { return 0, r.err }

type countingCloser struct {
	io.Reader
	closes int
}

func (c *countingCloser) Close() error {
	c.closes++
	return nil
}
