// Package sse reads server-sent event streams.
//
// The parser follows the event-stream format: "event", "data", "id" and
// "retry" fields, ":" comments, and a blank line to dispatch. Multiple data
// lines are joined with "\n". An event without an "event" field is named
// "message".
package sse

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strconv"
	"sync"
	"time"
)

const maxLineSize = 1 << 20

// ErrIdleTimeout is returned by Next when no event arrived within the idle window
var ErrIdleTimeout = errors.New("sse: idle timeout")

// Event is one dispatched server-sent event
type Event struct {
	ID    string
	Event string
	Data  string
	Retry time.Duration
}

// Stream parses events from a response body
type Stream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	lastID  string

	idle     time.Duration
	timer    *time.Timer
	mu       sync.Mutex
	timedOut bool
	closed   bool
}

// NewStream wraps body. A positive idle closes the body when Next waits
// longer than idle for an event.
func NewStream(body io.ReadCloser, idle time.Duration) *Stream {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	scanner.Split(scanLines)
	return &Stream{body: body, scanner: scanner, idle: idle}
}

// Next blocks until the next event is dispatched.
// It returns io.EOF once the stream ends cleanly.
func (s *Stream) Next() (Event, error) {
	s.armTimer()
	defer s.disarmTimer()

	var (
		ev      Event
		data    bytes.Buffer
		hasData bool
	)
	for s.scanner.Scan() {
		line := s.scanner.Bytes()
		if len(line) == 0 {
			if !hasData {
				ev = Event{}
				continue
			}
			return s.dispatch(ev, &data), nil
		}
		if line[0] == ':' {
			continue
		}

		field, value := line, []byte(nil)
		if i := bytes.IndexByte(line, ':'); i >= 0 {
			field, value = line[:i], line[i+1:]
			value = bytes.TrimPrefix(value, []byte(" "))
		}
		switch string(field) {
		case "event":
			ev.Event = string(value)
		case "data":
			if hasData {
				data.WriteByte('\n')
			}
			data.Write(value)
			hasData = true
		case "id":
			if bytes.IndexByte(value, 0) < 0 {
				s.lastID = string(value)
			}
		case "retry":
			if ms, err := strconv.Atoi(string(value)); err == nil {
				ev.Retry = time.Duration(ms) * time.Millisecond
			}
		}
	}

	if err := s.scanner.Err(); err != nil {
		if s.idleExpired() {
			return Event{}, ErrIdleTimeout
		}
		return Event{}, err
	}
	if s.idleExpired() {
		return Event{}, ErrIdleTimeout
	}
	// A final event missing its blank-line terminator is still delivered.
	if hasData {
		return s.dispatch(ev, &data), nil
	}
	return Event{}, io.EOF
}

func (s *Stream) dispatch(ev Event, data *bytes.Buffer) Event {
	ev.ID = s.lastID
	ev.Data = data.String()
	if ev.Event == "" {
		ev.Event = "message"
	}
	return ev
}

// Close releases the underlying body. It is safe to call more than once.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
	}
	if s.closed {
		return nil
	}
	s.closed = true
	return s.body.Close()
}

func (s *Stream) armTimer() {
	if s.idle <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer == nil {
		s.timer = time.AfterFunc(s.idle, s.expire)
		return
	}
	s.timer.Reset(s.idle)
}

func (s *Stream) disarmTimer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
	}
}

func (s *Stream) expire() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.timedOut = true
	s.closed = true
	s.body.Close()
}

func (s *Stream) idleExpired() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timedOut
}

// scanLines splits on "\n", "\r\n" or a lone "\r".
func scanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		if data[i] == '\r' {
			if i+1 < len(data) {
				if data[i+1] == '\n' {
					return i + 2, data[:i], nil
				}
				return i + 1, data[:i], nil
			}
			if !atEOF {
				// need one more byte to tell "\r" from "\r\n"
				return 0, nil, nil
			}
		}
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
