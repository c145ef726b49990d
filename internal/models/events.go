package models

// MessageKind tells thinking fragments apart from answer fragments
type MessageKind int

const (
	// Think marks reasoning text
	Think MessageKind = iota
	// Msg marks answer text
	Msg
)

func (k MessageKind) String() string {
	if k == Think {
		return "think"
	}
	return "msg"
}

// EventType discriminates ChatCompletionEvent
type EventType int

const (
	EventMessage EventType = iota
	EventError
	EventFinish
)

// ChatCompletionEvent is one semantic event of a completion stream.
// Only the fields belonging to Type are set.
type ChatCompletionEvent struct {
	Type         EventType
	Kind         MessageKind
	Text         string
	Err          error
	FinishReason string
}

// NewMessageEvent creates an incremental content fragment
func NewMessageEvent(kind MessageKind, text string) ChatCompletionEvent {
	return ChatCompletionEvent{Type: EventMessage, Kind: kind, Text: text}
}

// NewErrorEvent creates an event carrying a stream failure
func NewErrorEvent(err error) ChatCompletionEvent {
	return ChatCompletionEvent{Type: EventError, Err: err}
}

// NewFinishEvent creates the terminal event of a cleanly finished stream
func NewFinishEvent(reason string) ChatCompletionEvent {
	return ChatCompletionEvent{Type: EventFinish, FinishReason: reason}
}
