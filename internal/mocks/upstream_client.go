package mocks

import (
	"context"
	"io"
	"strings"

	"github.com/sleepstars/yuanbao2api/internal/clients"
	"github.com/sleepstars/yuanbao2api/internal/models"
	"github.com/sleepstars/yuanbao2api/internal/sse"
)

// MockUpstreamClient implements clients.UpstreamClient for testing
type MockUpstreamClient struct {
	ConversationIDFunc  func(ctx context.Context) (string, error)
	StartCompletionFunc func(ctx context.Context, conversationID string, req *models.ChatCompletionRequest) (clients.EventStream, error)
}

func (m *MockUpstreamClient) ConversationID(ctx context.Context) (string, error) {
	if m.ConversationIDFunc != nil {
		return m.ConversationIDFunc(ctx)
	}
	return "mock-conversation", nil
}

func (m *MockUpstreamClient) StartCompletion(ctx context.Context, conversationID string, req *models.ChatCompletionRequest) (clients.EventStream, error) {
	if m.StartCompletionFunc != nil {
		return m.StartCompletionFunc(ctx, conversationID, req)
	}
	return NewRawStream(""), nil
}

// NewRawStream returns an event stream that replays raw SSE text and then ends
func NewRawStream(raw string) clients.EventStream {
	return sse.NewStream(io.NopCloser(strings.NewReader(raw)), 0)
}

// Frames builds raw SSE text with one "message" event per JSON payload
func Frames(payloads ...string) string {
	var b strings.Builder
	for _, p := range payloads {
		b.WriteString("data: ")
		b.WriteString(p)
		b.WriteString("\n\n")
	}
	return b.String()
}

// MockCompleter implements orchestrator.Completer for testing
type MockCompleter struct {
	CreateCompletionFunc func(ctx context.Context, req *models.ChatCompletionRequest) (<-chan models.ChatCompletionEvent, error)
}

func (m *MockCompleter) CreateCompletion(ctx context.Context, req *models.ChatCompletionRequest) (<-chan models.ChatCompletionEvent, error) {
	if m.CreateCompletionFunc != nil {
		return m.CreateCompletionFunc(ctx, req)
	}
	return Events(models.NewFinishEvent("stop")), nil
}

// Events returns a closed channel holding evs in order
func Events(evs ...models.ChatCompletionEvent) <-chan models.ChatCompletionEvent {
	ch := make(chan models.ChatCompletionEvent, len(evs))
	for _, ev := range evs {
		ch <- ev
	}
	close(ch)
	return ch
}
