package clients

import (
	"context"

	"github.com/sleepstars/yuanbao2api/internal/models"
	"github.com/sleepstars/yuanbao2api/internal/sse"
)

// UpstreamClient opens completion streams against the upstream chat service
type UpstreamClient interface {
	// ConversationID resolves the conversation the completion is appended to
	ConversationID(ctx context.Context) (string, error)

	// StartCompletion sends the request and returns the live event stream
	// without waiting for content
	StartCompletion(ctx context.Context, conversationID string, req *models.ChatCompletionRequest) (EventStream, error)
}

// EventStream is a raw upstream SSE stream
type EventStream interface {
	Next() (sse.Event, error)
	Close() error
}
