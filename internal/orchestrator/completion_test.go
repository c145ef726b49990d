package orchestrator

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sleepstars/yuanbao2api/internal/clients"
	"github.com/sleepstars/yuanbao2api/internal/config"
	"github.com/sleepstars/yuanbao2api/internal/logger"
	"github.com/sleepstars/yuanbao2api/internal/mocks"
	"github.com/sleepstars/yuanbao2api/internal/models"
	"github.com/sleepstars/yuanbao2api/internal/sse"
)

func init() {
	logger.InitLogger(logger.INFO, "test")
}

func newRequest(model models.ChatModel) *models.ChatCompletionRequest {
	return &models.ChatCompletionRequest{
		Messages:  models.ChatMessages{{Role: "user", Content: "hi"}},
		ChatModel: model,
	}
}

func drain(events <-chan models.ChatCompletionEvent) []models.ChatCompletionEvent {
	var out []models.ChatCompletionEvent
	for ev := range events {
		out = append(out, ev)
	}
	return out
}

func TestOrchestrator_CreateCompletion(t *testing.T) {
	var gotConversation string
	var gotModel models.ChatModel
	client := &mocks.MockUpstreamClient{
		ConversationIDFunc: func(ctx context.Context) (string, error) {
			return "conv-1", nil
		},
		StartCompletionFunc: func(ctx context.Context, conversationID string, req *models.ChatCompletionRequest) (clients.EventStream, error) {
			gotConversation = conversationID
			gotModel = req.ChatModel
			return mocks.NewRawStream(mocks.Frames(
				`{"type":"think","content":"hmm"}`,
				`{"type":"text","msg":"answer"}`,
			)), nil
		},
	}

	o := NewOrchestrator(client, nil, &config.Config{EventBuffer: 2})
	events, err := o.CreateCompletion(context.Background(), newRequest(models.DeepSeekR1))
	require.NoError(t, err)

	assert.Equal(t, []models.ChatCompletionEvent{
		models.NewMessageEvent(models.Think, "hmm"),
		models.NewMessageEvent(models.Msg, "answer"),
		models.NewFinishEvent("stop"),
	}, drain(events))
	assert.Equal(t, "conv-1", gotConversation)
	assert.Equal(t, models.DeepSeekR1, gotModel)
}

func TestOrchestrator_CreateCompletionErrors(t *testing.T) {
	testCases := []struct {
		name      string
		client    *mocks.MockUpstreamClient
		expectErr error
	}{
		{
			name: "Conversation lookup fails",
			client: &mocks.MockUpstreamClient{
				ConversationIDFunc: func(ctx context.Context) (string, error) {
					return "", errors.New("no conversation")
				},
			},
		},
		{
			name: "Upstream refuses the stream",
			client: &mocks.MockUpstreamClient{
				StartCompletionFunc: func(ctx context.Context, conversationID string, req *models.ChatCompletionRequest) (clients.EventStream, error) {
					return nil, clients.ErrOpenStream
				},
			},
			expectErr: clients.ErrOpenStream,
		},
		{
			name: "Empty messages",
			client: &mocks.MockUpstreamClient{
				StartCompletionFunc: func(ctx context.Context, conversationID string, req *models.ChatCompletionRequest) (clients.EventStream, error) {
					_, err := req.Messages.Render()
					return nil, err
				},
			},
			expectErr: models.ErrEmptyMessages,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			o := NewOrchestrator(tc.client, nil, nil)
			req := newRequest(models.DeepSeekV3)
			if tc.expectErr == models.ErrEmptyMessages {
				req.Messages = nil
			}

			events, err := o.CreateCompletion(context.Background(), req)
			assert.Error(t, err)
			assert.Nil(t, events, "no channel for a request that never started")
			if tc.expectErr != nil {
				assert.ErrorIs(t, err, tc.expectErr)
			}
		})
	}
}

func TestOrchestrator_ReturnsBeforeContent(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	client := &mocks.MockUpstreamClient{
		StartCompletionFunc: func(ctx context.Context, conversationID string, req *models.ChatCompletionRequest) (clients.EventStream, error) {
			return sse.NewStream(pr, 0), nil
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := NewOrchestrator(client, nil, nil).CreateCompletion(ctx, newRequest(models.DeepSeekV3))
	require.NoError(t, err)

	go pw.Write([]byte(mocks.Frames(`{"type":"text","msg":"late"}`)))
	select {
	case ev := <-events:
		assert.Equal(t, models.NewMessageEvent(models.Msg, "late"), ev)
	case <-time.After(2 * time.Second):
		t.Fatal("no event arrived")
	}

	cancel()
	select {
	case _, ok := <-events:
		assert.False(t, ok, "no Finish after cancellation")
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after cancellation")
	}
}

func TestCollect(t *testing.T) {
	feed := func(evs ...models.ChatCompletionEvent) <-chan models.ChatCompletionEvent {
		ch := make(chan models.ChatCompletionEvent, len(evs))
		for _, ev := range evs {
			ch <- ev
		}
		close(ch)
		return ch
	}

	t.Run("Concatenates by kind", func(t *testing.T) {
		got, err := Collect(context.Background(), feed(
			models.NewMessageEvent(models.Think, "a"),
			models.NewMessageEvent(models.Msg, "Hello"),
			models.NewMessageEvent(models.Think, "b"),
			models.NewMessageEvent(models.Msg, " world"),
			models.NewFinishEvent("length"),
		))
		require.NoError(t, err)
		assert.Equal(t, &Completion{Content: "Hello world", ReasoningContent: "ab", FinishReason: "length"}, got)
	})

	t.Run("Closed without finish", func(t *testing.T) {
		_, err := Collect(context.Background(), feed(models.NewMessageEvent(models.Msg, "partial")))
		assert.ErrorIs(t, err, ErrTruncated)
	})

	t.Run("Error event", func(t *testing.T) {
		_, err := Collect(context.Background(), feed(
			models.NewMessageEvent(models.Msg, "partial"),
			models.NewErrorEvent(sse.ErrIdleTimeout),
		))
		assert.ErrorIs(t, err, sse.ErrIdleTimeout)
	})

	t.Run("Context cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := Collect(ctx, make(chan models.ChatCompletionEvent))
		assert.ErrorIs(t, err, context.Canceled)
	})
}
