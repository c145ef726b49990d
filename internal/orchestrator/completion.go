package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sleepstars/yuanbao2api/internal/clients"
	"github.com/sleepstars/yuanbao2api/internal/config"
	"github.com/sleepstars/yuanbao2api/internal/logger"
	"github.com/sleepstars/yuanbao2api/internal/modelbridge"
	"github.com/sleepstars/yuanbao2api/internal/models"
)

// ErrTruncated is returned by Collect when the event channel closed before a
// Finish event arrived
var ErrTruncated = errors.New("stream closed without finish")

// Completer is what the HTTP layer needs from the orchestrator
type Completer interface {
	CreateCompletion(ctx context.Context, req *models.ChatCompletionRequest) (<-chan models.ChatCompletionEvent, error)
}

// Orchestrator wires the upstream client to a translator per request
type Orchestrator struct {
	client     clients.UpstreamClient
	translator *modelbridge.Translator
	bufferSize int
	logger     *logger.Logger
}

// NewOrchestrator creates an orchestrator. cfg only supplies the channel size
// and may be nil.
func NewOrchestrator(client clients.UpstreamClient, translator *modelbridge.Translator, cfg *config.Config) *Orchestrator {
	size := config.DefaultEventBuffer
	if cfg != nil && cfg.EventBuffer > 0 {
		size = cfg.EventBuffer
	}
	if translator == nil {
		translator = modelbridge.NewTranslator(nil)
	}
	return &Orchestrator{
		client:     client,
		translator: translator,
		bufferSize: size,
		logger:     logger.GetLogger().WithComponent("orchestrator"),
	}
}

// CreateCompletion opens the upstream stream and returns a channel of events
// without waiting for any content. Failures to start are returned here and
// never as a channel. Cancelling ctx tells the translator the consumer is gone.
func (o *Orchestrator) CreateCompletion(ctx context.Context, req *models.ChatCompletionRequest) (<-chan models.ChatCompletionEvent, error) {
	conversationID, err := o.client.ConversationID(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve conversation: %w", err)
	}

	model := req.ChatModel.PublicName()
	o.logger.Debug("Opening completion: model=%s conversation=%s messages=%d", model, conversationID, len(req.Messages))

	src, err := o.client.StartCompletion(ctx, conversationID, req)
	if err != nil {
		o.logger.WithError(err).Error("Failed to open upstream stream for model %s", model)
		return nil, err
	}

	events := make(chan models.ChatCompletionEvent, o.bufferSize)
	go func() {
		err := o.translator.Run(ctx, model, src, events)
		if err != nil && !errors.Is(err, context.Canceled) {
			o.logger.WithError(err).Warn("SSE exit for model %s", model)
		}
	}()
	return events, nil
}

// Completion is a fully buffered answer
type Completion struct {
	Content          string
	ReasoningContent string
	FinishReason     string
}

// Collect drains events into a single Completion. An Error event is returned
// as is; a channel that closes without Finish yields ErrTruncated.
func Collect(ctx context.Context, events <-chan models.ChatCompletionEvent) (*Completion, error) {
	var content, reasoning strings.Builder
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil, ErrTruncated
			}
			switch ev.Type {
			case models.EventMessage:
				if ev.Kind == models.Think {
					reasoning.WriteString(ev.Text)
				} else {
					content.WriteString(ev.Text)
				}
			case models.EventError:
				return nil, ev.Err
			case models.EventFinish:
				return &Completion{
					Content:          content.String(),
					ReasoningContent: reasoning.String(),
					FinishReason:     ev.FinishReason,
				}, nil
			}
		}
	}
}
