package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sashabaranov/go-openai"

	"github.com/sleepstars/yuanbao2api/internal/models"
	"github.com/sleepstars/yuanbao2api/internal/orchestrator"
)

const ownedBy = "yuanbao"

func (s *Server) listModels(c *gin.Context) {
	list := openai.ModelsList{}
	for _, m := range models.ChatModels() {
		list.Models = append(list.Models, openai.Model{
			ID:      m.PublicName(),
			Object:  "model",
			OwnedBy: ownedBy,
		})
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) chatCompletions(c *gin.Context) {
	var body openai.ChatCompletionRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		s.metrics.ObserveRequest("unknown", false, http.StatusBadRequest)
		abortWithError(c, http.StatusBadRequest, "invalid_request_error", "invalid request body: "+err.Error())
		return
	}

	label := "unknown"
	defer func() { s.metrics.ObserveRequest(label, body.Stream, c.Writer.Status()) }()

	req, err := toChatRequest(&body)
	if err != nil {
		s.fail(c, err)
		return
	}
	label = req.ChatModel.PublicName()

	// cancelling tells the translator the consumer is gone
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	events, err := s.completer.CreateCompletion(ctx, req)
	if err != nil {
		s.fail(c, err)
		return
	}

	completionID := "chatcmpl-" + uuid.NewString()
	if body.Stream {
		s.stream(ctx, c, completionID, label, events)
		return
	}

	completion, err := orchestrator.Collect(ctx, events)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, openai.ChatCompletionResponse{
		ID:      completionID,
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   label,
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{
				Role:             openai.ChatMessageRoleAssistant,
				Content:          completion.Content,
				ReasoningContent: completion.ReasoningContent,
			},
			FinishReason: openai.FinishReason(completion.FinishReason),
		}},
	})
}

// stream forwards events as chat.completion.chunk frames. [DONE] is only
// written after a Finish event, so a truncated upstream shows up as a stream
// without the marker.
func (s *Server) stream(ctx context.Context, c *gin.Context, id, model string, events <-chan models.ChatCompletionEvent) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	created := time.Now().Unix()
	chunk := func(delta openai.ChatCompletionStreamChoiceDelta, finish string) openai.ChatCompletionStreamResponse {
		return openai.ChatCompletionStreamResponse{
			ID:      id,
			Object:  "chat.completion.chunk",
			Created: created,
			Model:   model,
			Choices: []openai.ChatCompletionStreamChoice{{
				Delta:        delta,
				FinishReason: openai.FinishReason(finish),
			}},
		}
	}

	first := true
	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("Client went away during %s", id)
			return
		case ev, ok := <-events:
			if !ok {
				s.logger.Warn("Stream %s ended without finish", id)
				return
			}
			switch ev.Type {
			case models.EventMessage:
				var delta openai.ChatCompletionStreamChoiceDelta
				if first {
					delta.Role = openai.ChatMessageRoleAssistant
					first = false
				}
				if ev.Kind == models.Think {
					delta.ReasoningContent = ev.Text
				} else {
					delta.Content = ev.Text
				}
				c.SSEvent("", chunk(delta, ""))
			case models.EventError:
				s.logger.WithError(ev.Err).Error("Stream %s failed", id)
				c.SSEvent("", openai.ErrorResponse{
					Error: &openai.APIError{Message: ev.Err.Error(), Type: "upstream_error"},
				})
				c.Writer.Flush()
				return
			case models.EventFinish:
				c.SSEvent("", chunk(openai.ChatCompletionStreamChoiceDelta{}, ev.FinishReason))
				c.SSEvent("", "[DONE]")
				c.Writer.Flush()
				return
			}
			c.Writer.Flush()
		}
	}
}

// fail maps request and upstream errors onto OpenAI-style error bodies
func (s *Server) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrEmptyMessages), errors.Is(err, models.ErrInvalidModel):
		abortWithError(c, http.StatusBadRequest, "invalid_request_error", err.Error())
	default:
		s.logger.WithError(err).Error("Completion failed")
		abortWithError(c, http.StatusBadGateway, "upstream_error", err.Error())
	}
}

// toChatRequest validates the public request and converts it. Multi-part
// content is reduced to its text parts.
func toChatRequest(body *openai.ChatCompletionRequest) (*models.ChatCompletionRequest, error) {
	model, err := models.ParseChatModel(body.Model)
	if err != nil {
		return nil, err
	}
	if len(body.Messages) == 0 {
		return nil, models.ErrEmptyMessages
	}

	messages := make(models.ChatMessages, 0, len(body.Messages))
	for _, m := range body.Messages {
		content := m.Content
		if content == "" && len(m.MultiContent) > 0 {
			var parts []string
			for _, part := range m.MultiContent {
				if part.Type == openai.ChatMessagePartTypeText {
					parts = append(parts, part.Text)
				}
			}
			content = strings.Join(parts, "\n")
		}
		messages = append(messages, models.ChatMessage{
			Role:             m.Role,
			Content:          content,
			ReasoningContent: m.ReasoningContent,
		})
	}
	return &models.ChatCompletionRequest{Messages: messages, ChatModel: model}, nil
}
