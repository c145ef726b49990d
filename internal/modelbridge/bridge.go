package modelbridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sleepstars/yuanbao2api/internal/clients"
	"github.com/sleepstars/yuanbao2api/internal/logger"
	"github.com/sleepstars/yuanbao2api/internal/metrics"
	"github.com/sleepstars/yuanbao2api/internal/models"
	"github.com/sleepstars/yuanbao2api/internal/sse"
)

// DefaultFinishReason is reported when the upstream never sent a stopReason
const DefaultFinishReason = "stop"

// Translator turns a raw upstream SSE stream into semantic completion events
type Translator struct {
	logger  *logger.Logger
	metrics *metrics.CompletionMetrics
}

// NewTranslator creates a translator; m may be nil
func NewTranslator(m *metrics.CompletionMetrics) *Translator {
	return &Translator{
		logger:  logger.GetLogger().WithComponent("translator"),
		metrics: m,
	}
}

// Run drains src into out and is the only sender on out. It closes out and
// src before returning.
//
// A clean end of stream yields exactly one Finish event. A transport failure
// closes out without Finish and is returned. An idle timeout sends one Error
// event first. Cancelling ctx stops the upstream read and returns ctx.Err().
func (t *Translator) Run(ctx context.Context, model string, src clients.EventStream, out chan<- models.ChatCompletionEvent) error {
	defer close(out)
	defer src.Close()

	stop := context.AfterFunc(ctx, func() { src.Close() })
	defer stop()

	start := time.Now()
	done := t.metrics.StreamStarted(model)
	outcome := "finish"
	defer func() { done(outcome, time.Since(start).Seconds()) }()

	finishReason := DefaultFinishReason
	frames, fragments := 0, 0

	for {
		ev, err := src.Next()
		if errors.Is(err, io.EOF) {
			t.logger.Debug("Stream ended after %d frames", frames)
			break
		}
		if err != nil {
			switch {
			case ctx.Err() != nil:
				outcome = "cancelled"
				return ctx.Err()
			case errors.Is(err, sse.ErrIdleTimeout):
				outcome = "idle_timeout"
				send(ctx, out, models.NewErrorEvent(err))
				return err
			default:
				outcome = "error"
				return fmt.Errorf("stream error after %d frames: %w", frames, err)
			}
		}

		if ev.Event != "message" {
			continue
		}
		frames++

		f, ok := decodeFrame(ev.Data)
		if !ok {
			t.metrics.ObserveFrame("invalid")
			t.logger.Debug("Skipping malformed frame: %.200s", ev.Data)
			continue
		}
		t.metrics.ObserveFrame(f.frameType())

		var event models.ChatCompletionEvent
		switch f := f.(type) {
		case thinkFrame:
			if f.Content == "" {
				continue
			}
			event = models.NewMessageEvent(models.Think, f.Content)
		case textFrame:
			event = models.NewMessageEvent(models.Msg, f.Msg)
		case controlFrame:
			if f.StopReason != "" {
				finishReason = f.StopReason
			}
			t.logger.Debug("Control frame type=%q stopReason=%q", f.Type, f.StopReason)
			continue
		}

		if fragments == 0 {
			t.metrics.ObserveFirstFragment(model, time.Since(start).Seconds())
		}
		fragments++
		if err := send(ctx, out, event); err != nil {
			outcome = "cancelled"
			return err
		}
	}

	if err := send(ctx, out, models.NewFinishEvent(finishReason)); err != nil {
		outcome = "cancelled"
		return err
	}
	t.logger.Debug("Stream finished: reason=%s fragments=%d", finishReason, fragments)
	return nil
}

// send delivers ev unless the consumer has gone away
func send(ctx context.Context, out chan<- models.ChatCompletionEvent, ev models.ChatCompletionEvent) error {
	select {
	case out <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
