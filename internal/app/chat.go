package app

import (
	"context"
	"fmt"
	"io"

	"github.com/sleepstars/yuanbao2api/internal/models"
	"github.com/sleepstars/yuanbao2api/internal/orchestrator"
)

// printEvents writes answer text to out and reasoning to thinking (skipped
// when nil) as fragments arrive. It returns the finish reason.
func printEvents(ctx context.Context, events <-chan models.ChatCompletionEvent, out, thinking io.Writer) (string, error) {
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return "", orchestrator.ErrTruncated
			}
			switch ev.Type {
			case models.EventMessage:
				w := out
				if ev.Kind == models.Think {
					w = thinking
				}
				if w != nil {
					if _, err := io.WriteString(w, ev.Text); err != nil {
						return "", err
					}
				}
			case models.EventError:
				return "", ev.Err
			case models.EventFinish:
				fmt.Fprintln(out)
				return ev.FinishReason, nil
			}
		}
	}
}
