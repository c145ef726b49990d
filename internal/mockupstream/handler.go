// Package mockupstream is a local stand-in for the Yuanbao chat endpoint. It
// answers every prompt with an echo so the proxy can be exercised offline.
package mockupstream

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"

	"github.com/sleepstars/yuanbao2api/internal/logger"
)

// reasoningModel is the upstream id that gets think frames
const reasoningModel = "deep_seek"

type chatBody struct {
	Prompt        string `json:"prompt" binding:"required"`
	DisplayPrompt string `json:"displayPrompt"`
	ChatModelID   string `json:"chatModelId" binding:"required"`
	AgentID       string `json:"agentId" binding:"required"`
}

type thinkFrame struct {
	Type    string `json:"type"`
	Title   string `json:"title,omitempty"`
	Content string `json:"content"`
}

type textFrame struct {
	Type string `json:"type"`
	Msg  string `json:"msg"`
}

type metaFrame struct {
	Type       string `json:"type"`
	StopReason string `json:"stopReason"`
}

// Options tune the fake stream
type Options struct {
	// Delay between frames
	Delay time.Duration
	// StopReason is reported in the trailing meta frame when set
	StopReason string
}

// NewRouter returns a gin engine serving POST /api/chat/:conversation
func NewRouter(opts Options) *gin.Engine {
	log := logger.GetLogger().WithComponent("mock_upstream")

	r := gin.New()
	r.Use(gin.Recovery())
	r.POST("/api/chat/:conversation", func(c *gin.Context) {
		if c.GetHeader("X-Agentid") == "" || !strings.Contains(c.GetHeader("Cookie"), "hy_token=") {
			c.String(http.StatusUnauthorized, "missing identity")
			return
		}

		var body chatBody
		if err := c.ShouldBindJSON(&body); err != nil {
			c.String(http.StatusBadRequest, err.Error())
			return
		}
		log.Debug("Chat on %s model=%s prompt=%q", c.Param("conversation"), body.ChatModelID, body.Prompt)

		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Status(http.StatusOK)

		for _, ev := range script(body, opts) {
			select {
			case <-c.Request.Context().Done():
				return
			case <-time.After(opts.Delay):
			}
			if err := sse.Encode(c.Writer, ev); err != nil {
				log.WithError(err).Warn("Write failed")
				return
			}
			c.Writer.Flush()
		}
	})
	return r
}

// script lists the events sent for one prompt, including the noise the real
// service interleaves
func script(body chatBody, opts Options) []sse.Event {
	events := []sse.Event{
		{Event: "speech_type", Data: "text"},
		{Event: "message", Data: metaFrame{Type: "meta"}},
	}

	if body.ChatModelID == reasoningModel {
		events = append(events,
			sse.Event{Event: "message", Data: thinkFrame{Type: "think", Title: "thinking", Content: ""}},
			sse.Event{Event: "message", Data: thinkFrame{Type: "think", Content: "The user wrote "}},
			sse.Event{Event: "message", Data: thinkFrame{Type: "think", Content: "something; echo it."}},
		)
	}

	events = append(events, sse.Event{Event: "message", Data: "[plugin: ]"})
	for i, word := range strings.Fields("You said: " + body.Prompt) {
		if i > 0 {
			word = " " + word
		}
		events = append(events, sse.Event{Event: "message", Data: textFrame{Type: "text", Msg: word}})
	}
	if opts.StopReason != "" {
		events = append(events, sse.Event{Event: "message", Data: metaFrame{Type: "meta", StopReason: opts.StopReason}})
	}
	return events
}
