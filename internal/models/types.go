package models

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyMessages is returned when a conversation with no turns is rendered
	ErrEmptyMessages = errors.New("empty message list")
	// ErrInvalidModel is returned for public model names with no upstream mapping
	ErrInvalidModel = errors.New("invalid model")
)

// ChatMessage represents one turn of the conversation supplied by the caller
type ChatMessage struct {
	Role             string `json:"role"`
	Content          string `json:"content,omitempty"`
	ReasoningContent string `json:"reasoning_content,omitempty"`
}

// ChatMessages is the ordered conversation history
type ChatMessages []ChatMessage

// Render flattens the conversation into the single prompt string the upstream accepts.
// A single message is sent verbatim; longer histories are framed per turn.
func (m ChatMessages) Render() (string, error) {
	switch len(m) {
	case 0:
		return "", ErrEmptyMessages
	case 1:
		return m[0].Content, nil
	}

	var b strings.Builder
	for _, msg := range m {
		fmt.Fprintf(&b, "#[%s]\n%s\n\n", strings.TrimSpace(msg.Role), strings.TrimSpace(msg.Content))
	}
	return b.String(), nil
}

// ChatModel enumerates the models the upstream exposes
type ChatModel int

const (
	DeepSeekV3 ChatModel = iota
	DeepSeekR1
)

var chatModelNames = map[ChatModel]struct {
	public   string
	upstream string
}{
	DeepSeekV3: {public: "deepseek-v3", upstream: "deep_seek_v3"},
	DeepSeekR1: {public: "deepseek-r1", upstream: "deep_seek"},
}

// ChatModels returns every supported model in declaration order
func ChatModels() []ChatModel {
	return []ChatModel{DeepSeekV3, DeepSeekR1}
}

// ParseChatModel maps a public model name to its ChatModel
func ParseChatModel(name string) (ChatModel, error) {
	for _, m := range ChatModels() {
		if chatModelNames[m].public == name {
			return m, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidModel, name)
}

// PublicName is the identifier used on the OpenAI-compatible surface
func (m ChatModel) PublicName() string {
	return chatModelNames[m].public
}

// UpstreamID is the chatModelId the upstream expects
func (m ChatModel) UpstreamID() string {
	return chatModelNames[m].upstream
}

func (m ChatModel) String() string {
	return m.PublicName()
}

// ChatCompletionRequest is the normalized request handed to the orchestrator
type ChatCompletionRequest struct {
	Messages  ChatMessages
	ChatModel ChatModel
}
