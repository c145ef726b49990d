package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/http/httpguts"

	"github.com/sleepstars/yuanbao2api/internal/config"
	"github.com/sleepstars/yuanbao2api/internal/logger"
	"github.com/sleepstars/yuanbao2api/internal/models"
	"github.com/sleepstars/yuanbao2api/internal/sse"
)

const (
	yuanbaoOrigin = "https://yuanbao.tencent.com"
	userAgent     = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/134.0.0.0 Safari/537.36"

	// fixed protocol fields of the chat request
	upstreamModel      = "gpt_175B_0404"
	upstreamPlugin     = "Adaptive"
	upstreamAPIVersion = "v2"
)

// ErrOpenStream is returned when the upstream SSE handshake fails
var ErrOpenStream = errors.New("cannot open stream")

// YuanbaoClient talks to the Yuanbao chat API with a fixed web-session identity
type YuanbaoClient struct {
	config *config.Config
	client *http.Client
	logger *logger.Logger
}

// NewYuanbaoClient builds the shared HTTP client. Header values that cannot be
// sent on the wire are reported here, before any request is made.
func NewYuanbaoClient(cfg *config.Config) (*YuanbaoClient, error) {
	headers, err := identityHeaders(cfg)
	if err != nil {
		return nil, err
	}

	return &YuanbaoClient{
		config: cfg,
		client: &http.Client{
			Transport: &headerTransport{
				base:    http.DefaultTransport,
				headers: headers,
			},
		},
		logger: logger.GetLogger().WithComponent("yuanbao_client"),
	}, nil
}

func identityHeaders(cfg *config.Config) (http.Header, error) {
	headers := http.Header{}
	values := []struct{ name, value string }{
		{"Cookie", fmt.Sprintf("hy_source=web; hy_user=%s; hy_token=%s", cfg.HyUser, cfg.HyToken)},
		{"Origin", yuanbaoOrigin},
		{"Referer", fmt.Sprintf("%s/chat/%s", yuanbaoOrigin, cfg.AgentID)},
		{"X-Agentid", cfg.AgentID},
		{"User-Agent", userAgent},
	}
	for _, h := range values {
		if !httpguts.ValidHeaderFieldValue(h.value) {
			return nil, fmt.Errorf("invalid %s header value", h.name)
		}
		headers.Set(h.name, h.value)
	}
	return headers, nil
}

// headerTransport stamps the identity headers on every outbound request
type headerTransport struct {
	base    http.RoundTripper
	headers http.Header
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	out := req.Clone(req.Context())
	for name, values := range t.headers {
		out.Header[name] = values
	}
	return t.base.RoundTrip(out)
}

// ConversationID returns the configured conversation. It is an operation
// rather than a field so conversations can later be created per request.
func (c *YuanbaoClient) ConversationID(ctx context.Context) (string, error) {
	if c.config.ConversationID == "" {
		return "", fmt.Errorf("no conversation id configured")
	}
	return c.config.ConversationID, nil
}

type chatRequestBody struct {
	Model             string         `json:"model"`
	Prompt            string         `json:"prompt"`
	Plugin            string         `json:"plugin"`
	DisplayPrompt     string         `json:"displayPrompt"`
	DisplayPromptType int            `json:"displayPromptType"`
	Options           requestOptions `json:"options"`
	Multimedia        []interface{}  `json:"multimedia"`
	AgentID           string         `json:"agentId"`
	SupportHint       int            `json:"supportHint"`
	Version           string         `json:"version"`
	ChatModelID       string         `json:"chatModelId"`
}

type requestOptions struct {
	ImageIntention imageIntention `json:"imageIntention"`
}

type imageIntention struct {
	NeedIntentionModel bool `json:"needIntentionModel"`
	BackendUpdateFlag  int  `json:"backendUpdateFlag"`
	IntentionStatus    bool `json:"intentionStatus"`
}

func (c *YuanbaoClient) buildBody(req *models.ChatCompletionRequest) (*chatRequestBody, error) {
	prompt, err := req.Messages.Render()
	if err != nil {
		return nil, fmt.Errorf("render prompt: %w", err)
	}
	return &chatRequestBody{
		Model:             upstreamModel,
		Prompt:            prompt,
		Plugin:            upstreamPlugin,
		DisplayPrompt:     prompt,
		DisplayPromptType: 1,
		Options: requestOptions{
			ImageIntention: imageIntention{
				NeedIntentionModel: true,
				BackendUpdateFlag:  2,
				IntentionStatus:    true,
			},
		},
		Multimedia:  []interface{}{},
		AgentID:     c.config.AgentID,
		SupportHint: 1,
		Version:     upstreamAPIVersion,
		ChatModelID: req.ChatModel.UpstreamID(),
	}, nil
}

// StartCompletion posts the chat request and returns once the event stream is
// established. Cancelling ctx aborts the stream.
func (c *YuanbaoClient) StartCompletion(ctx context.Context, conversationID string, req *models.ChatCompletionRequest) (EventStream, error) {
	body, err := c.buildBody(req)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/api/chat/%s", c.config.UpstreamBase, conversationID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Cache-Control", "no-cache")

	c.logger.Debug("POST %s model=%s prompt_len=%d", url, body.ChatModelID, len(body.Prompt))

	start := time.Now()
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOpenStream, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: unexpected status code %d: %s", ErrOpenStream, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	if mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type")); mediaType != "text/event-stream" {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: unexpected content type %q", ErrOpenStream, resp.Header.Get("Content-Type"))
	}

	c.logger.Debug("Stream opened in %s", time.Since(start))
	return sse.NewStream(resp.Body, c.config.IdleTimeout), nil
}
