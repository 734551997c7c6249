// Package llm wraps the chat-completion API used for prescription summaries
// and the patient assistant.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const (
	RoleSystem    = openai.ChatMessageRoleSystem
	RoleUser      = openai.ChatMessageRoleUser
	RoleAssistant = openai.ChatMessageRoleAssistant

	defaultModel   = "gpt-4o-mini"
	defaultTimeout = 30 * time.Second
)

// ErrDisabled is returned by a Client that has no API key configured.
var ErrDisabled = errors.New("llm: no API key configured")

var tracer = otel.Tracer("careline.internal.platform.llm")

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client produces a completion for a conversation. purpose labels the call
// for metrics and tracing ("summary", "chat").
type Client interface {
	Complete(ctx context.Context, purpose string, messages []Message) (string, error)
}

// Observer receives one call per completion attempt.
type Observer interface {
	ObserveLLM(purpose, outcome string)
}

type chatClient interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Config holds the OpenAI connection settings.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// OpenAIClient is a Client backed by the OpenAI chat completions API (or any
// API-compatible endpoint set through BaseURL).
type OpenAIClient struct {
	client   chatClient
	model    string
	timeout  time.Duration
	observer Observer
}

// New returns an OpenAI-backed Client, or a disabled Client when cfg has no
// API key. observer may be nil.
func New(cfg Config, observer Observer) Client {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return disabledClient{observer: observer}
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	return newOpenAIClient(openai.NewClientWithConfig(oc), cfg, observer)
}

func newOpenAIClient(client chatClient, cfg Config, observer Observer) *OpenAIClient {
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &OpenAIClient{client: client, model: cfg.Model, timeout: cfg.Timeout, observer: observer}
}

func (c *OpenAIClient) Complete(ctx context.Context, purpose string, messages []Message) (string, error) {
	ctx, span := tracer.Start(ctx, "llm.complete")
	defer span.End()
	span.SetAttributes(
		attribute.String("careline.llm.purpose", purpose),
		attribute.String("careline.llm.model", c.model),
		attribute.Int("careline.llm.messages", len(messages)),
	)

	req := openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: make([]openai.ChatCompletionMessage, 0, len(messages)),
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.CreateChatCompletion(callCtx, req)
	if err != nil {
		span.RecordError(err)
		c.observe(purpose, "error")
		return "", fmt.Errorf("llm: completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		err := errors.New("llm: completion returned no choices")
		span.RecordError(err)
		c.observe(purpose, "empty")
		return "", err
	}
	reply := strings.TrimSpace(resp.Choices[0].Message.Content)
	if reply == "" {
		err := errors.New("llm: completion returned empty content")
		span.RecordError(err)
		c.observe(purpose, "empty")
		return "", err
	}

	span.SetAttributes(attribute.Int("careline.llm.total_tokens", resp.Usage.TotalTokens))
	c.observe(purpose, "ok")
	return reply, nil
}

func (c *OpenAIClient) observe(purpose, outcome string) {
	if c.observer != nil {
		c.observer.ObserveLLM(purpose, outcome)
	}
}

type disabledClient struct {
	observer Observer
}

func (d disabledClient) Complete(_ context.Context, purpose string, _ []Message) (string, error) {
	if d.observer != nil {
		d.observer.ObserveLLM(purpose, "disabled")
	}
	return "", ErrDisabled
}
