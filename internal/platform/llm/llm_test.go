package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubChatClient struct {
	response openai.ChatCompletionResponse
	err      error
	last     openai.ChatCompletionRequest
	deadline bool
}

func (s *stubChatClient) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	s.last = req
	_, s.deadline = ctx.Deadline()
	return s.response, s.err
}

type recordingObserver struct {
	outcomes []string
}

func (r *recordingObserver) ObserveLLM(purpose, outcome string) {
	r.outcomes = append(r.outcomes, purpose+":"+outcome)
}

func reply(content string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: content}}},
	}
}

func TestOpenAIClient_Complete(t *testing.T) {
	stub := &stubChatClient{response: reply("  Take with food.  ")}
	obs := &recordingObserver{}
	c := newOpenAIClient(stub, Config{Timeout: time.Second}, obs)

	got, err := c.Complete(context.Background(), "summary", []Message{
		{Role: RoleSystem, Content: "You summarize prescriptions."},
		{Role: RoleUser, Content: "Amoxicillin 500mg"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Take with food.", got)
	assert.Equal(t, defaultModel, stub.last.Model)
	require.Len(t, stub.last.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, stub.last.Messages[0].Role)
	assert.Equal(t, "Amoxicillin 500mg", stub.last.Messages[1].Content)
	assert.True(t, stub.deadline)
	assert.Equal(t, []string{"summary:ok"}, obs.outcomes)
}

func TestOpenAIClient_Errors(t *testing.T) {
	obs := &recordingObserver{}

	c := newOpenAIClient(&stubChatClient{err: errors.New("429 too many requests")}, Config{Model: "gpt-test"}, obs)
	_, err := c.Complete(context.Background(), "chat", nil)
	assert.ErrorContains(t, err, "429")

	c = newOpenAIClient(&stubChatClient{}, Config{}, obs)
	_, err = c.Complete(context.Background(), "chat", nil)
	assert.ErrorContains(t, err, "no choices")

	c = newOpenAIClient(&stubChatClient{response: reply("   ")}, Config{}, obs)
	_, err = c.Complete(context.Background(), "chat", nil)
	assert.ErrorContains(t, err, "empty content")

	assert.Equal(t, []string{"chat:error", "chat:empty", "chat:empty"}, obs.outcomes)
}

func TestNew_DisabledWithoutKey(t *testing.T) {
	obs := &recordingObserver{}
	c := New(Config{APIKey: " "}, obs)

	_, err := c.Complete(context.Background(), "chat", nil)
	assert.ErrorIs(t, err, ErrDisabled)
	assert.Equal(t, []string{"chat:disabled"}, obs.outcomes)
}

func TestNew_WithKey(t *testing.T) {
	c := New(Config{APIKey: "sk-test", BaseURL: "http://localhost:1/v1"}, nil)
	oc, ok := c.(*OpenAIClient)
	require.True(t, ok)
	assert.Equal(t, defaultModel, oc.model)
	assert.Equal(t, defaultTimeout, oc.timeout)
}
