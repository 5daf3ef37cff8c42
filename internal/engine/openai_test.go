package engine

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatsum/chatsum-backend/internal/config"
	"github.com/chatsum/chatsum-backend/internal/repository"
)

type fakeCompleter struct {
	resp    openai.ChatCompletionResponse
	err     error
	calls   int
	lastReq openai.ChatCompletionRequest
}

func (f *fakeCompleter) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	return f.resp, nil
}

func testEngine(client chatCompleter) *OpenAIEngine {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return &OpenAIEngine{
		client:     client,
		model:      "gpt-4o-mini",
		timeout:    5 * time.Second,
		maxRetries: 2,
		maxTokens:  400,
		logger:     logger,
	}
}

func message(ts int64, author, text string) repository.BufferedMessage {
	return repository.BufferedMessage{
		AuthorID: sql.NullString{String: author, Valid: author != ""},
		Text:     text,
		TsMs:     ts,
	}
}

func completion(content string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: content}},
		},
	}
}

func TestRenderTranscript(t *testing.T) {
	transcript := RenderTranscript([]repository.BufferedMessage{
		message(1700000000000, "u1", "  hello\n\tworld  "),
		message(1700000001000, "", "second line"),
		message(1700000002000, "u2", "   \n\t "),
	})

	assert.Equal(t,
		"2023-11-14T22:13:20Z (u1) — hello world\n"+
			"2023-11-14T22:13:21Z (unknown) — second line",
		transcript)
}

func TestSummarizeSkipsProviderOnBlankBatch(t *testing.T) {
	client := &fakeCompleter{resp: completion("should not be used")}
	eng := testEngine(client)

	out, err := eng.Summarize(context.Background(), "c1", []repository.BufferedMessage{
		message(100, "u1", "   "),
		message(101, "u2", "\n\t"),
	})

	require.NoError(t, err)
	assert.Equal(t, InsufficientData, out)
	assert.Zero(t, client.calls, "provider must not be called for blank input")
}

func TestSummarizeSuccess(t *testing.T) {
	client := &fakeCompleter{resp: completion("  - a summary\nBottom line: fine.  ")}
	eng := testEngine(client)

	out, err := eng.Summarize(context.Background(), "c1", []repository.BufferedMessage{
		message(1700000000000, "u1", "hello"),
	})

	require.NoError(t, err)
	assert.Equal(t, "- a summary\nBottom line: fine.", out)
	assert.Equal(t, 1, client.calls)
	assert.Equal(t, "gpt-4o-mini", client.lastReq.Model)
	assert.Equal(t, 400, client.lastReq.MaxTokens)
	require.Len(t, client.lastReq.Messages, 2)
	assert.Contains(t, client.lastReq.Messages[1].Content, "conversation_id=c1")
	assert.Contains(t, client.lastReq.Messages[1].Content, "(u1) — hello")
}

func TestSummarizeRetriesThenFails(t *testing.T) {
	client := &fakeCompleter{err: errors.New("upstream 500")}
	eng := testEngine(client)

	_, err := eng.Summarize(context.Background(), "c1", []repository.BufferedMessage{
		message(100, "u1", "hello"),
	})

	require.ErrorContains(t, err, "upstream 500")
	// initial attempt plus maxRetries
	assert.Equal(t, 3, client.calls)
}

func TestSummarizeRejectsEmptyCompletion(t *testing.T) {
	client := &fakeCompleter{resp: completion("   ")}
	eng := testEngine(client)

	_, err := eng.Summarize(context.Background(), "c1", []repository.BufferedMessage{
		message(100, "u1", "hello"),
	})
	assert.ErrorContains(t, err, "empty content")
}

func TestSummarizeRejectsNoChoices(t *testing.T) {
	client := &fakeCompleter{resp: openai.ChatCompletionResponse{}}
	eng := testEngine(client)

	_, err := eng.Summarize(context.Background(), "c1", []repository.BufferedMessage{
		message(100, "u1", "hello"),
	})
	assert.ErrorContains(t, err, "no choices")
}

func TestNewOpenAIEngineRequiresAPIKey(t *testing.T) {
	_, err := NewOpenAIEngine(config.OpenAIConfig{}, logrus.New())
	assert.ErrorContains(t, err, "API key")
}

func TestNewOpenAIEngineDefaults(t *testing.T) {
	eng, err := NewOpenAIEngine(config.OpenAIConfig{APIKey: "sk-test"}, logrus.New())
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", eng.model)
	assert.Equal(t, 30*time.Second, eng.timeout)
	assert.Equal(t, 400, eng.maxTokens)
}
