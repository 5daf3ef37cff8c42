package engine

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"

	"github.com/chatsum/chatsum-backend/internal/config"
	"github.com/chatsum/chatsum-backend/internal/repository"
)

const summaryInstructions = "Write a short summary of the conversation below. " +
	"Format: 5-10 bullet points followed by a single \"Bottom line\" sentence. " +
	"Stick to what was actually said; do not invent facts or add commentary."

var whitespace = regexp.MustCompile(`\s+`)

// chatCompleter is the slice of the OpenAI client the engine uses
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIEngine implements Engine on the OpenAI chat completions API
type OpenAIEngine struct {
	client     chatCompleter
	model      string
	timeout    time.Duration
	maxRetries int
	maxTokens  int
	logger     *logrus.Logger
}

// NewOpenAIEngine creates the production summarization engine. A missing
// API key is a startup failure, not a per-job condition.
func NewOpenAIEngine(cfg config.OpenAIConfig, logger *logrus.Logger) (*OpenAIEngine, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("OpenAI API key is required (set OPENAI_API_KEY)")
	}

	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxTokens := cfg.MaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = 400
	}

	return &OpenAIEngine{
		client:     openai.NewClient(cfg.APIKey),
		model:      model,
		timeout:    timeout,
		maxRetries: cfg.MaxRetries,
		maxTokens:  maxTokens,
		logger:     logger,
	}, nil
}

// Summarize renders the batch into a transcript and asks the model for a
// summary. A batch with no usable text short-circuits to the
// InsufficientData sentinel without a provider call.
func (e *OpenAIEngine) Summarize(ctx context.Context, conversationID string, messages []repository.BufferedMessage) (string, error) {
	transcript := RenderTranscript(messages)
	if transcript == "" {
		e.logger.WithField("conversation_id", conversationID).Warn("summarize: batch has no usable text, skipping provider call")
		return InsufficientData, nil
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model:     e.model,
		MaxTokens: e.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: summaryInstructions},
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf("conversation_id=%s\n\nMessages:\n%s", conversationID, transcript)},
		},
	}

	started := time.Now()
	e.logger.WithFields(logrus.Fields{
		"conversation_id": conversationID,
		"messages":        len(messages),
		"model":           e.model,
	}).Info("summarize: start")

	var resp openai.ChatCompletionResponse
	var err error
	for attempt := 0; ; attempt++ {
		resp, err = e.client.CreateChatCompletion(ctx, req)
		if err == nil || attempt >= e.maxRetries || ctx.Err() != nil {
			break
		}
		e.logger.WithError(err).WithFields(logrus.Fields{
			"conversation_id": conversationID,
			"attempt":         attempt + 1,
		}).Warn("summarize: provider call failed, retrying")
	}
	if err != nil {
		e.logger.WithError(err).WithFields(logrus.Fields{
			"conversation_id": conversationID,
			"elapsed_ms":      time.Since(started).Milliseconds(),
		}).Error("summarize: provider call failed")
		return "", fmt.Errorf("summarization call failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("summarization call returned no choices")
	}
	out := strings.TrimSpace(resp.Choices[0].Message.Content)
	if out == "" {
		return "", errors.New("summarization call returned empty content")
	}

	e.logger.WithFields(logrus.Fields{
		"conversation_id": conversationID,
		"elapsed_ms":      time.Since(started).Milliseconds(),
		"summary_len":     len(out),
	}).Info("summarize: done")

	return out, nil
}

// RenderTranscript renders one line per message in the form
// "<RFC3339 timestamp> (<author or unknown>) — <text>", collapsing internal
// whitespace and dropping messages with nothing left after trimming.
func RenderTranscript(messages []repository.BufferedMessage) string {
	lines := make([]string, 0, len(messages))
	for _, m := range messages {
		text := strings.TrimSpace(whitespace.ReplaceAllString(m.Text, " "))
		if text == "" {
			continue
		}

		author := "unknown"
		if m.AuthorID.Valid && m.AuthorID.String != "" {
			author = m.AuthorID.String
		}

		ts := time.UnixMilli(m.TsMs).UTC().Format(time.RFC3339)
		lines = append(lines, fmt.Sprintf("%s (%s) — %s", ts, author, text))
	}
	return strings.Join(lines, "\n")
}
