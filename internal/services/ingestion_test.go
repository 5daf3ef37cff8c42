package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatsum/chatsum-backend/internal/repository"
)

func newIngestionFixture(threshold int) (*IngestionService, *memBuffer, *memJobs, *memConversations) {
	buffer := newMemBuffer()
	jobs := newMemJobs()
	conversations := newMemConversations()
	summarization := NewSummarizationService(buffer, jobs, newMemSummaries(), &stubEngine{out: "S"}, nil, threshold, testLogger())
	ingestion := NewIngestionService(buffer, conversations, summarization, testLogger())
	return ingestion, buffer, jobs, conversations
}

func inbound(conversationID, messageID string, ts int64) repository.InboundMessage {
	return repository.InboundMessage{
		ConversationID: conversationID,
		AuthorID:       "u1",
		MessageID:      messageID,
		Text:           "hello there",
		TsMs:           ts,
	}
}

func TestIngestAppendIsIdempotent(t *testing.T) {
	ingestion, buffer, _, _ := newIngestionFixture(10)
	ctx := context.Background()

	require.NoError(t, ingestion.Ingest(ctx, inbound("c1", "m1", 100)))
	require.NoError(t, ingestion.Ingest(ctx, inbound("c1", "m1", 100)))

	count, err := buffer.Count(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestIngestRejectsIncompleteMessage(t *testing.T) {
	ingestion, _, _, _ := newIngestionFixture(10)

	err := ingestion.Ingest(context.Background(), repository.InboundMessage{Text: "hi"})
	assert.ErrorIs(t, err, ErrInvalidMessage)
}

func TestIngestSwallowsTriggerFailure(t *testing.T) {
	ingestion, _, jobs, _ := newIngestionFixture(1)
	jobs.enqueueErr = errors.New("job store down")

	// intake must stay unaffected by a broken trigger
	assert.NoError(t, ingestion.Ingest(context.Background(), inbound("c1", "m1", 100)))
}

func TestIngestTriggersAtThreshold(t *testing.T) {
	ingestion, _, jobs, _ := newIngestionFixture(2)
	ctx := context.Background()

	require.NoError(t, ingestion.Ingest(ctx, inbound("c1", "m1", 100)))
	assert.Empty(t, jobs.byConversation("c1"))

	require.NoError(t, ingestion.Ingest(ctx, inbound("c1", "m2", 101)))
	created := jobs.byConversation("c1")
	require.Len(t, created, 1)
	assert.Equal(t, repository.JobPending, created[0].Status)
}

func TestIngestDuplicateStillEvaluatesTrigger(t *testing.T) {
	ingestion, _, jobs, _ := newIngestionFixture(1)
	ctx := context.Background()

	require.NoError(t, ingestion.Ingest(ctx, inbound("c1", "m1", 100)))
	require.Len(t, jobs.byConversation("c1"), 1)

	// first job finishes without consuming the buffer
	require.NoError(t, jobs.MarkDone(ctx, 1))

	// a redelivered message is a duplicate append but still re-arms the
	// trigger for the refilled-looking buffer
	require.NoError(t, ingestion.Ingest(ctx, inbound("c1", "m1", 100)))
	created := jobs.byConversation("c1")
	require.Len(t, created, 2)
	assert.Equal(t, repository.JobPending, created[1].Status)
}

func TestIngestTouchesConversation(t *testing.T) {
	ingestion, _, _, conversations := newIngestionFixture(10)

	require.NoError(t, ingestion.Ingest(context.Background(), inbound("c1", "m1", 100)))
	assert.Equal(t, 1, conversations.touched["c1"])
}

func TestIngestSurvivesTouchFailure(t *testing.T) {
	ingestion, buffer, _, conversations := newIngestionFixture(10)
	conversations.touchErr = errors.New("conversations table missing")
	ctx := context.Background()

	require.NoError(t, ingestion.Ingest(ctx, inbound("c1", "m1", 100)))
	count, err := buffer.Count(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
