package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// InboundMessage is a message as delivered by the conversational front end.
// The provider-assigned MessageID is what dedups redeliveries.
type InboundMessage struct {
	ConversationID string
	AuthorID       string // empty when the provider did not attribute the message
	MessageID      string
	Text           string
	TsMs           int64
}

// BufferedMessage is a retained message plus the buffer-local sequence id
// assigned at insertion.
type BufferedMessage struct {
	BufferID       int64          `db:"buffer_id"`
	ConversationID string         `db:"conversation_id"`
	AuthorID       sql.NullString `db:"author_id"`
	MessageID      string         `db:"message_id"`
	Text           string         `db:"text"`
	TsMs           int64          `db:"ts_ms"`
}

// JobStatus is the lifecycle state of a summarization job.
type JobStatus string

const (
	JobPending JobStatus = "pending"
	JobRunning JobStatus = "running"
	JobDone    JobStatus = "done"
	JobFailed  JobStatus = "failed"
)

// SummarizationJob tracks one attempt to summarize a conversation's backlog.
// done and failed are terminal; a fresh job is created once the buffer
// refills.
type SummarizationJob struct {
	ID             int64          `db:"id"`
	ConversationID string         `db:"conversation_id"`
	Status         JobStatus      `db:"status"`
	Attempts       int            `db:"attempts"`
	LastError      sql.NullString `db:"last_error"`
	CreatedAt      time.Time      `db:"created_at"`
	LockedAt       sql.NullTime   `db:"locked_at"`
	LockedBy       uuid.NullUUID  `db:"locked_by"`
}

// ConversationSummary is an immutable record of one completed summarization.
// The timestamp span covers exactly the batch that was summarized.
type ConversationSummary struct {
	ID             int64     `db:"id" json:"id"`
	ConversationID string    `db:"conversation_id" json:"conversation_id"`
	FromTsMs       int64     `db:"from_ts_ms" json:"from_ts_ms"`
	ToTsMs         int64     `db:"to_ts_ms" json:"to_ts_ms"`
	Summary        string    `db:"summary" json:"summary"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// Conversation is a registered source of inbound messages.
type Conversation struct {
	ConversationID string    `db:"conversation_id" json:"conversation_id"`
	Type           string    `db:"type" json:"type"`
	Title          *string   `db:"title" json:"title,omitempty"`
	IsActive       bool      `db:"is_active" json:"is_active"`
	AddedAt        time.Time `db:"added_at" json:"added_at"`
	LastSeenAt     time.Time `db:"last_seen_at" json:"last_seen_at"`
}

// MessageBuffer is the durable, ordered, deduplicated per-conversation
// message log.
type MessageBuffer interface {
	// Append stores a message. Redelivery of the same (conversation,
	// message id) pair is a silent no-op; the return value reports whether
	// a row was actually inserted.
	Append(ctx context.Context, msg InboundMessage) (bool, error)
	// GetBatch returns up to limit messages ascending by (ts_ms, buffer_id).
	GetBatch(ctx context.Context, conversationID string, limit int) ([]BufferedMessage, error)
	// ClearUpTo deletes messages with buffer_id at or below the watermark.
	ClearUpTo(ctx context.Context, conversationID string, maxBufferID int64) error
	// Clear wipes the conversation's buffer unconditionally.
	Clear(ctx context.Context, conversationID string) error
	Count(ctx context.Context, conversationID string) (int, error)
}

// JobRepository stores summarization job state machines.
type JobRepository interface {
	// Get returns the job or nil when no such row exists.
	Get(ctx context.Context, id int64) (*SummarizationJob, error)
	// EnqueueIfAbsent atomically creates a pending job unless the
	// conversation already has a pending or running one, in which case it
	// returns nil without error.
	EnqueueIfAbsent(ctx context.Context, conversationID string) (*SummarizationJob, error)
	// Claim performs the pending->running compare-and-set for a specific
	// job, recording the claimer and bumping the attempts counter. Returns
	// false when the job was not pending.
	Claim(ctx context.Context, id int64, workerID uuid.UUID) (bool, error)
	// ClaimNext claims the oldest pending job, or returns nil when none
	// exist.
	ClaimNext(ctx context.Context, workerID uuid.UUID) (*SummarizationJob, error)
	MarkDone(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, lastError string) error
	// ReapStale recycles jobs stuck running past the cutoff: back to
	// pending while attempts remain, failed once maxAttempts is reached.
	ReapStale(ctx context.Context, olderThan time.Duration, maxAttempts int) (int, error)
}

// SummaryRepository is the append-only store of produced summaries.
type SummaryRepository interface {
	Create(ctx context.Context, conversationID string, fromTsMs, toTsMs int64, summary string) (*ConversationSummary, error)
	// Latest returns the most recently created summary, or nil when the
	// conversation has none.
	Latest(ctx context.Context, conversationID string) (*ConversationSummary, error)
}

// ConversationRepository tracks which conversations are active.
type ConversationRepository interface {
	Upsert(ctx context.Context, conversationID, convType string, title *string) error
	MarkInactive(ctx context.Context, conversationID string) error
	Touch(ctx context.Context, conversationID string) error
	List(ctx context.Context, activeOnly bool) ([]Conversation, error)
}
