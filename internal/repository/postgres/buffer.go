package postgres

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/chatsum/chatsum-backend/internal/repository"
)

// BufferRepository implements repository.MessageBuffer using PostgreSQL
type BufferRepository struct {
	db *sqlx.DB
}

// NewBufferRepository creates a new PostgreSQL message buffer
func NewBufferRepository(db *sqlx.DB) repository.MessageBuffer {
	return &BufferRepository{db: db}
}

// Append inserts a message; redelivery of the same (conversation_id,
// message_id) pair hits the unique constraint and becomes a no-op.
func (r *BufferRepository) Append(ctx context.Context, msg repository.InboundMessage) (bool, error) {
	authorID := sql.NullString{String: msg.AuthorID, Valid: msg.AuthorID != ""}

	query := `
		INSERT INTO buffered_messages (conversation_id, author_id, message_id, text, ts_ms)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (conversation_id, message_id) DO NOTHING
	`

	res, err := r.db.ExecContext(ctx, query, msg.ConversationID, authorID, msg.MessageID, msg.Text, msg.TsMs)
	if err != nil {
		return false, err
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return inserted > 0, nil
}

// GetBatch returns up to limit messages ascending by (ts_ms, buffer_id).
// buffer_id breaks ties because provider timestamps have coarse
// (second-level) granularity.
func (r *BufferRepository) GetBatch(ctx context.Context, conversationID string, limit int) ([]repository.BufferedMessage, error) {
	var messages []repository.BufferedMessage
	query := `
		SELECT buffer_id, conversation_id, author_id, message_id, text, ts_ms
		FROM buffered_messages
		WHERE conversation_id = $1
		ORDER BY ts_ms ASC, buffer_id ASC
		LIMIT $2
	`

	err := r.db.SelectContext(ctx, &messages, query, conversationID, limit)
	if err != nil {
		return nil, err
	}

	return messages, nil
}

// ClearUpTo deletes messages at or below the watermark. Messages appended
// after the batch was read carry a higher buffer_id and survive, even when
// clock skew gave them an earlier timestamp.
func (r *BufferRepository) ClearUpTo(ctx context.Context, conversationID string, maxBufferID int64) error {
	query := "DELETE FROM buffered_messages WHERE conversation_id = $1 AND buffer_id <= $2"
	_, err := r.db.ExecContext(ctx, query, conversationID, maxBufferID)
	return err
}

// Clear wipes the conversation's buffer (administrative/test use)
func (r *BufferRepository) Clear(ctx context.Context, conversationID string) error {
	query := "DELETE FROM buffered_messages WHERE conversation_id = $1"
	_, err := r.db.ExecContext(ctx, query, conversationID)
	return err
}

// Count returns the number of retained messages for a conversation
func (r *BufferRepository) Count(ctx context.Context, conversationID string) (int, error) {
	var count int
	query := "SELECT COUNT(*) FROM buffered_messages WHERE conversation_id = $1"

	err := r.db.GetContext(ctx, &count, query, conversationID)
	if err != nil {
		return 0, err
	}

	return count, nil
}
