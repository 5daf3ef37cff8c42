package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/chatsum/chatsum-backend/internal/repository"
)

// ConversationRepository implements repository.ConversationRepository using PostgreSQL
type ConversationRepository struct {
	db *sqlx.DB
}

// NewConversationRepository creates a new PostgreSQL conversation repository
func NewConversationRepository(db *sqlx.DB) repository.ConversationRepository {
	return &ConversationRepository{db: db}
}

// Upsert registers or reactivates a conversation
func (r *ConversationRepository) Upsert(ctx context.Context, conversationID, convType string, title *string) error {
	query := `
		INSERT INTO conversations (conversation_id, type, title, is_active, last_seen_at)
		VALUES ($1, $2, $3, TRUE, NOW())
		ON CONFLICT (conversation_id) DO UPDATE
		SET type = EXCLUDED.type, title = EXCLUDED.title, is_active = TRUE, last_seen_at = NOW()
	`
	_, err := r.db.ExecContext(ctx, query, conversationID, convType, title)
	return err
}

// MarkInactive deactivates a conversation. Implemented as an upsert so a
// deactivation event for a never-registered conversation still lands as an
// inactive row instead of being lost.
func (r *ConversationRepository) MarkInactive(ctx context.Context, conversationID string) error {
	query := `
		INSERT INTO conversations (conversation_id, type, title, is_active, last_seen_at)
		VALUES ($1, 'unknown', NULL, FALSE, NOW())
		ON CONFLICT (conversation_id) DO UPDATE
		SET is_active = FALSE, last_seen_at = NOW()
	`
	_, err := r.db.ExecContext(ctx, query, conversationID)
	return err
}

// Touch refreshes last_seen_at
func (r *ConversationRepository) Touch(ctx context.Context, conversationID string) error {
	query := "UPDATE conversations SET last_seen_at = NOW() WHERE conversation_id = $1"
	_, err := r.db.ExecContext(ctx, query, conversationID)
	return err
}

// List returns conversations, most recently seen first
func (r *ConversationRepository) List(ctx context.Context, activeOnly bool) ([]repository.Conversation, error) {
	var conversations []repository.Conversation

	query := `
		SELECT conversation_id, type, title, is_active, added_at, last_seen_at
		FROM conversations
		ORDER BY last_seen_at DESC
	`
	if activeOnly {
		query = `
			SELECT conversation_id, type, title, is_active, added_at, last_seen_at
			FROM conversations
			WHERE is_active = TRUE
			ORDER BY last_seen_at DESC
		`
	}

	err := r.db.SelectContext(ctx, &conversations, query)
	if err != nil {
		return nil, err
	}

	return conversations, nil
}
