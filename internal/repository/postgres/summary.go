package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/chatsum/chatsum-backend/internal/repository"
)

// SummaryRepository implements repository.SummaryRepository using PostgreSQL
type SummaryRepository struct {
	db *sqlx.DB
}

// NewSummaryRepository creates a new PostgreSQL summary repository
func NewSummaryRepository(db *sqlx.DB) repository.SummaryRepository {
	return &SummaryRepository{db: db}
}

// Create appends a summary row covering [fromTsMs, toTsMs]
func (r *SummaryRepository) Create(ctx context.Context, conversationID string, fromTsMs, toTsMs int64, summary string) (*repository.ConversationSummary, error) {
	row := repository.ConversationSummary{
		ConversationID: conversationID,
		FromTsMs:       fromTsMs,
		ToTsMs:         toTsMs,
		Summary:        summary,
	}

	query := `
		INSERT INTO conversation_summaries (conversation_id, from_ts_ms, to_ts_ms, summary)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`

	err := r.db.QueryRowContext(ctx, query, conversationID, fromTsMs, toTsMs, summary).Scan(&row.ID, &row.CreatedAt)
	if err != nil {
		return nil, err
	}

	return &row, nil
}

// Latest returns the most recently created summary for a conversation, nil
// when it has none
func (r *SummaryRepository) Latest(ctx context.Context, conversationID string) (*repository.ConversationSummary, error) {
	var row repository.ConversationSummary
	query := `
		SELECT id, conversation_id, from_ts_ms, to_ts_ms, summary, created_at
		FROM conversation_summaries
		WHERE conversation_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`

	err := r.db.GetContext(ctx, &row, query, conversationID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &row, nil
}
