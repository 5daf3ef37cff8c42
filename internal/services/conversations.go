package services

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/chatsum/chatsum-backend/internal/repository"
)

// ConversationService tracks the lifecycle of conversations the system is
// attached to.
type ConversationService struct {
	conversations repository.ConversationRepository
	logger        *logrus.Logger
}

func NewConversationService(conversations repository.ConversationRepository, logger *logrus.Logger) *ConversationService {
	return &ConversationService{conversations: conversations, logger: logger}
}

// Register activates a conversation, creating or updating its record.
func (s *ConversationService) Register(ctx context.Context, conversationID, convType string, title *string) error {
	if conversationID == "" {
		return fmt.Errorf("conversation_id is required")
	}
	if convType == "" {
		convType = "unknown"
	}
	if err := s.conversations.Upsert(ctx, conversationID, convType, title); err != nil {
		return fmt.Errorf("register conversation: %w", err)
	}
	s.logger.WithField("conversation_id", conversationID).Info("conversation registered")
	return nil
}

// Deactivate marks a conversation inactive (the producer left or was
// removed). Buffered messages and summaries are retained.
func (s *ConversationService) Deactivate(ctx context.Context, conversationID string) error {
	if err := s.conversations.MarkInactive(ctx, conversationID); err != nil {
		return fmt.Errorf("deactivate conversation: %w", err)
	}
	s.logger.WithField("conversation_id", conversationID).Info("conversation deactivated")
	return nil
}

// List returns conversations, most recently seen first.
func (s *ConversationService) List(ctx context.Context, activeOnly bool) ([]repository.Conversation, error) {
	return s.conversations.List(ctx, activeOnly)
}
