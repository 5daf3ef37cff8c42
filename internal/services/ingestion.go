package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/chatsum/chatsum-backend/internal/repository"
)

// ErrInvalidMessage is returned when an inbound message is missing its
// conversation or message id.
var ErrInvalidMessage = errors.New("message is missing conversation_id or message_id")

// IngestionService is the inbound-message path: append to the buffer, then
// evaluate the summarization trigger as a detached step.
type IngestionService struct {
	buffer        repository.MessageBuffer
	conversations repository.ConversationRepository
	summarization *SummarizationService
	logger        *logrus.Logger
}

func NewIngestionService(
	buffer repository.MessageBuffer,
	conversations repository.ConversationRepository,
	summarization *SummarizationService,
	logger *logrus.Logger,
) *IngestionService {
	return &IngestionService{
		buffer:        buffer,
		conversations: conversations,
		summarization: summarization,
		logger:        logger,
	}
}

// Ingest appends one inbound message and evaluates the summarization
// trigger. Trigger failures are logged, never returned: message intake must
// not depend on the summarization pipeline being healthy.
func (s *IngestionService) Ingest(ctx context.Context, msg repository.InboundMessage) error {
	if msg.ConversationID == "" || msg.MessageID == "" {
		return ErrInvalidMessage
	}
	if msg.TsMs == 0 {
		msg.TsMs = time.Now().UnixMilli()
	}

	inserted, err := s.buffer.Append(ctx, msg)
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	if !inserted {
		s.logger.WithFields(logrus.Fields{
			"conversation_id": msg.ConversationID,
			"message_id":      msg.MessageID,
		}).Debug("ingest: duplicate message ignored")
	}

	if err := s.conversations.Touch(ctx, msg.ConversationID); err != nil {
		s.logger.WithError(err).WithField("conversation_id", msg.ConversationID).Warn("ingest: failed to touch conversation")
	}

	// The trigger runs even for duplicates: a redelivered message can be
	// the first append seen after the buffer crossed the threshold.
	if err := s.summarization.MaybeEnqueue(ctx, msg.ConversationID); err != nil {
		s.logger.WithError(err).WithField("conversation_id", msg.ConversationID).Error("ingest: summarization trigger failed")
	}

	return nil
}
