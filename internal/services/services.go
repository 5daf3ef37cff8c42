package services

import (
	"github.com/sirupsen/logrus"

	"github.com/chatsum/chatsum-backend/internal/engine"
	"github.com/chatsum/chatsum-backend/internal/repository"
)

// Services holds all service instances
type Services struct {
	Ingestion     *IngestionService
	Summarization *SummarizationService
	Conversations *ConversationService
	Broadcaster   *SummaryBroadcaster
}

// NewServices wires all service instances
func NewServices(
	buffer repository.MessageBuffer,
	jobs repository.JobRepository,
	summaries repository.SummaryRepository,
	conversations repository.ConversationRepository,
	eng engine.Engine,
	threshold int,
	logger *logrus.Logger,
) *Services {
	broadcaster := NewSummaryBroadcaster()
	summarization := NewSummarizationService(buffer, jobs, summaries, eng, broadcaster, threshold, logger)

	return &Services{
		Ingestion:     NewIngestionService(buffer, conversations, summarization, logger),
		Summarization: summarization,
		Conversations: NewConversationService(conversations, logger),
		Broadcaster:   broadcaster,
	}
}
