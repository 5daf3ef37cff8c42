package engine

import (
	"context"

	"github.com/chatsum/chatsum-backend/internal/repository"
)

// Engine produces summary text from an ordered batch of buffered messages.
// Implementations own their timeout and retry behavior; callers see only
// success or a terminal error.
type Engine interface {
	Summarize(ctx context.Context, conversationID string, messages []repository.BufferedMessage) (string, error)
}

// InsufficientData is returned instead of calling the provider when a batch
// has no non-blank content left after normalization. It is a success value,
// distinguishable from a provider failure.
const InsufficientData = "Not enough conversation content to summarize."
