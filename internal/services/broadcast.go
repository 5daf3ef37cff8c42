package services

import (
	"sync"

	"github.com/chatsum/chatsum-backend/internal/repository"
)

// SummaryBroadcaster fans freshly created summaries out to live
// subscribers (the websocket surface), keyed by conversation id.
type SummaryBroadcaster struct {
	mu   sync.RWMutex
	subs map[string]map[chan repository.ConversationSummary]struct{}
}

func NewSummaryBroadcaster() *SummaryBroadcaster {
	return &SummaryBroadcaster{
		subs: make(map[string]map[chan repository.ConversationSummary]struct{}),
	}
}

// Subscribe registers a listener for one conversation. The returned cancel
// function must be called exactly once; it closes the channel.
func (b *SummaryBroadcaster) Subscribe(conversationID string) (<-chan repository.ConversationSummary, func()) {
	ch := make(chan repository.ConversationSummary, 8)

	b.mu.Lock()
	if b.subs[conversationID] == nil {
		b.subs[conversationID] = make(map[chan repository.ConversationSummary]struct{})
	}
	b.subs[conversationID][ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if set, ok := b.subs[conversationID]; ok {
			if _, ok := set[ch]; ok {
				delete(set, ch)
				close(ch)
			}
			if len(set) == 0 {
				delete(b.subs, conversationID)
			}
		}
	}

	return ch, cancel
}

// Publish delivers a summary to every subscriber of its conversation. Slow
// subscribers with a full channel miss the update rather than block the
// job executor.
func (b *SummaryBroadcaster) Publish(summary repository.ConversationSummary) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subs[summary.ConversationID] {
		select {
		case ch <- summary:
		default:
		}
	}
}
