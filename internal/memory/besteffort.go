package memory

import (
	"context"

	"github.com/aatumaykin/nexos/internal/logger"
)

// BestEffort wraps a ConversationStore so that failures degrade to log
// lines. A task result is never lost because history could not be written.
type BestEffort struct {
	store  ConversationStore
	logger *logger.Logger
}

func NewBestEffort(store ConversationStore, log *logger.Logger) *BestEffort {
	return &BestEffort{store: store, logger: log}
}

// Store writes the exchange, logging instead of failing.
func (b *BestEffort) Store(ctx context.Context, conv Conversation) {
	if b.store == nil {
		return
	}
	if err := b.store.StoreConversation(ctx, conv); err != nil {
		b.logger.WarnCtx(ctx, "failed to store conversation",
			logger.Field{Key: "session_id", Value: conv.SessionID},
			logger.Field{Key: "error", Value: err})
	}
}

// Relevant retrieves history, returning nil on failure.
func (b *BestEffort) Relevant(ctx context.Context, sessionID, query string, limit int) []Conversation {
	if b.store == nil {
		return nil
	}
	convs, err := b.store.RetrieveRelevant(ctx, sessionID, query, limit)
	if err != nil {
		b.logger.WarnCtx(ctx, "failed to retrieve conversation history",
			logger.Field{Key: "session_id", Value: sessionID},
			logger.Field{Key: "error", Value: err})
		return nil
	}
	return convs
}
