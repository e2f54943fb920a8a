// Package memory defines the narrow conversation-store contract the
// coordinator depends on. Storage failures are logged and swallowed by the
// best-effort wrapper: memory must never fail a task.
package memory

import (
	"context"
	"time"
)

// Conversation is one stored command/result exchange.
type Conversation struct {
	SessionID string
	Command   string
	Result    string
	Timestamp time.Time
}

// ConversationStore persists exchanges and retrieves relevant history.
type ConversationStore interface {
	StoreConversation(ctx context.Context, conv Conversation) error
	RetrieveRelevant(ctx context.Context, sessionID, query string, limit int) ([]Conversation, error)
}
