// Package domain contains core concepts of the chat relay.
// This file defines ChatMessage records and related rules.
// Messages are immutable once the store has assigned their identity.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// ChatMessage represents a persisted, immutable chat message between two participants.
type ChatMessage struct {
	ID         uuid.UUID // assigned by the store
	Message    string
	SenderID   string
	ReceiverID string
	CreatedAt  time.Time // assigned by the store
}

// Conversation returns the unordered participant pair of the message.
func (m ChatMessage) Conversation() ConversationKey {
	return NewConversationKey(m.SenderID, m.ReceiverID)
}
