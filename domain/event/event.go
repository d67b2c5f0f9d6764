// Package event defines the named events exchanged between clients and the relay.
package event

import (
	"chat-relay/domain"
	"encoding/json"
	"time"

	"github.com/samber/lo"
)

type Name string

const (
	// ChatMessage is both the inbound send request and the outbound delivery of a persisted message.
	ChatMessage   Name = "chat message"
	FetchMessages Name = "fetch messages"
	ChatHistory   Name = "chat history"
	Error         Name = "error"
)

// Inbound is a client event as read from the wire. Data is decoded lazily by the session.
type Inbound struct {
	Event Name            `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Outbound is a relay event ready to be written to a connection.
type Outbound struct {
	Event Name `json:"event"`
	Data  any  `json:"data"`
}

type ChatMessagePayload struct {
	Message    string `json:"message" validate:"required,notblank"`
	SenderID   string `json:"senderId" validate:"required,notblank"`
	ReceiverID string `json:"receiverId" validate:"required,notblank"`
}

type FetchMessagesPayload struct {
	SenderID   string `json:"senderId" validate:"required,notblank"`
	ReceiverID string `json:"receiverId" validate:"required,notblank"`
}

// MessageRecord is the wire shape of a persisted message.
type MessageRecord struct {
	ID         string    `json:"id"`
	Message    string    `json:"message"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	CreatedAt  time.Time `json:"createdAt"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

func NewChatMessage(m domain.ChatMessage) Outbound {
	return Outbound{Event: ChatMessage, Data: toRecord(m)}
}

// NewChatHistory always carries an array, never null, so clients can tell an empty
// conversation from a malformed reply.
func NewChatHistory(messages []domain.ChatMessage) Outbound {
	records := lo.Map(messages, func(item domain.ChatMessage, _ int) MessageRecord {
		return toRecord(item)
	})
	if records == nil {
		records = []MessageRecord{}
	}
	return Outbound{Event: ChatHistory, Data: records}
}

func NewError(message string) Outbound {
	return Outbound{Event: Error, Data: ErrorPayload{Message: message}}
}

func toRecord(m domain.ChatMessage) MessageRecord {
	return MessageRecord{
		ID:         m.ID.String(),
		Message:    m.Message,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		CreatedAt:  m.CreatedAt,
	}
}
