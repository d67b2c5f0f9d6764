package domain

// PostMessageCommand is a validated intent to persist and deliver a message.
type PostMessageCommand struct {
	Message    string
	SenderID   string
	ReceiverID string
}

func (p PostMessageCommand) Conversation() ConversationKey {
	return NewConversationKey(p.SenderID, p.ReceiverID)
}

// FetchMessagesCommand asks for the ordered history between two participants.
type FetchMessagesCommand struct {
	SenderID   string
	ReceiverID string
}

func (f FetchMessagesCommand) Conversation() ConversationKey {
	return NewConversationKey(f.SenderID, f.ReceiverID)
}
