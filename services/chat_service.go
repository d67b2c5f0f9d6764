package services

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/observability"
	"chat-relay/repositories"
	"context"
	"log/slog"
	"time"
)

type IChatService interface {
	PostMessage(ctx context.Context, cmd domain.PostMessageCommand) (domain.ChatMessage, error)
	FetchMessages(ctx context.Context, cmd domain.FetchMessagesCommand) ([]domain.ChatMessage, error)
	Connect(conn contract.Connection, identity string) *Session
	DisconnectAll()
}

// ChatService ties the store, the registry and the broadcaster together.
// It is shared by every session of the process.
type ChatService struct {
	log         *slog.Logger
	repository  repositories.IMessageRepository
	registry    contract.IRegistry
	broadcaster contract.IBroadcaster
	metrics     *observability.Metrics
}

func NewChatService(log *slog.Logger, repository repositories.IMessageRepository, registry contract.IRegistry,
	broadcaster contract.IBroadcaster, metrics *observability.Metrics) *ChatService {
	return &ChatService{
		log:         log,
		repository:  repository,
		registry:    registry,
		broadcaster: broadcaster,
		metrics:     metrics,
	}
}

// PostMessage persists the message, then routes the stored record.
// Both steps run detached from ctx: a sender disconnecting mid-append still gets its message
// stored and delivered to the others. Nothing is routed when the append fails.
func (s *ChatService) PostMessage(ctx context.Context, cmd domain.PostMessageCommand) (domain.ChatMessage, error) {
	detached := context.WithoutCancel(ctx)

	start := time.Now()
	msg, err := s.repository.Append(detached, cmd)
	s.metrics.ObserveStore("append", start)
	if err != nil {
		return domain.ChatMessage{}, err
	}
	s.metrics.MessagePersisted()

	delivered := s.broadcaster.Route(detached, msg)
	s.log.Debug("Message routed",
		"message_id", msg.ID,
		"conversation", msg.Conversation().String(),
		"delivered", delivered)
	return msg, nil
}

func (s *ChatService) FetchMessages(ctx context.Context, cmd domain.FetchMessagesCommand) ([]domain.ChatMessage, error) {
	start := time.Now()
	messages, err := s.repository.History(ctx, cmd)
	s.metrics.ObserveStore("history", start)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveHistory(len(messages))
	return messages, nil
}

// Connect registers conn and returns its active session.
// A non-empty identity is bound right away, otherwise the first event binds it.
func (s *ChatService) Connect(conn contract.Connection, identity string) *Session {
	session := newSession(s.log, conn, s, s.registry, s.broadcaster, s.metrics)
	session.Open(identity)
	return session
}

// DisconnectAll closes every registered connection. Read loops notice and close their sessions.
func (s *ChatService) DisconnectAll() {
	for _, conn := range s.registry.All() {
		_ = conn.Close()
	}
}
