package services

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/observability"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
)

// Texts of the error events sent back to a client.
const (
	InvalidPayload   = "Invalid message payload"
	UnsupportedEvent = "Unsupported event"
	SaveFailed       = "Failed to save message"
	FetchFailed      = "Failed to fetch messages"
	InternalError    = "Internal server error"
)

type State int

const (
	Connected State = iota
	Active
	Closed
)

func (s State) String() string {
	switch s {
	case Connected:
		return "connected"
	case Active:
		return "active"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// rejection carries the client-facing text of a failed event next to its cause.
type rejection struct {
	message string
	cause   error
}

func (r rejection) Error() string {
	return fmt.Sprintf("%s: %v", r.message, r.cause)
}

func (r rejection) Unwrap() error {
	return r.cause
}

func reject(message string, cause error) error {
	return rejection{message: message, cause: cause}
}

// Session is the protocol state of one connection.
// Handle is called sequentially by the transport read loop, Close may race with it.
type Session struct {
	log         *slog.Logger
	conn        contract.Connection
	service     IChatService
	registry    contract.IRegistry
	broadcaster contract.IBroadcaster
	metrics     *observability.Metrics

	mu     sync.Mutex
	state  State
	handle contract.Handle
}

func newSession(log *slog.Logger, conn contract.Connection, service IChatService, registry contract.IRegistry,
	broadcaster contract.IBroadcaster, metrics *observability.Metrics) *Session {
	return &Session{
		log:         log.With("connection_id", conn.ID()),
		conn:        conn,
		service:     service,
		registry:    registry,
		broadcaster: broadcaster,
		metrics:     metrics,
		state:       Connected,
	}
}

// Open registers the connection. Calling it on a session that is not Connected does nothing.
func (s *Session) Open(identity string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Connected {
		return
	}
	s.handle = s.registry.Register(s.conn)
	if identity != "" {
		s.registry.Bind(s.handle, identity)
	}
	s.state = Active
	s.metrics.ConnectionOpened(s.registry.Len())
	s.log.Info("Client connected", "identity", identity)
}

// Close unregisters and closes the connection. It is idempotent and terminal.
func (s *Session) Close(reason string) {
	s.mu.Lock()
	if s.state == Closed {
		s.mu.Unlock()
		return
	}
	wasActive := s.state == Active
	s.state = Closed
	s.mu.Unlock()

	if wasActive && s.registry.Unregister(s.handle) {
		s.metrics.ConnectionClosed(reason, s.registry.Len())
	}
	if err := s.conn.Close(); err != nil && !stderrors.Is(err, errors.ErrConnectionClosed) {
		s.log.Debug("Close failed", "error", err)
	}
	s.log.Info("Client disconnected", "reason", reason)
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// HandleRaw decodes one text frame and handles it.
func (s *Session) HandleRaw(ctx context.Context, data []byte) {
	var in event.Inbound
	if err := json.Unmarshal(data, &in); err != nil {
		if s.State() != Active {
			return
		}
		s.metrics.EventReceived("undecodable")
		s.fail(ctx, "undecodable", reject(InvalidPayload, fmt.Errorf("%w: %v", errors.ErrValidation, err)))
		return
	}
	s.Handle(ctx, in)
}

// Handle processes one inbound event. Every event yields exactly one outcome:
// a broadcast, a reply to this connection, or an error event to this connection.
// Events received after Close are dropped.
func (s *Session) Handle(ctx context.Context, in event.Inbound) {
	if s.State() != Active {
		s.log.Debug("Event dropped on inactive session", "event", in.Event)
		return
	}
	s.metrics.EventReceived(string(in.Event))

	if err := s.dispatch(ctx, in); err != nil {
		s.fail(ctx, in.Event, err)
	}
}

func (s *Session) dispatch(ctx context.Context, in event.Inbound) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = reject(InternalError, fmt.Errorf("%w: %v", errors.ErrHandlerPanic, r))
		}
	}()

	switch in.Event {
	case event.ChatMessage:
		return s.postMessage(ctx, in.Data)
	case event.FetchMessages:
		return s.fetchMessages(ctx, in.Data)
	default:
		return reject(UnsupportedEvent, fmt.Errorf("%w: %q", errors.ErrUnsupportedEvent, in.Event))
	}
}

func (s *Session) postMessage(ctx context.Context, data json.RawMessage) error {
	var payload event.ChatMessagePayload
	if err := decode(data, &payload); err != nil {
		return reject(InvalidPayload, err)
	}
	s.bind(payload.SenderID)

	_, err := s.service.PostMessage(ctx, domain.PostMessageCommand{
		Message:    payload.Message,
		SenderID:   payload.SenderID,
		ReceiverID: payload.ReceiverID,
	})
	if err != nil {
		return reject(SaveFailed, err)
	}
	return nil
}

func (s *Session) fetchMessages(ctx context.Context, data json.RawMessage) error {
	var payload event.FetchMessagesPayload
	if err := decode(data, &payload); err != nil {
		return reject(InvalidPayload, err)
	}
	s.bind(payload.SenderID)

	messages, err := s.service.FetchMessages(ctx, domain.FetchMessagesCommand{
		SenderID:   payload.SenderID,
		ReceiverID: payload.ReceiverID,
	})
	if err != nil {
		return reject(FetchFailed, err)
	}
	s.broadcaster.SendTo(ctx, s.conn, event.NewChatHistory(messages))
	return nil
}

func (s *Session) bind(identity string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Active {
		s.registry.Bind(s.handle, identity)
	}
}

// fail reports err to the origin connection only.
func (s *Session) fail(ctx context.Context, name event.Name, err error) {
	message := InternalError
	var r rejection
	if stderrors.As(err, &r) {
		message = r.message
	}
	s.metrics.Error(errorKind(err))
	s.log.Warn("Event rejected", "event", name, "error", err)
	s.broadcaster.SendTo(ctx, s.conn, event.NewError(message))
}

func errorKind(err error) string {
	switch {
	case stderrors.Is(err, errors.ErrValidation):
		return "validation"
	case stderrors.Is(err, errors.ErrUnsupportedEvent):
		return "unsupported_event"
	case stderrors.Is(err, errors.ErrStore):
		return "store"
	case stderrors.Is(err, errors.ErrHandlerPanic):
		return "panic"
	default:
		return "unknown"
	}
}

func decode(data json.RawMessage, payload any) error {
	if err := json.Unmarshal(data, payload); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrValidation, err)
	}
	return validatePayload(payload)
}
