//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"context"
	"iter"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// Connection is a live client transport as seen by the relay.
// Send must honour ctx and fail with errors.ErrConnectionClosed once Close was called.
type Connection interface {
	ID() string
	Send(ctx context.Context, evt event.Outbound) error
	Ping(ctx context.Context) error
	Close() error
}

// Handle is the opaque registration token returned by IRegistry.Register.
type Handle string

type IRegistry interface {
	Register(conn Connection) Handle
	Unregister(h Handle) bool
	Bind(h Handle, identity string)
	All() iter.Seq2[Handle, Connection]
	For(identities ...string) iter.Seq2[Handle, Connection]
	Len() int
}

type IBroadcaster interface {
	Route(ctx context.Context, msg domain.ChatMessage) int
	BroadcastAll(ctx context.Context, evt event.Outbound) int
	SendTo(ctx context.Context, conn Connection, evt event.Outbound) bool
}
