// Package runtime holds the in-memory relay state: who is connected and who receives what.
// It contains no transport or storage code.
package runtime

import (
	"chat-relay/contract"
	"iter"
	"sync"

	"github.com/google/uuid"
)

var _ contract.IRegistry = (*Registry)(nil)

type entry struct {
	conn     contract.Connection
	identity string
}

type Set map[contract.Handle]struct{}

type Registry struct {
	mu         sync.RWMutex
	sessions   map[contract.Handle]entry // map handle -> connection
	identities map[string]Set            // map identity to handles
}

func NewRegistry() *Registry {
	return &Registry{
		sessions:   make(map[contract.Handle]entry),
		identities: make(map[string]Set),
	}
}

// Register records a live connection and returns the handle used to remove it later.
// No identity is associated until Bind is called.
func (r *Registry) Register(conn contract.Connection) contract.Handle {
	h := contract.Handle(uuid.NewString())

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[h] = entry{conn: conn}
	return h
}

// Unregister removes a connection and its identity binding.
// Unknown or already removed handles are ignored; the result reports whether anything was removed.
func (r *Registry) Unregister(h contract.Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[h]
	if !ok {
		return false
	}
	delete(r.sessions, h)
	r.unbind(h, e.identity)
	return true
}

// Bind sets the identity a connection currently acts as, replacing any previous one.
// Several connections may share an identity (multiple devices or tabs).
func (r *Registry) Bind(h contract.Handle, identity string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[h]
	if !ok || e.identity == identity {
		return
	}
	r.unbind(h, e.identity)
	e.identity = identity
	r.sessions[h] = e
	if identity == "" {
		return
	}
	if _, ok := r.identities[identity]; !ok {
		r.identities[identity] = make(Set)
	}
	r.identities[identity][h] = struct{}{}
}

// All returns the connections registered at call time.
// The snapshot is copied under the read lock, so iterating never observes later changes.
func (r *Registry) All() iter.Seq2[contract.Handle, contract.Connection] {
	r.mu.RLock()
	snapshot := make(map[contract.Handle]contract.Connection, len(r.sessions))
	for h, e := range r.sessions {
		snapshot[h] = e.conn
	}
	r.mu.RUnlock()
	return seq(snapshot)
}

// For returns a snapshot of the connections bound to any of the given identities.
func (r *Registry) For(identities ...string) iter.Seq2[contract.Handle, contract.Connection] {
	r.mu.RLock()
	snapshot := make(map[contract.Handle]contract.Connection)
	for _, identity := range identities {
		for h := range r.identities[identity] {
			snapshot[h] = r.sessions[h].conn
		}
	}
	r.mu.RUnlock()
	return seq(snapshot)
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// unbind must be called with the write lock held.
// It ensures no empty sets are left in the identity map to prevent memory leaks over time.
func (r *Registry) unbind(h contract.Handle, identity string) {
	if identity == "" {
		return
	}
	if handles, ok := r.identities[identity]; ok {
		delete(handles, h)
		if len(handles) == 0 {
			delete(r.identities, identity)
		}
	}
}

func seq(snapshot map[contract.Handle]contract.Connection) iter.Seq2[contract.Handle, contract.Connection] {
	return func(yield func(contract.Handle, contract.Connection) bool) {
		for h, conn := range snapshot {
			if !yield(h, conn) {
				return
			}
		}
	}
}
