// Package pin implements the argument pinning registry: a per-calling
// context scratch list plus a per-message pending table that keeps
// references alive from the moment they are used as RPC arguments until
// the callee acknowledges.
package pin

import (
	"sync"

	"github.com/google/uuid"

	"github.com/igorsyl/rref/refs"
)

// Scratch accumulates strong refs during the preparation of a single RPC
// call. It is owned by the caller-context preparing the call and must be
// threaded explicitly through that path; it is not a goroutine-local, since
// Go has no such primitive and a goroutine can always suspend across a
// channel operation mid-preparation.
type Scratch struct {
	refs []*refs.Ref
}

// NewScratch starts a fresh scratch list for one RPC call's preparation.
func NewScratch() *Scratch {
	return &Scratch{}
}

// Push pins r for the duration of the enclosing RPC.
func (s *Scratch) Push(r *refs.Ref) {
	s.refs = append(s.refs, r)
}

// Registry is the per-message pending table, pending_rref_args in the
// design. One Registry is shared by a tracker instance.
type Registry struct {
	mu      sync.Mutex
	pending map[uuid.UUID][]*refs.Ref
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{pending: map[uuid.UUID][]*refs.Ref{}}
}

// Move transfers s's scratch list atomically into the registry keyed by
// msgID, then clears s. Called once the enclosing RPC has been assigned a
// message id and is about to be dispatched.
func (p *Registry) Move(msgID uuid.UUID, s *Scratch) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending[msgID] = s.refs
	s.refs = nil
}

// Release drops the pinned refs for msgID, called once the callee has
// acked processing of that message.
func (p *Registry) Release(msgID uuid.UUID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.pending, msgID)
}

// Pinned returns the refs currently pinned for msgID, for tests and
// diagnostics.
func (p *Registry) Pinned(msgID uuid.UUID) []*refs.Ref {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*refs.Ref(nil), p.pending[msgID]...)
}

// Len reports how many messages currently have pinned arguments.
func (p *Registry) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}
