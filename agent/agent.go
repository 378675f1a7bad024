// Package agent is the small facade the fork-tracking core is built
// against: send a message to a destination worker and get back a future of
// the reply, plus lookups for worker identity. The RPC transport itself is
// an external collaborator; this package only fixes the interface and
// provides two implementations (an in-process one for tests, a websocket
// one for real clusters).
package agent

import (
	"context"
	"sync"

	"github.com/igorsyl/rref/id"
	"github.com/igorsyl/rref/wire"
)

// WorkerInfo identifies a cluster member.
type WorkerInfo struct {
	ID      id.WorkerID
	Name    string
	Address string
}

// Dispatcher processes an inbound message from another worker and
// optionally produces a reply. *tracker.Tracker satisfies this interface;
// it is declared here, not imported, to avoid a dependency cycle between
// agent and tracker (tracker depends on Agent, not the reverse).
type Dispatcher interface {
	Dispatch(ctx context.Context, from id.WorkerID, m wire.Message) (*wire.Message, error)
}

// Agent is the contract the fork-tracking core is built against.
type Agent interface {
	Send(ctx context.Context, dst id.WorkerID, m wire.Message) (*Future, error)
	WorkerInfo(worker id.WorkerID) (WorkerInfo, error)
	SelfWorker() (WorkerInfo, error)
}

// Future resolves with the reply to a Send call, or an error. Callbacks
// registered via OnReply may run on any goroutine (the transport's receive
// path) and must therefore be safe to call concurrently with other tracker
// operations; the tracker's own methods take its mutex internally for
// exactly this reason.
type Future struct {
	mu       sync.Mutex
	done     bool
	reply    wire.Message
	err      error
	waiters  []func(wire.Message, error)
	waitChan chan struct{}
}

// NewFuture constructs an unresolved future.
func NewFuture() *Future {
	return &Future{waitChan: make(chan struct{})}
}

// Resolve completes the future exactly once; subsequent calls are no-ops.
func (f *Future) Resolve(reply wire.Message, err error) {
	f.mu.Lock()
	if f.done {
		f.mu.Unlock()
		return
	}
	f.done = true
	f.reply = reply
	f.err = err
	waiters := f.waiters
	f.waiters = nil
	f.mu.Unlock()
	close(f.waitChan)
	for _, w := range waiters {
		w(reply, err)
	}
}

// OnReply registers a callback invoked once the future resolves. If it is
// already resolved, cb runs synchronously on the calling goroutine.
func (f *Future) OnReply(cb func(wire.Message, error)) {
	f.mu.Lock()
	if f.done {
		reply, err := f.reply, f.err
		f.mu.Unlock()
		cb(reply, err)
		return
	}
	f.waiters = append(f.waiters, cb)
	f.mu.Unlock()
}

// Wait blocks until the future resolves or ctx is done.
func (f *Future) Wait(ctx context.Context) (wire.Message, error) {
	select {
	case <-f.waitChan:
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.reply, f.err
	case <-ctx.Done():
		return wire.Message{}, ctx.Err()
	}
}
