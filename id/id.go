// Package id allocates and represents the (worker, local) identifier pairs
// used as both RRef ids and fork ids.
package id

import (
	"fmt"
	"sync/atomic"
)

// WorkerID identifies a node in the cluster.
type WorkerID uint16

func (w WorkerID) String() string {
	return fmt.Sprintf("%d", uint16(w))
}

// LocalID is a per-worker monotonically increasing counter value.
type LocalID uint64

// ID is structurally identical for both RRef ids and fork ids, per the
// distributed reference protocol. It is comparable and usable directly as
// a map key.
type ID struct {
	Worker WorkerID
	Local  LocalID
}

func (id ID) String() string {
	return fmt.Sprintf("%d:%d", id.Worker, id.Local)
}

// IsZero reports whether id is the zero value, used to distinguish an
// absent optional id (e.g. a not-yet-assigned fork id) from a real one.
func (id ID) IsZero() bool {
	return id.Worker == 0 && id.Local == 0
}

// Allocator mints identifiers for a single worker. Local ids increase
// monotonically and are never reused; wraparound of the 64-bit counter is
// out of scope.
type Allocator struct {
	self    WorkerID
	counter atomic.Uint64
}

// NewAllocator constructs an allocator minting ids for the given worker.
func NewAllocator(self WorkerID) *Allocator {
	return &Allocator{self: self}
}

// Self returns the worker id this allocator mints ids for.
func (a *Allocator) Self() WorkerID {
	return a.self
}

// Next mints a fresh, globally unique id.
func (a *Allocator) Next() ID {
	local := a.counter.Add(1)
	return ID{Worker: a.self, Local: LocalID(local)}
}
