// Package refs implements the Owner/User reference objects tracked by the
// fork-tracking core. A single tagged struct covers both variants; no
// inheritance or interface dispatch is needed.
package refs

import (
	"sync/atomic"

	"github.com/igorsyl/rref/id"
	"github.com/igorsyl/rref/wire"
)

// Kind distinguishes the two reference variants.
type Kind int

const (
	KindOwner Kind = iota
	KindUser
)

func (k Kind) String() string {
	if k == KindOwner {
		return "owner"
	}
	return "user"
}

// Ref is either an Owner or a User reference. Owner references hold the
// value (or a future of it, via the value slot); User references carry the
// owning worker id. The value slot is payload-agnostic: any concrete
// payload type lives behind the any.
type Ref struct {
	kind   Kind
	rrefID id.ID
	forkID id.ID
	owner  id.WorkerID
	value  atomic.Pointer[any]
}

// NewOwner constructs an Owner reference. Its fork id is implicitly equal
// to its rref id.
func NewOwner(self id.WorkerID, rrefID id.ID, value any) *Ref {
	r := &Ref{kind: KindOwner, rrefID: rrefID, forkID: rrefID, owner: self}
	if value != nil {
		r.value.Store(&value)
	}
	return r
}

// NewUser constructs a User reference identifying a distinct fork on a
// remote owner.
func NewUser(owner id.WorkerID, rrefID, forkID id.ID) *Ref {
	return &Ref{kind: KindUser, rrefID: rrefID, forkID: forkID, owner: owner}
}

func (r *Ref) IsOwner() bool {
	return r.kind == KindOwner
}

func (r *Ref) Kind() Kind {
	return r.kind
}

func (r *Ref) OwnerWorker() id.WorkerID {
	return r.owner
}

func (r *Ref) RRefID() id.ID {
	return r.rrefID
}

func (r *Ref) ForkID() id.ID {
	return r.forkID
}

// Value returns the payload held by an Owner reference, or nil for a User
// reference or an Owner whose value was never set (still resolving).
func (r *Ref) Value() any {
	p := r.value.Load()
	if p == nil {
		return nil
	}
	return *p
}

// SetValue resolves the Owner's value, e.g. once a pending future
// completes.
func (r *Ref) SetValue(v any) {
	r.value.Store(&v)
}

// Fork mints a new fork id and returns a serializable descriptor for
// transmission. It does not mutate any tracker state; the caller is
// responsible for driving the fork-tracking core with the result.
func (r *Ref) Fork(alloc *id.Allocator) wire.ForkDescriptor {
	return wire.ForkDescriptor{
		RRefID: r.rrefID,
		ForkID: alloc.Next(),
		Parent: r.owner,
	}
}
