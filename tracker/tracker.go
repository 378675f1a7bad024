// Package tracker implements the node-local fork-tracking core: the state
// machine that maintains the owner table, the set of live forks per owned
// reference, and the pending-user tables that compensate for non-FIFO
// message delivery between workers.
package tracker

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/igorsyl/rref/agent"
	"github.com/igorsyl/rref/collections"
	"github.com/igorsyl/rref/controller"
	"github.com/igorsyl/rref/errors"
	"github.com/igorsyl/rref/id"
	"github.com/igorsyl/rref/log"
	"github.com/igorsyl/rref/pin"
	"github.com/igorsyl/rref/refs"
	"github.com/igorsyl/rref/txn"
	"github.com/igorsyl/rref/wire"
)

// Tracker is the per-node fork-tracking state machine. All table access is
// guarded by mu; the local id counter is lock-free. Callbacks registered on
// agent.Future values re-enter the tracker's public methods, which take mu
// themselves, so the tracker never holds mu while calling agent.Send.
type Tracker struct {
	self  id.WorkerID
	agent agent.Agent
	alloc *id.Allocator
	pins  *pin.Registry

	mu                   sync.Mutex
	owners               map[id.ID]*refs.Ref
	forks                map[id.ID]collections.Set[id.ID]
	pendingUsers         map[id.ID]*refs.Ref
	pendingForkRequests  map[id.ID]*refs.Ref
	pendingAcceptedUsers collections.Set[id.ID]

	inflight singleflight.Group
	metrics  *metrics
}

// New constructs a Tracker for worker self, communicating through a. Most
// callers should use Init/Instance instead; New is exposed for tests that
// want an isolated tracker per simulated worker.
func New(self id.WorkerID, a agent.Agent) *Tracker {
	return &Tracker{
		self:                 self,
		agent:                a,
		alloc:                id.NewAllocator(self),
		pins:                 pin.NewRegistry(),
		owners:               map[id.ID]*refs.Ref{},
		forks:                map[id.ID]collections.Set[id.ID]{},
		pendingUsers:         map[id.ID]*refs.Ref{},
		pendingForkRequests:  map[id.ID]*refs.Ref{},
		pendingAcceptedUsers: collections.New[id.ID](),
		metrics:              newMetrics(self),
	}
}

// Self returns the worker id this tracker instance belongs to.
func (t *Tracker) Self() id.WorkerID {
	return t.self
}

// Allocator exposes the tracker's identifier allocator, e.g. for minting a
// fresh rref id when an application creates a brand-new owned object.
func (t *Tracker) Allocator() *id.Allocator {
	return t.alloc
}

// recordInvariantViolation counts err against the invariant-violation
// metric, labeled by its Status reason, and returns err unchanged so call
// sites can wrap their return value in place.
func (t *Tracker) recordInvariantViolation(err error) error {
	reason := "unknown"
	if status, ok := err.(*errors.Status); ok {
		reason = string(status.Reason)
	}
	t.metrics.incInvariantViolation(reason)
	return err
}

// CreateUser constructs a User reference for an object owned elsewhere.
// Fails if owner is this worker (a local owner has no User of itself).
func (t *Tracker) CreateUser(ctx context.Context, owner id.WorkerID, rrefID, forkID id.ID) (*refs.Ref, error) {
	if owner == t.self {
		return nil, t.recordInvariantViolation(errors.NewBadRequest(fmt.Sprintf("cannot create a user reference for an owner (%s) on its own worker", owner)))
	}
	u := refs.NewUser(owner, rrefID, forkID)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pendingAcceptedUsers.Contains(forkID) {
		// USER_ACCEPT for this fork arrived before the local User existed.
		t.pendingAcceptedUsers.Delete(forkID)
	} else {
		if _, exists := t.pendingUsers[forkID]; exists {
			return nil, t.recordInvariantViolation(errors.NewAlreadyExists("pendingUser", forkID.String()))
		}
		t.pendingUsers[forkID] = u
	}
	t.metrics.setPendingUsers(len(t.pendingUsers))
	return u, nil
}

// CreateUserNew mints a fresh rref id and fork id and constructs a User for
// them, per spec's create_user(owner) shorthand.
func (t *Tracker) CreateUserNew(ctx context.Context, owner id.WorkerID) (*refs.Ref, error) {
	return t.CreateUser(ctx, owner, t.alloc.Next(), t.alloc.Next())
}

// GetOrCreateOwner returns the existing Owner for rrefID, or constructs and
// inserts one holding value. Concurrent misses for the same rrefID are
// collapsed via singleflight so value is only ever considered once.
func (t *Tracker) GetOrCreateOwner(rrefID id.ID, value any) *refs.Ref {
	t.mu.Lock()
	if r, ok := t.owners[rrefID]; ok {
		t.mu.Unlock()
		return r
	}
	t.mu.Unlock()

	v, _, _ := t.inflight.Do(rrefID.String(), func() (any, error) {
		t.mu.Lock()
		defer t.mu.Unlock()
		if r, ok := t.owners[rrefID]; ok {
			return r, nil
		}
		r := refs.NewOwner(t.self, rrefID, value)
		t.owners[rrefID] = r
		t.metrics.setOwners(len(t.owners))
		return r, nil
	})
	return v.(*refs.Ref)
}

// GetOrCreateRRef dispatches to GetOrCreateOwner or CreateUser depending on
// whether owner is this worker.
func (t *Tracker) GetOrCreateRRef(ctx context.Context, owner id.WorkerID, rrefID, forkID id.ID) (*refs.Ref, error) {
	if owner == t.self {
		return t.GetOrCreateOwner(rrefID, nil), nil
	}
	return t.CreateUser(ctx, owner, rrefID, forkID)
}

// ForkTo produces a ForkDescriptor for transmitting r to dst, driving
// whatever cross-node bookkeeping the fork requires. scratch, if non-nil,
// receives r so it is pinned for the duration of the enclosing RPC.
func (t *Tracker) ForkTo(ctx context.Context, r *refs.Ref, dst id.WorkerID, scratch *pin.Scratch) (wire.ForkDescriptor, error) {
	var desc wire.ForkDescriptor

	switch {
	case dst == r.OwnerWorker():
		// The callee will resolve directly to its local owner; nothing to track.
		desc = wire.ForkDescriptor{RRefID: r.RRefID(), ForkID: r.ForkID(), Parent: r.OwnerWorker()}

	case r.IsOwner():
		desc2, err := t.forkFromOwner(ctx, r, dst)
		if err != nil {
			return wire.ForkDescriptor{}, err
		}
		desc = desc2

	default:
		desc2, err := t.forkFromUser(ctx, r, dst)
		if err != nil {
			return wire.ForkDescriptor{}, err
		}
		desc = desc2
	}

	if scratch != nil {
		scratch.Push(r)
	}
	return desc, nil
}

// sendWithRetry sends msg to dst, retrying failed sends with
// controller.DefaultRetry (up to 5 attempts about one second apart) before
// giving up.
func (t *Tracker) sendWithRetry(ctx context.Context, dst id.WorkerID, msg wire.Message) (*agent.Future, error) {
	var future *agent.Future
	err := controller.RetryOnError(ctx, controller.DefaultRetry, controller.AlwaysRetry, func(ctx context.Context) error {
		f, err := t.agent.Send(ctx, dst, msg)
		if err != nil {
			return err
		}
		future = f
		return nil
	})
	if err == nil {
		t.metrics.incSent(msg.Kind)
	}
	return future, err
}

// forkFromOwner implements spec 4.3 fork_to case 2: owner forking directly
// to a third party. Registering the creation-in-flight fork and sending
// USER_ACCEPT are modeled as a two-step transaction: if the send fails, the
// registration is rolled back rather than left stranded.
func (t *Tracker) forkFromOwner(ctx context.Context, r *refs.Ref, dst id.WorkerID) (wire.ForkDescriptor, error) {
	log := log.FromContext(ctx)
	desc := r.Fork(t.alloc)
	newForkID := desc.ForkID
	var msg wire.Message

	err := txn.Execute(
		txn.CallbackTransaction{
			CommitFunc: func() error {
				msg = t.AcceptUserRRef(r.RRefID(), newForkID)
				return nil
			},
			RevertFunc: func() error {
				return t.DelForkOfOwner(r.RRefID(), newForkID)
			},
		},
		txn.CallbackTransaction{
			CommitFunc: func() error {
				future, sendErr := t.sendWithRetry(ctx, dst, msg)
				if sendErr != nil {
					return sendErr
				}
				future.OnReply(func(_ wire.Message, err error) {
					if err != nil {
						log.Error(err, "USER_ACCEPT delivery failed", "rref", r.RRefID(), "fork", newForkID, "dst", dst)
						return
					}
					if err := t.DelForkOfOwner(r.RRefID(), newForkID); err != nil {
						log.Error(err, "failed to release creation-in-flight fork", "rref", r.RRefID(), "fork", newForkID)
					}
				})
				return nil
			},
		},
	)
	if err != nil {
		return wire.ForkDescriptor{}, err
	}
	return desc, nil
}

// forkFromUser implements spec 4.3 fork_to case 3: user forking to another
// user, mediated by the owner. Registering the pending fork request and
// sending FORK_NOTIFY are modeled as a two-step transaction, same shape as
// forkFromOwner.
func (t *Tracker) forkFromUser(ctx context.Context, r *refs.Ref, dst id.WorkerID) (wire.ForkDescriptor, error) {
	log := log.FromContext(ctx)
	desc := r.Fork(t.alloc)
	newForkID := desc.ForkID

	err := txn.Execute(
		txn.CallbackTransaction{
			CommitFunc: func() error {
				t.mu.Lock()
				t.pendingForkRequests[newForkID] = r
				t.metrics.setPendingForkRequests(len(t.pendingForkRequests))
				t.mu.Unlock()
				return nil
			},
			RevertFunc: func() error {
				t.mu.Lock()
				delete(t.pendingForkRequests, newForkID)
				t.metrics.setPendingForkRequests(len(t.pendingForkRequests))
				t.mu.Unlock()
				return nil
			},
		},
		txn.CallbackTransaction{
			CommitFunc: func() error {
				msg := wire.NewForkNotify(r.RRefID(), newForkID, dst)
				future, sendErr := t.sendWithRetry(ctx, r.OwnerWorker(), msg)
				if sendErr != nil {
					return sendErr
				}
				future.OnReply(func(_ wire.Message, err error) {
					if err != nil {
						log.Error(err, "FORK_NOTIFY delivery failed", "rref", r.RRefID(), "fork", newForkID, "owner", r.OwnerWorker())
						return
					}
					if err := t.FinishForkRequest(newForkID); err != nil {
						log.Error(err, "failed to finish fork request", "fork", newForkID)
					}
				})
				return nil
			},
		},
	)
	if err != nil {
		return wire.ForkDescriptor{}, err
	}
	return desc, nil
}

// AcceptUserRRef is invoked on the owner when it learns of a new user: it
// registers the fork and returns the USER_ACCEPT message addressed to the
// new user. A failure here is an invariant violation (duplicate fork
// registration driven by a protocol bug, not a recoverable condition), so
// it is fatal per spec section 7 rather than returned to the caller.
func (t *Tracker) AcceptUserRRef(rrefID, forkID id.ID) wire.Message {
	if err := t.AddForkOfOwner(rrefID, forkID); err != nil {
		panic(fmt.Sprintf("tracker: accept_user_rref invariant violation: %v", err))
	}
	return wire.NewUserAccept(rrefID, forkID)
}

// AcceptForkRequest is invoked on the owner when a FORK_NOTIFY arrives. It
// registers the fork, sends USER_ACCEPT to dst, and returns the FORK_ACCEPT
// message addressed back to the forking user.
//
// The fork registered here is permanent, confirmed by the worked example in
// spec section 8 (S3): forks[rref_id] grows by the new fork id and stays
// grown after FORK_ACCEPT, unlike the creation-in-flight bookkeeping of
// forkFromOwner/AcceptUserRRef's own caller, which is released on ack.
func (t *Tracker) AcceptForkRequest(ctx context.Context, rrefID, forkID id.ID, dst id.WorkerID) (wire.Message, error) {
	msg := t.AcceptUserRRef(rrefID, forkID)

	future, err := t.sendWithRetry(ctx, dst, msg)
	if err != nil {
		return wire.Message{}, err
	}
	log := log.FromContext(ctx)
	future.OnReply(func(_ wire.Message, err error) {
		if err != nil {
			log.Error(err, "USER_ACCEPT delivery failed", "rref", rrefID, "fork", forkID, "dst", dst)
		}
	})
	return wire.NewForkAccept(forkID), nil
}

// FinishForkRequest removes forkID from pendingForkRequests once the
// owner's FORK_ACCEPT has reached the forking user.
func (t *Tracker) FinishForkRequest(forkID id.ID) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.pendingForkRequests[forkID]; !ok {
		return t.recordInvariantViolation(errors.NewNotFound("pendingForkRequest", forkID.String()))
	}
	delete(t.pendingForkRequests, forkID)
	t.metrics.setPendingForkRequests(len(t.pendingForkRequests))
	return nil
}

// FinishUserRRef records that USER_ACCEPT has reached this node. If the
// local User already exists in pendingUsers, it is dropped (the normal
// case). Otherwise the fork is recorded in pendingAcceptedUsers so that the
// subsequent CreateUser call skips re-inserting it. Fails on double-accept.
func (t *Tracker) FinishUserRRef(rrefID, forkID id.ID) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.pendingUsers[forkID]; ok {
		delete(t.pendingUsers, forkID)
		t.metrics.setPendingUsers(len(t.pendingUsers))
		return nil
	}
	if t.pendingAcceptedUsers.Contains(forkID) {
		return t.recordInvariantViolation(errors.NewConflict("pendingAcceptedUser", forkID.String(), fmt.Errorf("duplicate USER_ACCEPT")))
	}
	t.pendingAcceptedUsers.Insert(forkID)
	t.metrics.setPendingAcceptedUsers(t.pendingAcceptedUsers.Len())
	return nil
}

// AddForkOfOwner inserts forkID into forks[rrefID]; fails if already present.
func (t *Tracker) AddForkOfOwner(rrefID, forkID id.ID) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	set, ok := t.forks[rrefID]
	if !ok {
		set = collections.New[id.ID]()
		t.forks[rrefID] = set
	}
	if set.Contains(forkID) {
		return t.recordInvariantViolation(errors.NewAlreadyExists("fork", forkID.String()))
	}
	set.Insert(forkID)
	t.metrics.setForks(t.forksCountLocked())
	return nil
}

// DelForkOfOwner removes forkID from forks[rrefID]. When the set becomes
// empty, both the forks entry and the owners entry are dropped in the same
// critical section — the terminal event that releases the owned object.
func (t *Tracker) DelForkOfOwner(rrefID, forkID id.ID) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	set, ok := t.forks[rrefID]
	if !ok || !set.Contains(forkID) {
		return t.recordInvariantViolation(errors.NewNotFound("fork", forkID.String()))
	}
	set.Delete(forkID)
	if set.Len() == 0 {
		delete(t.forks, rrefID)
		delete(t.owners, rrefID)
		t.metrics.setOwners(len(t.owners))
	}
	t.metrics.setForks(t.forksCountLocked())
	return nil
}

// forksCountLocked sums the sizes of all per-owner fork sets. Caller must
// hold mu.
func (t *Tracker) forksCountLocked() int {
	n := 0
	for _, set := range t.forks {
		n += set.Len()
	}
	return n
}

// HandleUserDelete processes USER_DELETE, closing the protocol gap spec
// section 9 leaves open: a user's local strong-ref count reached zero and
// it has no outstanding pending registrations, so the owner releases its
// bookkeeping for that fork.
func (t *Tracker) HandleUserDelete(ctx context.Context, rrefID, forkID id.ID) error {
	return t.DelForkOfOwner(rrefID, forkID)
}

// AddRRefArgs transfers scratch's pinned refs into the pending-args table
// keyed by msgID, per spec section 4.4's move_rref_args.
func (t *Tracker) AddRRefArgs(msgID uuid.UUID, scratch *pin.Scratch) {
	t.pins.Move(msgID, scratch)
}

// DelRRefArgs releases the refs pinned for msgID, per spec section 4.4's
// release_rref_args, invoked once the callee has acked that message.
func (t *Tracker) DelRRefArgs(msgID uuid.UUID) {
	t.pins.Release(msgID)
}

// Dispatch is the inbound entry point invoked by an agent implementation's
// receive path for every wire message addressed to this tracker.
func (t *Tracker) Dispatch(ctx context.Context, from id.WorkerID, m wire.Message) (*wire.Message, error) {
	t.metrics.incReceived(m.Kind)
	switch m.Kind {
	case wire.UserAccept:
		if err := t.FinishUserRRef(m.RRefID, m.ForkID); err != nil {
			return nil, err
		}
		return nil, nil

	case wire.ForkNotify:
		reply, err := t.AcceptForkRequest(ctx, m.RRefID, m.ForkID, m.ForkDest)
		if err != nil {
			return nil, err
		}
		return &reply, nil

	case wire.ForkAccept:
		if err := t.FinishForkRequest(m.ForkID); err != nil {
			return nil, err
		}
		return nil, nil

	case wire.UserDelete:
		if err := t.HandleUserDelete(ctx, m.RRefID, m.ForkID); err != nil {
			return nil, err
		}
		return nil, nil

	case wire.Exception:
		return nil, errors.NewInternalError(fmt.Errorf("remote exception: %s", m.Err))

	default:
		return nil, errors.NewBadRequest(fmt.Sprintf("unknown message kind %v", m.Kind))
	}
}

// Owners returns the number of owned references currently tracked, for
// diagnostics and tests.
func (t *Tracker) Owners() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.owners)
}

// ForksOf returns the live fork ids for rrefID, for diagnostics and tests.
func (t *Tracker) ForksOf(rrefID id.ID) []id.ID {
	t.mu.Lock()
	defer t.mu.Unlock()
	set, ok := t.forks[rrefID]
	if !ok {
		return nil
	}
	return set.UnsortedList()
}

// PendingUsers returns the fork ids currently awaiting USER_ACCEPT, for
// diagnostics and tests.
func (t *Tracker) PendingUsers() []id.ID {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]id.ID, 0, len(t.pendingUsers))
	for k := range t.pendingUsers {
		out = append(out, k)
	}
	return out
}

// PendingAcceptedUsers returns the fork ids whose USER_ACCEPT arrived
// before the local User existed, for diagnostics and tests.
func (t *Tracker) PendingAcceptedUsers() []id.ID {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pendingAcceptedUsers.UnsortedList()
}

// PendingForkRequests returns the fork ids currently pinned awaiting
// FORK_ACCEPT, for diagnostics and tests.
func (t *Tracker) PendingForkRequests() []id.ID {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]id.ID, 0, len(t.pendingForkRequests))
	for k := range t.pendingForkRequests {
		out = append(out, k)
	}
	return out
}
