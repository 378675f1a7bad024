package tracker

import (
	"context"
	"testing"
	"time"

	"github.com/igorsyl/rref/agent"
	"github.com/igorsyl/rref/id"
)

// cluster wires N in-process workers together, each with its own Tracker
// and InProcessAgent, satisfying the Dispatcher/Agent interfaces on both
// sides without a package import cycle.
type cluster struct {
	agents   map[id.WorkerID]*agent.InProcessAgent
	trackers map[id.WorkerID]*Tracker
}

func newCluster(t *testing.T, workers ...id.WorkerID) *cluster {
	t.Helper()
	c := &cluster{
		agents:   map[id.WorkerID]*agent.InProcessAgent{},
		trackers: map[id.WorkerID]*Tracker{},
	}
	for _, w := range workers {
		a := agent.NewInProcessAgent(w)
		c.agents[w] = a
		c.trackers[w] = New(w, a)
	}
	for _, w := range workers {
		for _, peer := range workers {
			c.agents[w].RegisterWorker(agent.WorkerInfo{ID: peer, Name: peer.String()}, c.trackers[peer])
		}
	}
	return c
}

func (c *cluster) tracker(w id.WorkerID) *Tracker {
	return c.trackers[w]
}

func TestS1CreateThenAccept(t *testing.T) {
	ctx := context.Background()
	c := newCluster(t, 0, 1)

	owner, user := c.tracker(0), c.tracker(1)
	rrefID := owner.Allocator().Next()
	ownerRef := owner.GetOrCreateOwner(rrefID, "value")

	forkID := user.Allocator().Next()
	if _, err := user.CreateUser(ctx, 0, rrefID, forkID); err != nil {
		t.Fatalf("create_user: %v", err)
	}
	if pending := user.PendingUsers(); len(pending) != 1 || pending[0] != forkID {
		t.Fatalf("expected pending_users to hold %v, got %v", forkID, pending)
	}

	msg := owner.AcceptUserRRef(rrefID, forkID)
	if _, err := user.Dispatch(ctx, 0, msg); err != nil {
		t.Fatalf("dispatch USER_ACCEPT: %v", err)
	}

	if pending := user.PendingUsers(); len(pending) != 0 {
		t.Fatalf("expected pending_users empty after accept, got %v", pending)
	}
	if accepted := user.PendingAcceptedUsers(); len(accepted) != 0 {
		t.Fatalf("expected pending_accepted_users empty, got %v", accepted)
	}
	if forks := owner.ForksOf(rrefID); len(forks) != 1 || forks[0] != forkID {
		t.Fatalf("expected forks[%v] = {%v}, got %v", rrefID, forkID, forks)
	}
	_ = ownerRef
}

func TestS2AcceptBeforeCreate(t *testing.T) {
	ctx := context.Background()
	c := newCluster(t, 0, 1)
	owner, user := c.tracker(0), c.tracker(1)

	rrefID := owner.Allocator().Next()
	owner.GetOrCreateOwner(rrefID, "value")
	forkID := id.ID{Worker: 1, Local: 99}

	// USER_ACCEPT reaches worker 1 before the introductory RPC constructs
	// the local User.
	if err := user.FinishUserRRef(rrefID, forkID); err != nil {
		t.Fatalf("finish_user_rref: %v", err)
	}
	if accepted := user.PendingAcceptedUsers(); len(accepted) != 1 || accepted[0] != forkID {
		t.Fatalf("expected pending_accepted_users to hold %v, got %v", forkID, accepted)
	}

	if _, err := user.CreateUser(ctx, 0, rrefID, forkID); err != nil {
		t.Fatalf("create_user: %v", err)
	}
	if accepted := user.PendingAcceptedUsers(); len(accepted) != 0 {
		t.Fatalf("expected pending_accepted_users empty after create, got %v", accepted)
	}
	if pending := user.PendingUsers(); len(pending) != 0 {
		t.Fatalf("expected pending_users never populated, got %v", pending)
	}
}

func TestS3UserToUserFork(t *testing.T) {
	ctx := context.Background()
	c := newCluster(t, 0, 1, 2)
	owner, user1, user2 := c.tracker(0), c.tracker(1), c.tracker(2)

	rrefID := owner.Allocator().Next()
	owner.GetOrCreateOwner(rrefID, "value")
	forkID1 := id.ID{Worker: 1, Local: 2}
	ref1, err := user1.CreateUser(ctx, 0, rrefID, forkID1)
	if err != nil {
		t.Fatalf("create_user: %v", err)
	}

	desc, err := user1.ForkTo(ctx, ref1, 2, nil)
	if err != nil {
		t.Fatalf("fork_to: %v", err)
	}
	if desc.RRefID != rrefID {
		t.Fatalf("unexpected rref id in descriptor: %v", desc.RRefID)
	}

	if err := waitUntil(func() bool { return len(user1.PendingForkRequests()) == 0 }); err != nil {
		t.Fatalf("pending_fork_requests never drained: %v", err)
	}
	if forks := owner.ForksOf(rrefID); len(forks) != 1 || forks[0] != desc.ForkID {
		t.Fatalf("expected forks[%v] to grow by %v, got %v", rrefID, desc.ForkID, forks)
	}
	_ = user2
}

func TestS4OwnerToThirdFork(t *testing.T) {
	ctx := context.Background()
	c := newCluster(t, 0, 2)
	owner, third := c.tracker(0), c.tracker(2)

	rrefID := owner.Allocator().Next()
	ownerRef := owner.GetOrCreateOwner(rrefID, "value")

	desc, err := owner.ForkTo(ctx, ownerRef, 2, nil)
	if err != nil {
		t.Fatalf("fork_to: %v", err)
	}
	if err := waitUntil(func() bool { return len(owner.ForksOf(rrefID)) == 0 }); err != nil {
		t.Fatalf("expected creation-in-flight fork to be released on ack: %v", err)
	}
	_ = third
	_ = desc
}

func TestS5LastForkTeardown(t *testing.T) {
	ctx := context.Background()
	c := newCluster(t, 0, 1)
	owner, user := c.tracker(0), c.tracker(1)

	rrefID := owner.Allocator().Next()
	owner.GetOrCreateOwner(rrefID, "value")
	forkID := id.ID{Worker: 1, Local: 5}
	if _, err := user.CreateUser(ctx, 0, rrefID, forkID); err != nil {
		t.Fatalf("create_user: %v", err)
	}
	if err := owner.AddForkOfOwner(rrefID, forkID); err != nil {
		t.Fatalf("add_fork_of_owner: %v", err)
	}

	if err := owner.HandleUserDelete(ctx, rrefID, forkID); err != nil {
		t.Fatalf("handle_user_delete: %v", err)
	}
	if owner.Owners() != 0 {
		t.Fatalf("expected owners to be empty after last fork teardown")
	}
	if forks := owner.ForksOf(rrefID); forks != nil {
		t.Fatalf("expected forks entry to be dropped, got %v", forks)
	}
}

func TestS6DuplicateAcceptRejected(t *testing.T) {
	c := newCluster(t, 0, 1)
	user := c.tracker(1)
	rrefID := id.ID{Worker: 0, Local: 1}
	forkID := id.ID{Worker: 1, Local: 2}

	if err := user.FinishUserRRef(rrefID, forkID); err != nil {
		t.Fatalf("first finish_user_rref: %v", err)
	}
	if err := user.FinishUserRRef(rrefID, forkID); err == nil {
		t.Fatalf("expected second finish_user_rref to fail")
	}
}

func TestCreateUserFailsForSelfOwner(t *testing.T) {
	c := newCluster(t, 0)
	owner := c.tracker(0)
	if _, err := owner.CreateUser(context.Background(), 0, id.ID{Worker: 0, Local: 1}, id.ID{Worker: 0, Local: 2}); err == nil {
		t.Fatalf("expected create_user to fail when owner is self")
	}
}

func TestGetOrCreateOwnerIdempotent(t *testing.T) {
	c := newCluster(t, 0)
	owner := c.tracker(0)
	rrefID := id.ID{Worker: 0, Local: 1}
	r1 := owner.GetOrCreateOwner(rrefID, "a")
	r2 := owner.GetOrCreateOwner(rrefID, "b")
	if r1 != r2 {
		t.Fatalf("expected the same Owner instance across calls")
	}
	if owner.Owners() != 1 {
		t.Fatalf("expected exactly one owners entry, got %d", owner.Owners())
	}
}

func TestSingletonLifecycle(t *testing.T) {
	defer resetForTest()
	if _, err := Instance(); err == nil {
		t.Fatalf("expected Instance to fail before Init")
	}
	a := agent.NewInProcessAgent(0)
	if err := Init(context.Background(), 0, a); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := Init(context.Background(), 0, a); err == nil {
		t.Fatalf("expected second Init to fail")
	}
	if _, err := Instance(); err != nil {
		t.Fatalf("instance: %v", err)
	}
}

func waitUntil(cond func() bool) error {
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return nil
		}
		time.Sleep(time.Millisecond)
	}
	if cond() {
		return nil
	}
	return context.DeadlineExceeded
}
