package refs

import (
	"testing"

	"github.com/igorsyl/rref/id"
)

func TestOwnerForkIDEqualsRRefID(t *testing.T) {
	o := NewOwner(0, id.ID{Worker: 0, Local: 1}, "payload")
	if !o.IsOwner() {
		t.Fatalf("expected owner")
	}
	if o.ForkID() != o.RRefID() {
		t.Fatalf("owner fork id should equal rref id")
	}
	if o.Value() != "payload" {
		t.Fatalf("unexpected value: %v", o.Value())
	}
}

func TestUserDistinctForkID(t *testing.T) {
	rrefID := id.ID{Worker: 0, Local: 1}
	forkID := id.ID{Worker: 1, Local: 2}
	u := NewUser(0, rrefID, forkID)
	if u.IsOwner() {
		t.Fatalf("expected user")
	}
	if u.OwnerWorker() != 0 {
		t.Fatalf("expected owner worker 0, got %d", u.OwnerWorker())
	}
	if u.ForkID() == u.RRefID() {
		t.Fatalf("user fork id should differ from rref id")
	}
}

func TestForkMintsNewID(t *testing.T) {
	alloc := id.NewAllocator(0)
	o := NewOwner(0, alloc.Next(), nil)
	desc := o.Fork(alloc)
	if desc.RRefID != o.RRefID() {
		t.Fatalf("descriptor rref id mismatch")
	}
	if desc.ForkID == o.RRefID() {
		t.Fatalf("expected a freshly minted fork id")
	}
}
