package pin

import (
	"testing"

	"github.com/google/uuid"

	"github.com/igorsyl/rref/id"
	"github.com/igorsyl/rref/refs"
)

func TestMoveThenRelease(t *testing.T) {
	reg := NewRegistry()
	scratch := NewScratch()
	r := refs.NewOwner(0, id.ID{Worker: 0, Local: 1}, nil)
	scratch.Push(r)

	msgID := uuid.New()
	reg.Move(msgID, scratch)

	if len(scratch.refs) != 0 {
		t.Fatalf("expected scratch to be cleared after move")
	}
	if got := reg.Pinned(msgID); len(got) != 1 || got[0] != r {
		t.Fatalf("expected pinned ref to be reachable, got %v", got)
	}
	if reg.Len() != 1 {
		t.Fatalf("expected one pending message, got %d", reg.Len())
	}

	reg.Release(msgID)
	if got := reg.Pinned(msgID); len(got) != 0 {
		t.Fatalf("expected no pinned refs after release, got %v", got)
	}
	if reg.Len() != 0 {
		t.Fatalf("expected zero pending messages after release, got %d", reg.Len())
	}
}
