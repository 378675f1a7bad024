package discovery

import (
	"testing"

	"github.com/igorsyl/rref/agent"
	"github.com/igorsyl/rref/id"
)

func TestKeyFormatting(t *testing.T) {
	d := &Directory{prefix: defaultPrefix}
	if got, want := d.key(id.WorkerID(7)), defaultPrefix+"7"; got != want {
		t.Fatalf("key() = %q, want %q", got, want)
	}
}

func TestSelfBeforeRegisterFails(t *testing.T) {
	d := &Directory{prefix: defaultPrefix}
	if _, err := d.Self(); err == nil {
		t.Fatalf("expected Self() to fail before Register")
	}
}

func TestSelfAfterAssignment(t *testing.T) {
	want := agent.WorkerInfo{ID: 3, Name: "w3", Address: "10.0.0.3:7000"}
	d := &Directory{prefix: defaultPrefix, self: want}
	got, err := d.Self()
	if err != nil {
		t.Fatalf("Self(): %v", err)
	}
	if got != want {
		t.Fatalf("Self() = %+v, want %+v", got, want)
	}
}
