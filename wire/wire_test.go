package wire

import (
	"testing"

	"github.com/igorsyl/rref/id"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []Message{
		NewUserAccept(id.ID{Worker: 1, Local: 2}, id.ID{Worker: 3, Local: 4}),
		NewForkNotify(id.ID{Worker: 1, Local: 2}, id.ID{Worker: 3, Local: 4}, 9),
		NewForkAccept(id.ID{Worker: 3, Local: 4}),
		NewUserDelete(id.ID{Worker: 1, Local: 2}, id.ID{Worker: 3, Local: 4}),
		NewException("remote failure: boom"),
	}
	for _, want := range cases {
		got, err := Decode(Encode(want))
		if err != nil {
			t.Fatalf("decode error: %v", err)
		}
		if got != want {
			t.Fatalf("round trip mismatch: got %+v, want %+v", got, want)
		}
	}
}

func TestDecodeShortMessage(t *testing.T) {
	if _, err := Decode([]byte{1, 2, 3}); err == nil {
		t.Fatalf("expected error decoding short message")
	}
}

func TestMessageKindString(t *testing.T) {
	if UserAccept.String() != "USER_ACCEPT" {
		t.Fatalf("unexpected string: %s", UserAccept.String())
	}
}
