// Package wire defines the on-the-wire messages exchanged between worker
// agents by the fork-tracking protocol, and their big-endian codec.
package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/igorsyl/rref/id"
)

// MessageKind enumerates the wire messages of the fork-tracking protocol.
type MessageKind uint8

const (
	UserAccept MessageKind = iota + 1
	ForkNotify
	ForkAccept
	UserDelete
	Exception
)

func (k MessageKind) String() string {
	switch k {
	case UserAccept:
		return "USER_ACCEPT"
	case ForkNotify:
		return "FORK_NOTIFY"
	case ForkAccept:
		return "FORK_ACCEPT"
	case UserDelete:
		return "USER_DELETE"
	case Exception:
		return "EXCEPTION"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(k))
	}
}

// Message is the design-level schema of spec section 6. Not every field is
// populated for every Kind: ForkDest is ForkNotify-only, Err is
// Exception-only.
type Message struct {
	Kind     MessageKind
	RRefID   id.ID
	ForkID   id.ID
	ForkDest id.WorkerID
	Err      string
}

func NewUserAccept(rrefID, forkID id.ID) Message {
	return Message{Kind: UserAccept, RRefID: rrefID, ForkID: forkID}
}

func NewForkNotify(rrefID, forkID id.ID, dst id.WorkerID) Message {
	return Message{Kind: ForkNotify, RRefID: rrefID, ForkID: forkID, ForkDest: dst}
}

func NewForkAccept(forkID id.ID) Message {
	return Message{Kind: ForkAccept, ForkID: forkID}
}

func NewUserDelete(rrefID, forkID id.ID) Message {
	return Message{Kind: UserDelete, RRefID: rrefID, ForkID: forkID}
}

func NewException(err string) Message {
	return Message{Kind: Exception, Err: err}
}

// Encode serializes m as a fixed big-endian layout: kind (1 byte), rref id
// (10 bytes: worker u16 + local u64), fork id (10 bytes), fork dest worker
// (2 bytes), then the error string verbatim (Exception only).
func Encode(m Message) []byte {
	buf := make([]byte, 1+10+10+2, 1+10+10+2+len(m.Err))
	buf[0] = byte(m.Kind)
	putID(buf[1:11], m.RRefID)
	putID(buf[11:21], m.ForkID)
	binary.BigEndian.PutUint16(buf[21:23], uint16(m.ForkDest))
	if m.Kind == Exception {
		buf = append(buf, []byte(m.Err)...)
	}
	return buf
}

// Decode parses the layout produced by Encode.
func Decode(b []byte) (Message, error) {
	const headerLen = 1 + 10 + 10 + 2
	if len(b) < headerLen {
		return Message{}, fmt.Errorf("wire: short message: %d bytes", len(b))
	}
	m := Message{
		Kind:     MessageKind(b[0]),
		RRefID:   getID(b[1:11]),
		ForkID:   getID(b[11:21]),
		ForkDest: id.WorkerID(binary.BigEndian.Uint16(b[21:23])),
	}
	if m.Kind == Exception {
		m.Err = string(b[headerLen:])
	}
	return m, nil
}

func putID(b []byte, v id.ID) {
	binary.BigEndian.PutUint16(b[0:2], uint16(v.Worker))
	binary.BigEndian.PutUint64(b[2:10], uint64(v.Local))
}

func getID(b []byte) id.ID {
	return id.ID{
		Worker: id.WorkerID(binary.BigEndian.Uint16(b[0:2])),
		Local:  id.LocalID(binary.BigEndian.Uint64(b[2:10])),
	}
}

// ForkDescriptor is the serializable result of Ref.Fork(): it mints a new
// fork id but does not mutate tracker state.
type ForkDescriptor struct {
	RRefID id.ID
	ForkID id.ID
	Parent id.WorkerID
}
