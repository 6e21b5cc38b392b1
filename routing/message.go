// Package routing implements the link-state core: wire codecs for the
// router/emulator protocol, the flooding virtual router with its topology
// database and shortest-path computation, and the central forwarding
// emulator.
package routing

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// Message types on the routing wire. Every message is a sequence of
// big-endian 32-bit integers with no framing beyond the UDP boundary.
const (
	MsgInit      int32 = 1
	MsgLSA       int32 = 3
	MsgCircuitDB int32 = 4
)

// ErrBadMessage marks datagrams that do not decode. They are dropped.
var ErrBadMessage = errors.New("malformed message")

// Link is one incident link of a router.
type Link struct {
	ID   int32
	Cost int32
}

// CircuitDB is the emulator's INIT reply: the set of links incident on the
// asking router.
type CircuitDB struct {
	Links []Link
}

// LSA advertises "router RouterID has an incident link RouterLinkID of
// cost RouterLinkCost". SenderID and SenderLinkID name the hop the message
// is traveling over; the emulator forwards across SenderLinkID.
type LSA struct {
	SenderID       int32
	SenderLinkID   int32
	RouterID       int32
	RouterLinkID   int32
	RouterLinkCost int32
}

func putWord(buf []byte, off int, v int32) {
	binary.BigEndian.PutUint32(buf[off:off+4], uint32(v))
}

func word(buf []byte, off int) int32 {
	return int32(binary.BigEndian.Uint32(buf[off : off+4]))
}

// MessageType peeks at the leading type word.
func MessageType(buf []byte) (int32, error) {
	if len(buf) < 4 {
		return 0, errors.Wrap(ErrBadMessage, "short datagram")
	}
	return word(buf, 0), nil
}

// MarshalInit encodes an INIT message for the given router.
func MarshalInit(routerID int32) []byte {
	buf := make([]byte, 8)
	putWord(buf, 0, MsgInit)
	putWord(buf, 4, routerID)
	return buf
}

// ParseInit decodes an INIT message and returns the router id.
func ParseInit(buf []byte) (int32, error) {
	if len(buf) != 8 {
		return 0, errors.Wrapf(ErrBadMessage, "init of %d bytes", len(buf))
	}
	if word(buf, 0) != MsgInit {
		return 0, errors.Wrapf(ErrBadMessage, "init with type %d", word(buf, 0))
	}
	return word(buf, 4), nil
}

// MarshalCircuitDB encodes the INIT reply.
func MarshalCircuitDB(db *CircuitDB) []byte {
	buf := make([]byte, 8+8*len(db.Links))
	putWord(buf, 0, MsgCircuitDB)
	putWord(buf, 4, int32(len(db.Links)))
	for i, l := range db.Links {
		putWord(buf, 8+8*i, l.ID)
		putWord(buf, 12+8*i, l.Cost)
	}
	return buf
}

// ParseCircuitDB decodes the INIT reply.
func ParseCircuitDB(buf []byte) (*CircuitDB, error) {
	if len(buf) < 8 {
		return nil, errors.Wrapf(ErrBadMessage, "circuit db of %d bytes", len(buf))
	}
	if word(buf, 0) != MsgCircuitDB {
		return nil, errors.Wrapf(ErrBadMessage, "circuit db with type %d", word(buf, 0))
	}
	n := word(buf, 4)
	if n < 0 || len(buf) != int(8+8*n) {
		return nil, errors.Wrapf(ErrBadMessage, "circuit db of %d bytes for %d links", len(buf), n)
	}
	db := &CircuitDB{Links: make([]Link, n)}
	for i := int32(0); i < n; i++ {
		db.Links[i] = Link{
			ID:   word(buf, int(8+8*i)),
			Cost: word(buf, int(12+8*i)),
		}
	}
	return db, nil
}

// Marshal encodes the LSA into its fixed 24-byte layout.
func (l *LSA) Marshal() []byte {
	buf := make([]byte, 24)
	putWord(buf, 0, MsgLSA)
	putWord(buf, 4, l.SenderID)
	putWord(buf, 8, l.SenderLinkID)
	putWord(buf, 12, l.RouterID)
	putWord(buf, 16, l.RouterLinkID)
	putWord(buf, 20, l.RouterLinkCost)
	return buf
}

// ParseLSA decodes a 24-byte LSA datagram.
func ParseLSA(buf []byte) (*LSA, error) {
	if len(buf) != 24 {
		return nil, errors.Wrapf(ErrBadMessage, "lsa of %d bytes", len(buf))
	}
	if word(buf, 0) != MsgLSA {
		return nil, errors.Wrapf(ErrBadMessage, "lsa with type %d", word(buf, 0))
	}
	return &LSA{
		SenderID:       word(buf, 4),
		SenderLinkID:   word(buf, 8),
		RouterID:       word(buf, 12),
		RouterLinkID:   word(buf, 16),
		RouterLinkCost: word(buf, 20),
	}, nil
}
