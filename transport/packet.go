// Package transport implements a Go-Back-N reliable byte stream over a
// lossy datagram relay: a fixed packet codec, a windowed sender with a
// single retransmission timer, and an in-order receiver.
package transport

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// Packet kinds. The values are part of the wire format.
const (
	TypeAck  int32 = 0
	TypeData int32 = 1
	TypeEOT  int32 = 2
)

const (
	// SeqModulo bounds the sequence number space.
	SeqModulo = 32

	// MaxDataLength is the largest payload a DATA packet may carry.
	MaxDataLength = 500

	headerLength = 12
)

// ErrMalformed marks datagrams that do not parse as a packet. Event loops
// drop such datagrams silently.
var ErrMalformed = errors.New("malformed packet")

// Packet is one datagram of the transport wire format: three big-endian
// 32-bit header words (type, sequence number, data length) followed by the
// payload. The sequence number is signed so the receiver can emit the -1
// sentinel ACK before anything arrived in order.
type Packet struct {
	Type int32
	Seq  int32
	Data []byte
}

// NewData builds a DATA packet. The payload must fit in one packet.
func NewData(seq int32, data []byte) (*Packet, error) {
	if len(data) > MaxDataLength {
		return nil, errors.Errorf("payload of %d bytes exceeds %d", len(data), MaxDataLength)
	}
	return &Packet{Type: TypeData, Seq: seq, Data: data}, nil
}

// NewAck builds an ACK packet. ACKs carry no payload.
func NewAck(seq int32) *Packet {
	return &Packet{Type: TypeAck, Seq: seq}
}

// NewEOT builds an end-of-transmission packet.
func NewEOT(seq int32) *Packet {
	return &Packet{Type: TypeEOT, Seq: seq}
}

// Marshal serializes the packet into a fresh buffer.
func (p *Packet) Marshal() []byte {
	buf := make([]byte, headerLength+len(p.Data))
	binary.BigEndian.PutUint32(buf[0:4], uint32(p.Type))
	binary.BigEndian.PutUint32(buf[4:8], uint32(p.Seq))
	binary.BigEndian.PutUint32(buf[8:12], uint32(len(p.Data)))
	copy(buf[headerLength:], p.Data)
	return buf
}

// ParsePacket decodes one datagram. It returns ErrMalformed when the header
// is short, the type is unknown, or the advertised length does not match
// the remaining bytes.
func ParsePacket(buf []byte) (*Packet, error) {
	if len(buf) < headerLength {
		return nil, errors.Wrapf(ErrMalformed, "short header: %d bytes", len(buf))
	}
	typ := int32(binary.BigEndian.Uint32(buf[0:4]))
	seq := int32(binary.BigEndian.Uint32(buf[4:8]))
	length := int32(binary.BigEndian.Uint32(buf[8:12]))
	if typ != TypeAck && typ != TypeData && typ != TypeEOT {
		return nil, errors.Wrapf(ErrMalformed, "unknown type %d", typ)
	}
	if int(length) != len(buf)-headerLength {
		return nil, errors.Wrapf(ErrMalformed, "length %d does not match %d remaining bytes", length, len(buf)-headerLength)
	}
	p := &Packet{Type: typ, Seq: seq}
	if length > 0 {
		p.Data = make([]byte, length)
		copy(p.Data, buf[headerLength:])
	}
	return p, nil
}
