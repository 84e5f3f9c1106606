// Package wire implements the fixed-width StandardHeader that prefixes
// every datagram exchanged by a Connection.
package wire

import (
	"encoding/binary"
	"fmt"
)

// PacketType is the wire-level variant of a datagram's body.
type PacketType uint8

const (
	// PacketHandshake carries opaque connection-establishment data
	// interpreted by a layer above this core.
	PacketHandshake PacketType = iota
	// PacketData carries zero-or-one Event section followed by
	// zero-or-one Entity section; at least one must be present.
	PacketData
	// PacketHeartbeat carries an empty body.
	PacketHeartbeat
)

func (t PacketType) String() string {
	switch t {
	case PacketHandshake:
		return "Handshake"
	case PacketData:
		return "Data"
	case PacketHeartbeat:
		return "Heartbeat"
	default:
		return "Unknown"
	}
}

// HeaderSize is the StandardHeader's fixed wire size in bytes.
const HeaderSize = 9

// StandardHeader is the fixed-width packet prefix: packet_type (1 byte),
// sequence (u16 BE), ack_seq (u16 BE), ack_field (u32 BE).
type StandardHeader struct {
	PacketType PacketType
	Sequence   uint16
	AckSeq     uint16
	AckField   uint32
}

// BytesNumber is the compile-time-constant header size, used to compute
// the MTU body budget.
func BytesNumber() int { return HeaderSize }

// Marshal serializes the header to its 9-byte wire form.
func (h StandardHeader) Marshal() []byte {
	buf := make([]byte, HeaderSize)
	buf[0] = byte(h.PacketType)
	binary.BigEndian.PutUint16(buf[1:3], h.Sequence)
	binary.BigEndian.PutUint16(buf[3:5], h.AckSeq)
	binary.BigEndian.PutUint32(buf[5:9], h.AckField)
	return buf
}

// Unmarshal reads a StandardHeader from the front of data, returning the
// header and the remaining (stripped) payload. It reports an error rather
// than panicking on a truncated prefix, so callers can treat it as a
// malformed-datagram condition and drop the packet.
func Unmarshal(data []byte) (StandardHeader, []byte, error) {
	if len(data) < HeaderSize {
		return StandardHeader{}, nil, fmt.Errorf("wire: truncated header: need %d bytes, got %d", HeaderSize, len(data))
	}

	h := StandardHeader{
		PacketType: PacketType(data[0]),
		Sequence:   binary.BigEndian.Uint16(data[1:3]),
		AckSeq:     binary.BigEndian.Uint16(data[3:5]),
		AckField:   binary.BigEndian.Uint32(data[5:9]),
	}
	return h, data[HeaderSize:], nil
}
