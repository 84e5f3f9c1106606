// Package ackmgr implements the sequence-number-based acknowledgement
// scheme: it owns the local/remote sequence numbers, the table of
// in-flight sent packets, and the redundant 32-packet ack bitfield, and
// emits delivered/dropped notifications as acks arrive.
package ackmgr

import (
	"fmt"

	"github.com/aetherflow/gaianet/internal/gaianet/entity"
	"github.com/aetherflow/gaianet/internal/gaianet/events"
	"github.com/aetherflow/gaianet/internal/gaianet/seqbuf"
	"github.com/aetherflow/gaianet/internal/gaianet/wire"
)

// RedundantPacketAcksSize is the width of the ack bitfield: bit i
// acknowledges remote_ack_seq - (i+1).
const RedundantPacketAcksSize = 32

// DefaultSentPacketsSize sizes the initial sent-packet table.
const DefaultSentPacketsSize = 256

// receivedPacketsCapacity covers exactly the bitfield window plus the head.
const receivedPacketsCapacity = RedundantPacketAcksSize + 1

// SentPacket records the type of an outgoing packet still awaiting
// acknowledgement or a negative ack via the bitfield.
type SentPacket struct {
	ID         uint16
	PacketType wire.PacketType
}

// Manager owns ack bookkeeping for one Connection's outgoing and incoming
// sequence streams. It is not safe for concurrent use.
type Manager struct {
	sequenceNumber       uint16
	remoteAckSequenceNum uint16
	sentPackets          map[uint16]SentPacket
	receivedPackets      *seqbuf.Buffer[struct{}]
}

// New creates a Manager with local sequence 0 and a remote-ack sequence of
// 0xFFFF, so that any first incoming ack_seq of 0 satisfies the
// wrap-around "greater than" test.
func New() *Manager {
	return &Manager{
		remoteAckSequenceNum: 0xFFFF,
		sentPackets:          make(map[uint16]SentPacket, DefaultSentPacketsSize),
		receivedPackets:      seqbuf.New[struct{}](receivedPacketsCapacity),
	}
}

// LocalSequenceNum returns the sequence number the next outgoing packet
// will use.
func (m *Manager) LocalSequenceNum() uint16 {
	return m.sequenceNumber
}

// remoteSequenceNum is the most recently received remote sequence number.
func (m *Manager) remoteSequenceNum() uint16 {
	return m.receivedPackets.SequenceNum() - 1
}

// ackBitfield sets bit i-1 iff remote_sequence_num - i has been received,
// for i in 1..=32.
func (m *Manager) ackBitfield() uint32 {
	mostRecent := m.remoteSequenceNum()
	var field uint32
	for i := uint16(1); i <= RedundantPacketAcksSize; i++ {
		seq := mostRecent - i
		if m.receivedPackets.Exists(seq) {
			field |= 1 << (i - 1)
		}
	}
	return field
}

// ProcessOutgoing builds a StandardHeader for packetType carrying the
// current ack state, records a SentPacket entry at the sequence it
// stamps, advances the local sequence number, and returns the framed
// bytes (header || payload) along with the sequence number used.
func (m *Manager) ProcessOutgoing(packetType wire.PacketType, payload []byte) (framed []byte, seq uint16) {
	seq = m.sequenceNumber

	header := wire.StandardHeader{
		PacketType: packetType,
		Sequence:   seq,
		AckSeq:     m.remoteSequenceNum(),
		AckField:   m.ackBitfield(),
	}

	m.sentPackets[seq] = SentPacket{ID: seq, PacketType: packetType}
	m.sequenceNumber++

	framed = make([]byte, 0, wire.HeaderSize+len(payload))
	framed = append(framed, header.Marshal()...)
	framed = append(framed, payload...)
	return framed, seq
}

// ProcessIncoming reads a StandardHeader from the front of payload, folds
// its sequence into the received-packet window, advances
// remoteAckSequenceNum, and walks the ack bitfield emitting at-most-once
// delivered/dropped notifications to eventManager and, if supplied,
// entityNotifiable. It returns the payload with the header stripped.
//
// entityNotifiable may be nil: the caller may or may not have one to
// offer for a given call, and it is only read for the duration of this
// call, never retained.
func (m *Manager) ProcessIncoming(payload []byte, eventManager *events.Manager, entityNotifiable entity.Notifiable) ([]byte, error) {
	header, stripped, err := wire.Unmarshal(payload)
	if err != nil {
		return nil, fmt.Errorf("ackmgr: %w", err)
	}

	remoteSeq := header.Sequence
	remoteAckSeq := header.AckSeq
	field := header.AckField

	m.receivedPackets.Insert(remoteSeq, struct{}{})

	if seqbuf.GreaterThan(remoteAckSeq, m.remoteAckSequenceNum) {
		m.remoteAckSequenceNum = remoteAckSeq
	}

	if sent, ok := m.sentPackets[remoteAckSeq]; ok {
		if sent.PacketType == wire.PacketData {
			m.notifyDelivered(remoteAckSeq, eventManager, entityNotifiable)
		}
		delete(m.sentPackets, remoteAckSeq)
	}

	for i := uint16(1); i <= RedundantPacketAcksSize; i++ {
		s := remoteAckSeq - i
		sent, ok := m.sentPackets[s]
		if !ok {
			continue
		}

		bitSet := (field>>(i-1))&1 == 1
		if bitSet {
			if sent.PacketType == wire.PacketData {
				m.notifyDelivered(s, eventManager, entityNotifiable)
			}
		} else {
			if sent.PacketType == wire.PacketData {
				m.notifyDropped(s, eventManager, entityNotifiable)
			}
		}
		delete(m.sentPackets, s)
	}

	return stripped, nil
}

func (m *Manager) notifyDelivered(seq uint16, eventManager *events.Manager, entityNotifiable entity.Notifiable) {
	eventManager.NotifyPacketDelivered(seq)
	if entityNotifiable != nil {
		entityNotifiable.NotifyPacketDelivered(seq)
	}
}

func (m *Manager) notifyDropped(seq uint16, eventManager *events.Manager, entityNotifiable entity.Notifiable) {
	eventManager.NotifyPacketDropped(seq)
	if entityNotifiable != nil {
		entityNotifiable.NotifyPacketDropped(seq)
	}
}
