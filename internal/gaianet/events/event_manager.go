// Package events implements the outgoing/incoming event queues a
// Connection exposes to its owner, and the delivered/dropped callbacks
// that drive re-queueing of events attached to a dropped packet.
package events

// Event is the capability set that any application-defined event type
// must implement to be framed by a PacketWriter.
type Event interface {
	// Write serializes the event's payload (not including its gaia id).
	Write() []byte
	// TypeID names the event's type for manifest lookup.
	TypeID() uint16
}

// Manifest maps an event's local type id to its wire-level gaia id and
// back, and decodes a received event's payload into an instance of the
// type the gaia id names. Owned and populated outside this core.
type Manifest interface {
	GetGaiaID(typeID uint16) (uint16, bool)
	CreateFromGaiaID(gaiaID uint16, payload []byte) (Event, bool)
}

// Reader is the minimal surface ProcessEventData needs from a packet
// reader, kept as an interface here so this package does not import
// packet (which would create a cycle: packet -> events is the wrong
// direction; events consumes a reader, it doesn't produce one).
type Reader interface {
	ReadU8() (uint8, bool)
	ReadU16BE() (uint16, bool)
	ReadBytes(n int) ([]byte, bool)
	HasMore() bool
}

type outgoingEntry struct {
	packetIndex uint16
	event       Event
}

// Manager queues outgoing events awaiting a send, remembers which
// outgoing packet index each popped event was attached to (so a later
// dropped notification can requeue it), and buffers decoded incoming
// events for the owner to drain.
type Manager struct {
	outgoing []Event
	inFlight map[uint16][]outgoingEntry // packet index -> events stamped with it
	incoming []Event
}

// NewManager creates an empty event Manager.
func NewManager() *Manager {
	return &Manager{
		inFlight: make(map[uint16][]outgoingEntry),
	}
}

// Queue enqueues an event for a future outgoing packet.
func (m *Manager) Queue(e Event) {
	m.outgoing = append(m.outgoing, e)
}

// HasOutgoing reports whether any event is waiting to be sent.
func (m *Manager) HasOutgoing() bool {
	return len(m.outgoing) > 0
}

// PopOutgoing removes and returns the next queued event, stamping it with
// packetIndex so it can be requeued if that packet is later dropped. It
// returns false if the queue is empty.
func (m *Manager) PopOutgoing(packetIndex uint16) (Event, bool) {
	if len(m.outgoing) == 0 {
		return nil, false
	}
	e := m.outgoing[0]
	m.outgoing = m.outgoing[1:]

	entries := m.inFlight[packetIndex]
	m.inFlight[packetIndex] = append(entries, outgoingEntry{packetIndex: packetIndex, event: e})
	return e, true
}

// UnpopOutgoing restores an event popped for packetIndex back to the front
// of the outgoing queue, undoing the PopOutgoing bookkeeping for it. Used
// when a PacketWriter refuses the item for lack of MTU room.
func (m *Manager) UnpopOutgoing(packetIndex uint16, e Event) {
	entries := m.inFlight[packetIndex]
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].event == e {
			m.inFlight[packetIndex] = append(entries[:i], entries[i+1:]...)
			break
		}
	}
	m.outgoing = append([]Event{e}, m.outgoing...)
}

// NotifyPacketDelivered discards the bookkeeping for a delivered packet:
// its events made it to the peer and need no further action.
func (m *Manager) NotifyPacketDelivered(packetIndex uint16) {
	delete(m.inFlight, packetIndex)
}

// NotifyPacketDropped requeues every event that was attached to a dropped
// packet, in their original order, for the owner to attempt again.
func (m *Manager) NotifyPacketDropped(packetIndex uint16) {
	entries := m.inFlight[packetIndex]
	delete(m.inFlight, packetIndex)
	for _, entry := range entries {
		m.outgoing = append(m.outgoing, entry.event)
	}
}

// GetIncoming dequeues the next decoded incoming event, if any.
func (m *Manager) GetIncoming() (Event, bool) {
	if len(m.incoming) == 0 {
		return nil, false
	}
	e := m.incoming[0]
	m.incoming = m.incoming[1:]
	return e, true
}

// ProcessEventData reads one Event manager section (count-prefixed list of
// gaia_id/length/payload items) from reader and pushes decoded events to
// the incoming queue. A section whose gaia id the manifest does not
// recognise, or whose length byte overruns the remaining bytes, is a
// malformed-datagram condition: it returns an error and does not touch the
// incoming queue for items not yet consumed.
func (m *Manager) ProcessEventData(r Reader, manifest Manifest) error {
	count, ok := r.ReadU8()
	if !ok {
		return errMalformed("event section: missing count byte")
	}

	for i := uint8(0); i < count; i++ {
		gaiaID, ok := r.ReadU16BE()
		if !ok {
			return errMalformed("event section: truncated gaia id")
		}
		length, ok := r.ReadU8()
		if !ok {
			return errMalformed("event section: truncated length byte")
		}
		payload, ok := r.ReadBytes(int(length))
		if !ok {
			return errMalformed("event section: truncated payload")
		}

		event, ok := manifest.CreateFromGaiaID(gaiaID, payload)
		if !ok {
			return errMalformed("event section: unknown gaia id")
		}
		m.incoming = append(m.incoming, event)
	}
	return nil
}

type malformedError string

func (e malformedError) Error() string { return string(e) }

func errMalformed(msg string) error { return malformedError(msg) }
