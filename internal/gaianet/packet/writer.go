// Package packet implements the MTU-bounded writer and reader for a Data
// packet's body: an Event manager section followed by an Entity manager
// section, each present only when it holds at least one item.
package packet

import (
	"encoding/binary"
	"fmt"

	"github.com/aetherflow/gaianet/internal/gaianet/entity"
	"github.com/aetherflow/gaianet/internal/gaianet/events"
	"github.com/aetherflow/gaianet/internal/gaianet/wire"
)

// ManagerType discriminates an Event section from an Entity section.
type ManagerType uint8

const (
	ManagerEvent  ManagerType = 0x01
	ManagerEntity ManagerType = 0x02
)

// MTUTotal is the safe IPv4 UDP payload size this protocol budgets for.
const MTUTotal = 508

// MTUBody is the per-datagram byte budget left for the body once the
// StandardHeader is accounted for.
const MTUBody = MTUTotal - wire.HeaderSize

// maxSectionCount is the largest value a section's one-byte count field
// can hold.
const maxSectionCount = 255

// maxItemBytes is the largest payload a single event or entity item may
// encode; the writer refuses to add an item whose own encoded payload
// exceeds this, independent of MTU pressure.
const maxItemBytes = 255

// Writer accumulates the event and entity manager sections of one
// outgoing Data packet body. The zero value is an empty, usable Writer;
// NewWriter returns one.
type Writer struct {
	eventBytes  []byte
	eventCount  int
	entityBytes []byte
	entityCount int
}

// NewWriter creates an empty Writer.
func NewWriter() *Writer {
	return &Writer{}
}

// HasBytes reports whether any item has been accepted so far.
func (w *Writer) HasBytes() bool {
	return w.eventCount != 0 || w.entityCount != 0
}

// bytesNumber is the combined size, in bytes, of both working buffers
// (section headers not yet counted, since they are only paid for once).
func (w *Writer) bytesNumber() int {
	return len(w.eventBytes) + len(w.entityBytes)
}

// GetBytes consumes the writer's state and returns the concatenated body:
// events section (if any) then entity section (if any). The writer is
// reset to empty as a side effect.
func (w *Writer) GetBytes() []byte {
	out := make([]byte, 0, w.bytesNumber()+4)

	if w.eventCount != 0 {
		out = append(out, byte(ManagerEvent), byte(w.eventCount))
		out = append(out, w.eventBytes...)
	}
	if w.entityCount != 0 {
		out = append(out, byte(ManagerEntity), byte(w.entityCount))
		out = append(out, w.entityBytes...)
	}

	w.eventBytes = nil
	w.eventCount = 0
	w.entityBytes = nil
	w.entityCount = 0

	return out
}

// WriteEvent attempts to add one event to the event section. It returns
// false, leaving the writer's state unchanged, if the item's payload
// exceeds 255 bytes, if the section's count would overflow 255, or if
// adding it would reach MTUBody.
func (w *Writer) WriteEvent(manifest events.Manifest, event events.Event) (bool, error) {
	payload := event.Write()
	if len(payload) > maxItemBytes {
		return false, fmt.Errorf("packet: event payload of %d bytes exceeds %d-byte limit", len(payload), maxItemBytes)
	}

	gaiaID, ok := manifest.GetGaiaID(event.TypeID())
	if !ok {
		return false, fmt.Errorf("packet: no gaia id registered for event type %d", event.TypeID())
	}

	item := make([]byte, 0, 3+len(payload))
	item = binary.BigEndian.AppendUint16(item, gaiaID)
	item = append(item, byte(len(payload)))
	item = append(item, payload...)

	if w.eventCount >= maxSectionCount {
		return false, nil
	}
	if !w.fits(len(item), w.eventCount == 0) {
		return false, nil
	}

	w.eventBytes = append(w.eventBytes, item...)
	w.eventCount++
	return true, nil
}

// WriteEntityMessage attempts to add one entity message to the entity
// section, under the same MTU and count discipline as WriteEvent.
func (w *Writer) WriteEntityMessage(manifest entity.Manifest, msg entity.ServerEntityMessage) (bool, error) {
	item, err := encodeEntityMessage(manifest, msg)
	if err != nil {
		return false, err
	}

	if w.entityCount >= maxSectionCount {
		return false, nil
	}
	if !w.fits(len(item), w.entityCount == 0) {
		return false, nil
	}

	w.entityBytes = append(w.entityBytes, item...)
	w.entityCount++
	return true, nil
}

// fits reports whether addedBytes more bytes can be accommodated in the
// body, charging 2 extra bytes if this would be the first item of a
// not-yet-opened section. The comparison is strictly less-than MTUBody,
// matching the wire-packing rule every peer build must agree on.
func (w *Writer) fits(addedBytes int, opensNewSection bool) bool {
	hypothetical := w.bytesNumber() + addedBytes
	if opensNewSection {
		hypothetical += 2
	}
	return hypothetical < MTUBody
}

func encodeEntityMessage(manifest entity.Manifest, msg entity.ServerEntityMessage) ([]byte, error) {
	switch msg.Type {
	case entity.MessageCreate:
		payload := msg.Entity.Write()
		if len(payload) > maxItemBytes {
			return nil, fmt.Errorf("packet: entity create payload of %d bytes exceeds %d-byte limit", len(payload), maxItemBytes)
		}
		gaiaID, ok := manifest.GetGaiaID(msg.Entity.TypeID())
		if !ok {
			return nil, fmt.Errorf("packet: no gaia id registered for entity type %d", msg.Entity.TypeID())
		}
		item := make([]byte, 0, 6+len(payload))
		item = append(item, byte(entity.MessageCreate))
		item = binary.BigEndian.AppendUint16(item, gaiaID)
		item = binary.BigEndian.AppendUint16(item, msg.LocalKey)
		item = append(item, byte(len(payload)))
		item = append(item, payload...)
		return item, nil

	case entity.MessageDelete:
		item := make([]byte, 0, 3)
		item = append(item, byte(entity.MessageDelete))
		item = binary.BigEndian.AppendUint16(item, msg.LocalKey)
		return item, nil

	case entity.MessageUpdate:
		payload := msg.Entity.WritePartial(msg.StateMask)
		if len(payload) > maxItemBytes {
			return nil, fmt.Errorf("packet: entity update payload of %d bytes exceeds %d-byte limit", len(payload), maxItemBytes)
		}
		maskBytes := msg.StateMask.Write()
		item := make([]byte, 0, 4+len(maskBytes)+len(payload))
		item = append(item, byte(entity.MessageUpdate))
		item = binary.BigEndian.AppendUint16(item, msg.LocalKey)
		item = append(item, maskBytes...)
		item = append(item, byte(len(payload)))
		item = append(item, payload...)
		return item, nil

	default:
		return nil, fmt.Errorf("packet: unknown entity message type %d", msg.Type)
	}
}
