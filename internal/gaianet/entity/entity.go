// Package entity defines the collaborator interfaces a Connection consults
// for entity (replicated-object) reconciliation, without specifying the
// entity manager's own reconciliation logic — that lives outside this core.
package entity

// MessageType is the wire-level discriminator for a ServerEntityMessage.
type MessageType uint8

const (
	MessageCreate MessageType = iota
	MessageDelete
	MessageUpdate
)

// Entity is the capability set an application-defined replicated object
// must implement beyond the base Event-like write(buf)/type_id().
type Entity interface {
	Write() []byte
	TypeID() uint16
	WritePartial(stateMask StateMask) []byte
}

// StateMask is a self-delimiting bitmask naming which fields of an entity
// changed in an Update message. Its wire encoding is owned by the
// application; this core only forwards it opaquely between Write and the
// packet body.
type StateMask interface {
	Write() []byte
}

// ServerEntityMessage is a create/update/delete notification for one
// replicated entity, addressed by its LocalKey.
type ServerEntityMessage struct {
	Type      MessageType
	LocalKey  uint16
	GaiaID    uint16      // not read by packet.Writer: a Create's gaia id comes from the manifest
	StateMask StateMask   // only meaningful for MessageUpdate
	Entity    Entity      // payload source for Create and Update
}

// Manifest maps an entity's local type id to its wire-level gaia id.
// Owned and populated outside this core.
type Manifest interface {
	GetGaiaID(typeID uint16) (uint16, bool)
}

// Notifiable receives the same delivered/dropped callbacks the EventManager
// does, so an external entity manager can reconcile its own retransmission
// or cleanup state. Threaded through AckManager.ProcessIncoming as a
// nullable parameter, never stored.
type Notifiable interface {
	NotifyPacketDelivered(seq uint16)
	NotifyPacketDropped(seq uint16)
}
