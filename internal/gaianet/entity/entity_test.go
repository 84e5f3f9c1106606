package entity

type fakeEntity struct{ id uint16 }

func (fakeEntity) Write() []byte                     { return nil }
func (e fakeEntity) TypeID() uint16                  { return e.id }
func (fakeEntity) WritePartial(StateMask) []byte     { return nil }

type fakeMask struct{}

func (fakeMask) Write() []byte { return nil }

type fakeManifest struct{}

func (fakeManifest) GetGaiaID(typeID uint16) (uint16, bool) { return typeID, true }

type fakeNotifiable struct{ delivered, dropped []uint16 }

func (n *fakeNotifiable) NotifyPacketDelivered(seq uint16) { n.delivered = append(n.delivered, seq) }
func (n *fakeNotifiable) NotifyPacketDropped(seq uint16)   { n.dropped = append(n.dropped, seq) }

var (
	_ Entity     = fakeEntity{}
	_ StateMask  = fakeMask{}
	_ Manifest   = fakeManifest{}
	_ Notifiable = (*fakeNotifiable)(nil)
)
