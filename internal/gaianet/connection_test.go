package gaianet

import (
	"testing"
	"time"

	"github.com/aetherflow/gaianet/internal/gaianet/entity"
	"github.com/aetherflow/gaianet/internal/gaianet/events"
	"github.com/aetherflow/gaianet/internal/gaianet/packet"
	"github.com/aetherflow/gaianet/internal/gaianet/wire"
)

// stubEntityManager records every call ReceiveStep forwards to it, standing
// in for an application's real entity reconciliation logic.
type stubEntityManager struct {
	calls int
}

func (m *stubEntityManager) ProcessData(r *packet.Reader, manifest entity.Manifest) error {
	m.calls++
	for r.HasMore() {
		if _, ok := r.ReadU8(); !ok {
			break
		}
	}
	return nil
}

type stubEvent struct {
	typeID  uint16
	payload []byte
}

func (e stubEvent) Write() []byte  { return e.payload }
func (e stubEvent) TypeID() uint16 { return e.typeID }

type identityManifest struct{}

func (identityManifest) GetGaiaID(typeID uint16) (uint16, bool) { return typeID, true }
func (identityManifest) CreateFromGaiaID(gaiaID uint16, payload []byte) (events.Event, bool) {
	return stubEvent{typeID: gaiaID, payload: payload}, true
}

func testConfig() *Config {
	c := DefaultConfig()
	c.HeartbeatInterval = time.Hour
	c.DisconnectionTimeoutDuration = time.Hour
	return c
}

func TestConfigValidateRejectsOutOfRangeValues(t *testing.T) {
	c := DefaultConfig()
	c.RedundantPacketAcksSize = 33
	if err := c.Validate(); err == nil {
		t.Error("expected error for RedundantPacketAcksSize > 32")
	}

	c = DefaultConfig()
	c.RTTSmoothingFactor = 1.5
	if err := c.Validate(); err == nil {
		t.Error("expected error for RTTSmoothingFactor > 1")
	}

	c = DefaultConfig()
	c.RTTSmoothingFactor = 0
	if err := c.Validate(); err == nil {
		t.Error("expected error for RTTSmoothingFactor == 0")
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	c := DefaultConfig()
	c.RedundantPacketAcksSize = 0
	if _, err := New(c, nil); err == nil {
		t.Error("expected New() to reject an invalid config")
	}
}

func TestSingleRoundTripDeliversOnceAndSamplesRTT(t *testing.T) {
	a, err := New(testConfig(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	b, err := New(testConfig(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	a.QueueEvent(stubEvent{typeID: 1, payload: []byte("X")})
	framedA := a.SendStep(identityManifest{})
	if framedA == nil {
		t.Fatal("expected A to send a Data packet")
	}

	if err := b.ReceiveStep(framedA, identityManifest{}); err != nil {
		t.Fatalf("B ReceiveStep: %v", err)
	}
	incoming, ok := b.GetIncomingEvent()
	if !ok {
		t.Fatal("expected B to have received an event")
	}
	if string(incoming.Write()) != "X" {
		t.Errorf("incoming payload = %q, want %q", incoming.Write(), "X")
	}

	time.Sleep(2 * time.Millisecond)

	// B has nothing of its own queued; use the primitive directly to send
	// a bare ack-carrying packet rather than waiting on the heartbeat
	// policy SendStep would otherwise gate on.
	framedB := b.ProcessOutgoingHeader(wire.PacketHeartbeat, nil)
	b.MarkSent()

	if err := a.ReceiveStep(framedB, identityManifest{}); err != nil {
		t.Fatalf("A ReceiveStep: %v", err)
	}
	if a.GetRTT() <= 0 {
		t.Error("expected A's RTT estimate to be positive after the round trip")
	}

	// A duplicate copy of B's packet must not emit a second delivered
	// notification or requeue anything.
	if err := a.ReceiveStep(framedB, identityManifest{}); err != nil {
		t.Fatalf("A ReceiveStep (duplicate): %v", err)
	}
}

func TestDroppedPacketRequeuesItsEvent(t *testing.T) {
	a, _ := New(testConfig(), nil)

	a.QueueEvent(stubEvent{typeID: 1, payload: []byte("E")})
	nextIndex := a.GetNextPacketIndex()
	framed := a.SendStep(identityManifest{})
	if framed == nil {
		t.Fatal("expected a Data packet carrying event E")
	}

	// A single incoming packet whose ack_seq sits just past nextIndex,
	// with that bit of the ack field clear, resolves nextIndex within its
	// 32-wide window on this very call and declares it dropped.
	h := wire.StandardHeader{
		PacketType: wire.PacketHeartbeat,
		Sequence:   1000,
		AckSeq:     nextIndex + 1,
		AckField:   0,
	}
	if err := a.ReceiveStep(h.Marshal(), identityManifest{}); err != nil {
		t.Fatalf("ReceiveStep: %v", err)
	}

	e, ok := a.PopOutgoingEvent(a.GetNextPacketIndex())
	if !ok {
		t.Fatal("expected event E to have been requeued after its packet was dropped")
	}
	if string(e.Write()) != "E" {
		t.Errorf("requeued event payload = %q, want %q", e.Write(), "E")
	}
}

func TestReceiveStepRejectsNonEmptyHeartbeatBody(t *testing.T) {
	a, _ := New(testConfig(), nil)

	h := wire.StandardHeader{PacketType: wire.PacketHeartbeat, Sequence: 0, AckSeq: 0xFFFF, AckField: 0}
	framed := append(h.Marshal(), []byte("unexpected")...)

	if err := a.ReceiveStep(framed, identityManifest{}); err == nil {
		t.Error("expected a non-empty heartbeat body to be rejected as malformed")
	}
}

func TestReceiveStepRejectsTruncatedHeader(t *testing.T) {
	a, _ := New(testConfig(), nil)
	if err := a.ReceiveStep([]byte{1, 2, 3}, identityManifest{}); err == nil {
		t.Error("expected truncated header to be rejected")
	}
}

func TestSendStepEmitsHeartbeatWhenIdle(t *testing.T) {
	c := DefaultConfig()
	c.HeartbeatInterval = 1 * time.Millisecond
	c.DisconnectionTimeoutDuration = time.Hour
	a, _ := New(c, nil)

	time.Sleep(2 * time.Millisecond)
	framed := a.SendStep(identityManifest{})
	if framed == nil {
		t.Fatal("expected a heartbeat once the interval elapsed with nothing queued")
	}
	header, body, err := wire.Unmarshal(framed)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if header.PacketType != wire.PacketHeartbeat {
		t.Errorf("packet type = %v, want Heartbeat", header.PacketType)
	}
	if len(body) != 0 {
		t.Errorf("heartbeat body len = %d, want 0", len(body))
	}
}

func TestShouldDropTransitionsAfterTimeout(t *testing.T) {
	c := DefaultConfig()
	c.HeartbeatInterval = time.Hour
	c.DisconnectionTimeoutDuration = 2 * time.Millisecond
	a, _ := New(c, nil)

	if a.ShouldDrop() {
		t.Error("should not drop immediately after construction")
	}
	time.Sleep(4 * time.Millisecond)
	if !a.ShouldDrop() {
		t.Error("expected should_drop to become true after the timeout elapses")
	}
}

func TestReceiveStepRoutesEntityOnlyPacketToEntityManager(t *testing.T) {
	a, _ := New(testConfig(), nil)
	b, _ := New(testConfig(), nil)

	em := &stubEntityManager{}
	b.SetEntityManager(em)

	w := packet.NewWriter()
	accepted, err := w.WriteEntityMessage(identityManifest{}, entity.ServerEntityMessage{
		Type:     entity.MessageDelete,
		LocalKey: 42,
	})
	if err != nil || !accepted {
		t.Fatalf("WriteEntityMessage: accepted=%v err=%v", accepted, err)
	}
	if !w.HasBytes() {
		t.Fatal("expected the writer to hold an entity-only body")
	}

	framed := a.ProcessOutgoingHeader(wire.PacketData, w.GetBytes())
	a.MarkSent()

	if err := b.ReceiveStep(framed, identityManifest{}); err != nil {
		t.Fatalf("ReceiveStep rejected a valid entity-only Data packet: %v", err)
	}
	if em.calls != 1 {
		t.Errorf("entity manager calls = %d, want 1", em.calls)
	}
}

func TestReceiveStepRejectsUnknownManagerType(t *testing.T) {
	a, _ := New(testConfig(), nil)

	h := wire.StandardHeader{PacketType: wire.PacketData, Sequence: 0, AckSeq: 0xFFFF, AckField: 0}
	framed := append(h.Marshal(), 0x7F, 0x00)

	if err := a.ReceiveStep(framed, identityManifest{}); err == nil {
		t.Error("expected an unrecognized manager_type to be rejected as malformed")
	}
}

func TestSendTimesDoesNotLeakForNonDataPackets(t *testing.T) {
	a, _ := New(testConfig(), nil)

	for i := 0; i < 10; i++ {
		a.ProcessOutgoingHeader(wire.PacketHeartbeat, nil)
	}

	if got := len(a.sendTimes); got != 0 {
		t.Errorf("sendTimes len = %d after 10 heartbeats, want 0", got)
	}
}

var _ entity.Notifiable = (*connectionNotifiable)(nil)
