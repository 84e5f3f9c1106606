// Package gaianet is the reliability and framing core of an
// unreliable-datagram game networking library: a per-peer Connection that
// acks, estimates RTT, tracks liveness, and packs/unpacks events and
// entity messages into MTU-sized datagrams. Socket I/O, signalling, the
// application's type registry and the entity manager's reconciliation
// logic are external collaborators consulted through the interfaces in
// this package.
package gaianet

import (
	"time"

	guuid "github.com/Lzww0608/GUUID"
	"go.uber.org/zap"

	"github.com/aetherflow/gaianet/internal/gaianet/ackmgr"
	"github.com/aetherflow/gaianet/internal/gaianet/entity"
	"github.com/aetherflow/gaianet/internal/gaianet/events"
	"github.com/aetherflow/gaianet/internal/gaianet/liveness"
	"github.com/aetherflow/gaianet/internal/gaianet/metrics"
	"github.com/aetherflow/gaianet/internal/gaianet/packet"
	"github.com/aetherflow/gaianet/internal/gaianet/rtt"
	"github.com/aetherflow/gaianet/internal/gaianet/wire"
)

// Manifest is the combined event/entity type registry a Connection
// consults to translate between local type ids and wire gaia ids. Owned
// and populated by the application, outside this core.
type Manifest interface {
	events.Manifest
	entity.Manifest
}

// EntityManager is the external collaborator that owns entity
// reconciliation. Connection forwards the entity section of an incoming
// Data packet to it; this core does not specify its internals.
type EntityManager interface {
	ProcessData(r *packet.Reader, manifest entity.Manifest) error
}

// Connection is the per-peer reliability/framing state machine. It is
// single-owner and not safe for concurrent use: all operations mutate
// exclusive state and none suspend internally.
type Connection struct {
	guid   guuid.UUID
	logger *zap.Logger
	config *Config

	ack    *ackmgr.Manager
	rtt    *rtt.Tracker
	timers *liveness.Timers
	events *events.Manager
	stats  *metrics.Connection

	entityNotifiable entity.Notifiable
	entityManager    EntityManager

	sendTimes map[uint16]time.Time
	dropped   bool
}

// New creates a Connection. config may be nil, in which case
// DefaultConfig() is used. logger may be nil, in which case logging is a
// no-op.
func New(config *Config, logger *zap.Logger) (*Connection, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	guid, err := guuid.NewV7()
	if err != nil {
		return nil, err
	}

	return &Connection{
		guid:      guid,
		logger:    logger,
		config:    config,
		ack:       ackmgr.New(),
		rtt:       rtt.New(config.RTTSmoothingFactor, config.RTTMaxValue),
		timers:    liveness.NewTimers(config.HeartbeatInterval, config.DisconnectionTimeoutDuration),
		events:    events.NewManager(),
		stats:     metrics.New(guid.String()),
		sendTimes: make(map[uint16]time.Time, ackmgr.DefaultSentPacketsSize),
	}, nil
}

// GUID returns the connection's correlation identifier. It never appears
// on the wire.
func (c *Connection) GUID() guuid.UUID { return c.guid }

// SetEntityNotifiable installs the collaborator that receives
// delivered/dropped callbacks for entity reconciliation. Pass nil to
// clear it. The Connection keeps it; the ack manager only reaches it
// through connectionNotifiable during each ProcessIncomingHeader call and
// does not retain it.
func (c *Connection) SetEntityNotifiable(n entity.Notifiable) {
	c.entityNotifiable = n
}

// SetEntityManager installs the collaborator that reconciles incoming
// entity messages. Pass nil to clear it.
func (c *Connection) SetEntityManager(m EntityManager) {
	c.entityManager = m
}

// GetNextPacketIndex returns the local sequence number the next outgoing
// packet will be stamped with.
func (c *Connection) GetNextPacketIndex() uint16 {
	return c.ack.LocalSequenceNum()
}

// GetRTT returns the current smoothed round-trip-time estimate.
func (c *Connection) GetRTT() time.Duration {
	return c.rtt.Get()
}

// ShouldSendHeartbeat reports whether the heartbeat interval has elapsed
// since the last outgoing packet of any type.
func (c *Connection) ShouldSendHeartbeat() bool {
	return c.timers.ShouldSendHeartbeat()
}

// MarkSent resets the heartbeat timer. Called on every outgoing packet.
func (c *Connection) MarkSent() {
	c.timers.MarkSent()
}

// MarkHeard resets the disconnection timer. Called on every syntactically
// valid incoming packet.
func (c *Connection) MarkHeard() {
	c.timers.MarkHeard()
}

// ShouldDrop reports whether the peer has been silent past the
// disconnection timeout. The first transition to true is logged and
// counted.
func (c *Connection) ShouldDrop() bool {
	drop := c.timers.ShouldDrop()
	if drop && !c.dropped {
		c.dropped = true
		c.logger.Info("connection timed out",
			zap.String("guid", c.guid.String()),
			zap.Duration("timeout", c.config.DisconnectionTimeoutDuration))
		c.stats.ConnectionsDropped.Inc()
	}
	return drop
}

// QueueEvent enqueues an event for a future outgoing packet.
func (c *Connection) QueueEvent(e events.Event) {
	c.events.Queue(e)
}

// HasOutgoingEvents reports whether any event is waiting to be sent.
func (c *Connection) HasOutgoingEvents() bool {
	return c.events.HasOutgoing()
}

// PopOutgoingEvent dequeues the next event, stamping it with
// nextPacketIndex so a later dropped notification can requeue it.
func (c *Connection) PopOutgoingEvent(nextPacketIndex uint16) (events.Event, bool) {
	return c.events.PopOutgoing(nextPacketIndex)
}

// UnpopOutgoingEvent restores a popped event to the front of the
// outgoing queue, undoing the PopOutgoingEvent bookkeeping for it.
func (c *Connection) UnpopOutgoingEvent(nextPacketIndex uint16, e events.Event) {
	c.events.UnpopOutgoing(nextPacketIndex, e)
}

// GetIncomingEvent dequeues the next decoded incoming event, if any.
func (c *Connection) GetIncomingEvent() (events.Event, bool) {
	return c.events.GetIncoming()
}

// ProcessEventData reads one Event manager section from r and pushes
// decoded events to the incoming queue.
func (c *Connection) ProcessEventData(r *packet.Reader, manifest events.Manifest) error {
	if err := c.events.ProcessEventData(r, manifest); err != nil {
		c.logger.Warn("malformed event section",
			zap.String("guid", c.guid.String()), zap.Error(err))
		return newProtocolError(ReasonMalformed, err)
	}
	return nil
}

// ProcessOutgoingHeader frames payload behind a StandardHeader for
// packetType via the ack manager and, for a Data packet, records the send
// time used later for an RTT sample.
func (c *Connection) ProcessOutgoingHeader(packetType wire.PacketType, payload []byte) []byte {
	framed, seq := c.ack.ProcessOutgoing(packetType, payload)
	if packetType == wire.PacketData {
		c.sendTimes[seq] = time.Now()
	}
	return framed
}

// ProcessIncomingHeader strips and consumes payload's StandardHeader via
// the ack manager — emitting delivered/dropped notifications to the
// event manager and, if installed, the entity notifiable — then marks
// the peer as heard from. It returns the stripped body.
func (c *Connection) ProcessIncomingHeader(payload []byte) ([]byte, error) {
	stripped, err := c.ack.ProcessIncoming(payload, c.events, &connectionNotifiable{c})
	if err != nil {
		c.logger.Warn("malformed incoming header",
			zap.String("guid", c.guid.String()), zap.Error(err))
		return nil, newProtocolError(ReasonMalformed, err)
	}
	c.MarkHeard()
	return stripped, nil
}

// connectionNotifiable forwards delivered/dropped callbacks to both the
// Connection itself (for RTT sampling, metrics and logging) and the
// externally installed EntityNotifiable, if any. It exists only for the
// duration of one ProcessIncomingHeader call and is never stored by the
// ack manager.
type connectionNotifiable struct {
	c *Connection
}

func (n *connectionNotifiable) NotifyPacketDelivered(seq uint16) {
	n.c.onDelivered(seq)
	if n.c.entityNotifiable != nil {
		n.c.entityNotifiable.NotifyPacketDelivered(seq)
	}
}

func (n *connectionNotifiable) NotifyPacketDropped(seq uint16) {
	n.c.onDropped(seq)
	if n.c.entityNotifiable != nil {
		n.c.entityNotifiable.NotifyPacketDropped(seq)
	}
}

func (c *Connection) onDelivered(seq uint16) {
	c.stats.PacketsDelivered.Inc()
	if sendTime, ok := c.sendTimes[seq]; ok {
		c.rtt.Sample(time.Since(sendTime))
		c.stats.RTTMilliseconds.Set(float64(c.rtt.Get().Milliseconds()))
		delete(c.sendTimes, seq)
	}
	c.logger.Debug("packet delivered", zap.String("guid", c.guid.String()), zap.Uint16("seq", seq))
}

func (c *Connection) onDropped(seq uint16) {
	c.stats.PacketsDropped.Inc()
	delete(c.sendTimes, seq)
	c.logger.Debug("packet dropped", zap.String("guid", c.guid.String()), zap.Uint16("seq", seq))
}

// SendStep performs one composite send: it drains as many queued events
// as fit in a single datagram, frames them as a Data packet, or — if
// nothing was queued — a header-only Heartbeat once one is due. It
// returns nil if there is nothing to send this call.
func (c *Connection) SendStep(manifest Manifest) []byte {
	w := packet.NewWriter()

	if c.HasOutgoingEvents() {
		nextIndex := c.GetNextPacketIndex()
		for c.HasOutgoingEvents() {
			e, ok := c.PopOutgoingEvent(nextIndex)
			if !ok {
				break
			}
			accepted, err := w.WriteEvent(manifest, e)
			if err != nil {
				c.logger.Error("oversized event write refused",
					zap.String("guid", c.guid.String()), zap.Error(err))
				continue
			}
			if !accepted {
				c.UnpopOutgoingEvent(nextIndex, e)
				break
			}
		}
	}

	if w.HasBytes() {
		framed := c.ProcessOutgoingHeader(wire.PacketData, w.GetBytes())
		c.MarkSent()
		return framed
	}

	if c.ShouldSendHeartbeat() {
		framed := c.ProcessOutgoingHeader(wire.PacketHeartbeat, nil)
		c.MarkSent()
		c.stats.HeartbeatsSent.Inc()
		return framed
	}

	return nil
}

// ReceiveStep processes one incoming datagram: it strips and consumes
// the StandardHeader (emitting delivered/dropped notifications), then
// reads the body's manager sections, decoding events into the incoming
// queue and forwarding any remaining bytes to the installed
// EntityManager.
func (c *Connection) ReceiveStep(raw []byte, manifest Manifest) error {
	header, body, err := wire.Unmarshal(raw)
	if err != nil {
		c.logger.Warn("truncated header", zap.String("guid", c.guid.String()), zap.Error(err))
		return newProtocolError(ReasonMalformed, err)
	}

	stripped, err := c.ProcessIncomingHeader(raw)
	if err != nil {
		return err
	}
	_ = body

	if header.PacketType == wire.PacketHeartbeat {
		if len(stripped) != 0 {
			err := newProtocolError(ReasonMalformed, errNonEmptyHeartbeat)
			c.logger.Warn("non-empty heartbeat body treated as malformed",
				zap.String("guid", c.guid.String()))
			return err
		}
		return nil
	}

	r := packet.NewReader(stripped)
	if !r.HasMore() {
		return nil
	}

	managerType, ok := r.ReadU8()
	if !ok {
		err := newProtocolError(ReasonMalformed, errTruncatedManagerType)
		c.logger.Warn("truncated manager type", zap.String("guid", c.guid.String()))
		return err
	}

	switch packet.ManagerType(managerType) {
	case packet.ManagerEvent:
		if err := c.ProcessEventData(r, manifest); err != nil {
			return err
		}
		if r.HasMore() && c.entityManager != nil {
			if err := c.entityManager.ProcessData(r, manifest); err != nil {
				c.logger.Warn("entity manager rejected section",
					zap.String("guid", c.guid.String()), zap.Error(err))
				return newProtocolError(ReasonMalformed, err)
			}
		}
	case packet.ManagerEntity:
		if c.entityManager != nil {
			if err := c.entityManager.ProcessData(r, manifest); err != nil {
				c.logger.Warn("entity manager rejected section",
					zap.String("guid", c.guid.String()), zap.Error(err))
				return newProtocolError(ReasonMalformed, err)
			}
		}
	default:
		err := newProtocolError(ReasonMalformed, errUnknownManagerType)
		c.logger.Warn("unknown manager type",
			zap.String("guid", c.guid.String()), zap.Uint8("manager_type", managerType))
		return err
	}

	return nil
}
