package gaianet

import (
	"fmt"
	"time"

	"github.com/aetherflow/gaianet/internal/gaianet/ackmgr"
)

// Config is the configuration surface that affects the reliability core.
// All fields must match across peers that interoperate on the wire.
type Config struct {
	// HeartbeatInterval is the period after which, if no packet has been
	// sent, a Heartbeat is emitted.
	HeartbeatInterval time.Duration

	// DisconnectionTimeoutDuration is the silence threshold after which
	// ShouldDrop returns true.
	DisconnectionTimeoutDuration time.Duration

	// RTTSmoothingFactor is the EWMA weight in (0,1] applied to new RTT
	// samples.
	RTTSmoothingFactor float64

	// RTTMaxValue clamps each RTT sample before it is folded in.
	RTTMaxValue time.Duration

	// RedundantPacketAcksSize must be in (0, 32]; values above 32 are
	// undefined by the protocol (the bitfield is a fixed u32) and rejected
	// here. It is only validated: the ack manager always uses the fixed
	// width ackmgr.RedundantPacketAcksSize for the outgoing ack bitfield.
	RedundantPacketAcksSize uint16
}

// DefaultConfig returns the configuration the teacher's own connection
// constructors default to when none is supplied.
func DefaultConfig() *Config {
	return &Config{
		HeartbeatInterval:            10 * time.Second,
		DisconnectionTimeoutDuration: 60 * time.Second,
		RTTSmoothingFactor:           0.1,
		RTTMaxValue:                 5 * time.Second,
		RedundantPacketAcksSize:      ackmgr.RedundantPacketAcksSize,
	}
}

// Validate rejects configuration values the protocol cannot express.
func (c *Config) Validate() error {
	if c.RedundantPacketAcksSize == 0 || c.RedundantPacketAcksSize > ackmgr.RedundantPacketAcksSize {
		return fmt.Errorf("gaianet: RedundantPacketAcksSize %d out of range (0, %d]", c.RedundantPacketAcksSize, ackmgr.RedundantPacketAcksSize)
	}
	if c.RTTSmoothingFactor <= 0 || c.RTTSmoothingFactor > 1 {
		return fmt.Errorf("gaianet: RTTSmoothingFactor %v out of range (0, 1]", c.RTTSmoothingFactor)
	}
	if c.HeartbeatInterval <= 0 {
		return fmt.Errorf("gaianet: HeartbeatInterval must be positive")
	}
	if c.DisconnectionTimeoutDuration <= 0 {
		return fmt.Errorf("gaianet: DisconnectionTimeoutDuration must be positive")
	}
	return nil
}
