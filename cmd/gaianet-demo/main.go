// Package main demonstrates a minimal back-and-forth between two gaianet
// Connections wired directly together in-process, standing in for a real
// UDP socket.
package main

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/aetherflow/gaianet/internal/gaianet"
	"github.com/aetherflow/gaianet/internal/gaianet/events"
)

// chatMessage is the one application-defined event type this demo
// exchanges.
type chatMessage struct {
	text string
}

func (m chatMessage) Write() []byte  { return []byte(m.text) }
func (m chatMessage) TypeID() uint16 { return chatMessageTypeID }

const chatMessageGaiaID = 7

// demoManifest maps the single chatMessage type to a wire gaia id. A real
// application's manifest would cover every event and entity type it
// registers.
type demoManifest struct{}

const chatMessageTypeID = 1

func (demoManifest) GetGaiaID(typeID uint16) (uint16, bool) {
	if typeID == chatMessageTypeID {
		return chatMessageGaiaID, true
	}
	return 0, false
}

func (demoManifest) CreateFromGaiaID(gaiaID uint16, payload []byte) (events.Event, bool) {
	if gaiaID == chatMessageGaiaID {
		return chatMessage{text: string(payload)}, true
	}
	return nil, false
}

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(fmt.Sprintf("failed to create logger: %v", err))
	}
	defer logger.Sync()

	logger.Info("=== gaianet connection demo ===")

	config := gaianet.DefaultConfig()
	config.HeartbeatInterval = 500 * time.Millisecond
	config.DisconnectionTimeoutDuration = 5 * time.Second

	alice, err := gaianet.New(config, logger.Named("alice"))
	if err != nil {
		logger.Fatal("failed to create connection", zap.Error(err))
	}
	bob, err := gaianet.New(config, logger.Named("bob"))
	if err != nil {
		logger.Fatal("failed to create connection", zap.Error(err))
	}

	manifest := demoManifest{}

	alice.QueueEvent(chatMessage{text: "hello from alice"})

	logger.Info("alice -> bob")
	if framed := alice.SendStep(manifest); framed != nil {
		deliver(logger, bob, framed, manifest)
	}

	bob.QueueEvent(chatMessage{text: "hi alice, got it"})
	logger.Info("bob -> alice")
	if framed := bob.SendStep(manifest); framed != nil {
		deliver(logger, alice, framed, manifest)
	}

	for _, c := range []*gaianet.Connection{alice, bob} {
		logger.Info("connection state",
			zap.String("guid", c.GUID().String()),
			zap.Duration("rtt", c.GetRTT()),
			zap.Uint16("next_packet_index", c.GetNextPacketIndex()))
	}
}

func deliver(logger *zap.Logger, dst *gaianet.Connection, framed []byte, manifest gaianet.Manifest) {
	if err := dst.ReceiveStep(framed, manifest); err != nil {
		logger.Warn("dropped malformed datagram", zap.Error(err))
		return
	}
	for {
		e, ok := dst.GetIncomingEvent()
		if !ok {
			break
		}
		msg, ok := e.(chatMessage)
		if !ok {
			continue
		}
		logger.Info("received event", zap.String("text", msg.text), zap.Int("bytes", len(msg.Write())))
	}
}
