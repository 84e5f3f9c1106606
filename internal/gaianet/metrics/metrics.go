// Package metrics instruments a Connection with Prometheus counters and
// gauges. It is pure observability: nothing here feeds back into framing
// or ack decisions.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Connection holds the per-connection metric handles, pre-labeled with
// the connection's GUID so a process hosting many connections can
// distinguish them.
type Connection struct {
	PacketsDelivered  prometheus.Counter
	PacketsDropped    prometheus.Counter
	HeartbeatsSent    prometheus.Counter
	ConnectionsDropped prometheus.Counter
	RTTMilliseconds   prometheus.Gauge
}

var (
	packetsDelivered = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gaianet_packets_delivered_total",
		Help: "Total number of sent Data packets confirmed delivered via ack.",
	}, []string{"connection"})

	packetsDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gaianet_packets_dropped_total",
		Help: "Total number of sent Data packets declared dropped.",
	}, []string{"connection"})

	heartbeatsSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gaianet_heartbeats_sent_total",
		Help: "Total number of Heartbeat packets emitted.",
	}, []string{"connection"})

	connectionsDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gaianet_connections_dropped_total",
		Help: "Total number of connections that transitioned to should_drop.",
	}, []string{"connection"})

	rttMilliseconds = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "gaianet_rtt_milliseconds",
		Help: "Current smoothed RTT estimate in milliseconds.",
	}, []string{"connection"})
)

func init() {
	// Registered once at package init, following the teacher's own
	// internal/gateway/metrics promauto-style construction; duplicate
	// registration across repeated test runs in the same process is
	// intentionally ignored.
	_ = prometheus.Register(packetsDelivered)
	_ = prometheus.Register(packetsDropped)
	_ = prometheus.Register(heartbeatsSent)
	_ = prometheus.Register(connectionsDropped)
	_ = prometheus.Register(rttMilliseconds)
}

// New returns per-connection metric handles labeled with guid, registered
// against the default Prometheus registry.
func New(guid string) *Connection {
	return &Connection{
		PacketsDelivered:   packetsDelivered.WithLabelValues(guid),
		PacketsDropped:     packetsDropped.WithLabelValues(guid),
		HeartbeatsSent:     heartbeatsSent.WithLabelValues(guid),
		ConnectionsDropped: connectionsDropped.WithLabelValues(guid),
		RTTMilliseconds:    rttMilliseconds.WithLabelValues(guid),
	}
}
