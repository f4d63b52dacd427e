package coremqtt

import (
	"sync/atomic"

	"github.com/DrmagicE/coremqtt/pkg/packets"
)

// StatsReader interface provides the ability to access the statistics of a Context.
type StatsReader interface {
	// GetStats return a snapshot of the statistics
	GetStats() *Stats
}

// PacketStats represents the statistics of MQTT Packet, indexed by packet type.
type PacketStats struct {
	BytesReceived [packets.AUTH + 1]uint64
	ReceivedTotal [packets.AUTH + 1]uint64
	BytesSent     [packets.AUTH + 1]uint64
	SentTotal     [packets.AUTH + 1]uint64
}

func (p *PacketStats) add(packetType byte, size int, receive bool) {
	if packetType > packets.AUTH {
		return
	}
	if receive {
		atomic.AddUint64(&p.BytesReceived[packetType], uint64(size))
		atomic.AddUint64(&p.ReceivedTotal[packetType], 1)
		return
	}
	atomic.AddUint64(&p.BytesSent[packetType], uint64(size))
	atomic.AddUint64(&p.SentTotal[packetType], 1)
}

func (p *PacketStats) copy() PacketStats {
	var c PacketStats
	for i := range c.SentTotal {
		c.BytesReceived[i] = atomic.LoadUint64(&p.BytesReceived[i])
		c.ReceivedTotal[i] = atomic.LoadUint64(&p.ReceivedTotal[i])
		c.BytesSent[i] = atomic.LoadUint64(&p.BytesSent[i])
		c.SentTotal[i] = atomic.LoadUint64(&p.SentTotal[i])
	}
	return c
}

// PublishStats represents the statistics of the publish path.
type PublishStats struct {
	// V5Total is the number of PUBLISH packets sent with a property section.
	V5Total uint64
	// V311Total is the number of PUBLISH packets sent without a property section.
	V311Total uint64
	// FailedTotal is the number of Publish calls that returned an error.
	FailedTotal uint64
	// StateUpdateFailedTotal is the number of PUBLISH packets sent whose delivery state could not be updated.
	StateUpdateFailedTotal uint64
	// AckFailureTotal is the number of acknowledgments carrying a failure reason code.
	AckFailureTotal uint64
	// InflightCurrent is the number of packet ids waiting for acknowledgment, summed over the
	// Contexts reporting to the Stats.
	InflightCurrent uint64
}

func (p *PublishStats) copy() PublishStats {
	return PublishStats{
		V5Total:                atomic.LoadUint64(&p.V5Total),
		V311Total:              atomic.LoadUint64(&p.V311Total),
		FailedTotal:            atomic.LoadUint64(&p.FailedTotal),
		StateUpdateFailedTotal: atomic.LoadUint64(&p.StateUpdateFailedTotal),
		AckFailureTotal:        atomic.LoadUint64(&p.AckFailureTotal),
		InflightCurrent:        atomic.LoadUint64(&p.InflightCurrent),
	}
}

// Stats is the collection of statistics of one or more Contexts.
type Stats struct {
	PacketStats
	PublishStats
}

// NewStats returns an empty Stats.
func NewStats() *Stats {
	return &Stats{}
}

func (s *Stats) GetStats() *Stats {
	return &Stats{
		PacketStats:  s.PacketStats.copy(),
		PublishStats: s.PublishStats.copy(),
	}
}

func (s *Stats) packetSent(packetType byte, size int) {
	s.PacketStats.add(packetType, size, false)
}

func (s *Stats) packetReceived(packetType byte, size int) {
	s.PacketStats.add(packetType, size, true)
}

func (s *Stats) publishSent(v5 bool) {
	if v5 {
		atomic.AddUint64(&s.V5Total, 1)
	} else {
		atomic.AddUint64(&s.V311Total, 1)
	}
}

// addInflight applies the change of one Context's in-flight count, so that Contexts sharing
// a Stats report their sum.
func (s *Stats) addInflight(delta int) {
	if delta >= 0 {
		atomic.AddUint64(&s.InflightCurrent, uint64(delta))
		return
	}
	atomic.AddUint64(&s.InflightCurrent, ^uint64(-delta-1))
}
