package protocol

import (
	"sync/atomic"
)

// Stats keeps running packet and byte counters for a sender or receiver
type Stats struct {
	packetsSent atomic.Uint64
	packetsRcvd atomic.Uint64
	packetsBad  atomic.Uint64
	bytesSent   atomic.Uint64
	bytesRcvd   atomic.Uint64
}

func (s *Stats) AddSent(bytes int) {
	s.packetsSent.Add(1)
	s.bytesSent.Add(uint64(bytes))
}

func (s *Stats) AddRcvd(bytes int) {
	s.packetsRcvd.Add(1)
	s.bytesRcvd.Add(uint64(bytes))
}

// AddDropped counts a datagram that was received but discarded
func (s *Stats) AddDropped() {
	s.packetsBad.Add(1)
}

func (s *Stats) Reset() {
	s.packetsSent.Store(0)
	s.packetsRcvd.Store(0)
	s.packetsBad.Store(0)
	s.bytesSent.Store(0)
	s.bytesRcvd.Store(0)
}

func (s *Stats) GetPacketsSent() uint64 {
	return s.packetsSent.Load()
}

func (s *Stats) GetPacketsRcvd() uint64 {
	return s.packetsRcvd.Load()
}

func (s *Stats) GetPacketsDropped() uint64 {
	return s.packetsBad.Load()
}

func (s *Stats) GetBytesSent() uint64 {
	return s.bytesSent.Load()
}

func (s *Stats) GetBytesRcvd() uint64 {
	return s.bytesRcvd.Load()
}
