package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/goodieshq/govban/internal/client"
	"github.com/goodieshq/govban/internal/metrics"
	"github.com/goodieshq/govban/internal/protocol"
	"github.com/goodieshq/govban/internal/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var addr = &net.UDPAddr{IP: net.IPv4(10, 0, 0, 1), Port: 6980}

func marshal(t *testing.T, pkt *protocol.Packet) []byte {
	t.Helper()
	buf, err := pkt.Marshal()
	require.NoError(t, err)
	return buf
}

func pcmPacket(t *testing.T, name string, frame uint32) *protocol.Packet {
	h := header(t, name, frame)
	h.NumSamples = 4
	size, ok := h.ExpectedPayloadSize()
	require.True(t, ok)
	return &protocol.Packet{Header: *h, Payload: make([]byte, size)}
}

func TestHandle(t *testing.T) {
	var accepted []*protocol.Packet
	m := metrics.NewReceiverMetrics(prometheus.NewRegistry())
	srv := NewServerUDP(ServerOpts{
		StreamName: "Stream1",
		Metrics:    m,
		Handler: func(pkt *protocol.Packet, _ net.Addr) {
			accepted = append(accepted, pkt)
		},
	})

	srv.handle(marshal(t, pcmPacket(t, "Stream1", 0)), addr)
	srv.handle(marshal(t, pcmPacket(t, "Stream1", 3)), addr)
	require.Len(t, accepted, 2)
	assert.Equal(t, uint32(3), accepted[1].FrameNumber)

	// other stream name
	srv.handle(marshal(t, pcmPacket(t, "Other", 0)), addr)

	// bad magic
	bad := marshal(t, pcmPacket(t, "Stream1", 4))
	bad[0] = 'X'
	srv.handle(bad, addr)

	// reserved bit cleared
	bad = marshal(t, pcmPacket(t, "Stream1", 4))
	bad[7] &^= 0x08
	srv.handle(bad, addr)

	// truncated
	srv.handle([]byte("VBAN"), addr)

	// payload shorter than the header implies
	short := marshal(t, pcmPacket(t, "Stream1", 4))
	srv.handle(short[:len(short)-2], addr)

	assert.Len(t, accepted, 2)
	assert.Equal(t, uint64(5), srv.Stats().GetPacketsDropped())

	assert.Equal(t, 1.0, testutil.ToFloat64(m.DroppedTotal.WithLabelValues(metrics.ReasonStream)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DroppedTotal.WithLabelValues(metrics.ReasonMagic)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DroppedTotal.WithLabelValues(metrics.ReasonFormat)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DroppedTotal.WithLabelValues(metrics.ReasonTrunc)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DroppedTotal.WithLabelValues(metrics.ReasonPayload)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.PacketsTotal.WithLabelValues("Stream1", "AUDIO")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.LostFrames.WithLabelValues("Stream1")))

	streams := srv.Streams()
	require.Len(t, streams, 1)
	assert.Equal(t, "10.0.0.1", streams[0].Source)
	assert.Equal(t, uint64(2), streams[0].LostFrames)
	assert.Equal(t, uint32(3), streams[0].LastFrame, "dropped packets do not move the frame counter")
	assert.Equal(t, uint64(2), streams[0].Packets)
}

func TestHandleBadPayloadNotTracked(t *testing.T) {
	srv := NewServerUDP(ServerOpts{})

	data := marshal(t, pcmPacket(t, "Short", 0))
	srv.handle(data[:len(data)-1], addr)

	assert.Empty(t, srv.Streams())
	assert.Equal(t, uint64(1), srv.Stats().GetPacketsDropped())
}

func TestHandleMaxStreams(t *testing.T) {
	m := metrics.NewReceiverMetrics(prometheus.NewRegistry())
	srv := NewServerUDP(ServerOpts{MaxStreams: 3, Metrics: m})

	for i := 0; i < 20; i++ {
		srv.handle(marshal(t, pcmPacket(t, fmt.Sprintf("Flood%d", i), 0)), addr)
	}

	streams := srv.Streams()
	require.Len(t, streams, 3)
	assert.Equal(t, "Flood17", streams[0].Name)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.ActiveStreams))
	assert.Equal(t, 3, testutil.CollectAndCount(m.PacketsTotal))
	assert.Equal(t, 3, testutil.CollectAndCount(m.BytesTotal))
	assert.Zero(t, srv.Stats().GetPacketsDropped())
}

func TestHandleAllowedSources(t *testing.T) {
	count := 0
	srv := NewServerUDP(ServerOpts{
		AllowedSources: []string{"10.0.0.1", "bogus"},
		Handler:        func(*protocol.Packet, net.Addr) { count++ },
	})

	data := marshal(t, pcmPacket(t, "A", 0))
	srv.handle(data, addr)
	srv.handle(data, &net.UDPAddr{IP: net.IPv4(10, 0, 0, 2), Port: 6980})

	assert.Equal(t, 1, count)
	assert.Equal(t, uint64(1), srv.Stats().GetPacketsDropped())
}

func TestHandleNonAudio(t *testing.T) {
	count := 0
	srv := NewServerUDP(ServerOpts{
		Handler: func(pkt *protocol.Packet, _ net.Addr) {
			assert.Equal(t, protocol.SubProtocolText, pkt.SubProtocol)
			count++
		},
	})

	// the encoder never writes sub-protocol bits, set them by hand
	data := marshal(t, &protocol.Packet{Header: *header(t, "Chat", 0), Payload: []byte("hello")})
	data[4] |= byte(protocol.SubProtocolText)
	srv.handle(data, addr)

	assert.Equal(t, 1, count)
}

func TestServeLoopback(t *testing.T) {
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	port := uint16(conn.LocalAddr().(*net.UDPAddr).Port)

	received := make(chan *protocol.Packet, 16)
	srv := NewServerUDP(ServerOpts{
		StreamName:     "Loop",
		AllowedSources: []string{"127.0.0.1"},
		Handler: func(pkt *protocol.Packet, _ net.Addr) {
			received <- pkt
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, conn) }()

	cli := client.NewClientUDP("127.0.0.1", port, nil)
	err = cli.Run(context.Background(), client.RunOpts{
		StreamName:      utils.Ptr("Loop"),
		SampleRate:      utils.Ptr(protocol.SampleRate44100),
		Channels:        utils.Ptr(uint16(2)),
		SamplesPerFrame: utils.Ptr(uint16(64)),
		ToneHz:          utils.Ptr(1000.0),
		MaxFrames:       utils.Ptr(uint32(8)),
	})
	require.NoError(t, err)

	for i := uint32(0); i < 8; i++ {
		select {
		case pkt := <-received:
			assert.Equal(t, i, pkt.FrameNumber)
			assert.Equal(t, protocol.SampleRate44100, pkt.SampleRate)
			assert.Len(t, pkt.Payload, 64*2*2)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for frame %d", i)
		}
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("server did not stop")
	}

	streams := srv.Streams()
	require.Len(t, streams, 1)
	assert.Equal(t, uint64(8), streams[0].Packets)
	assert.Zero(t, streams[0].LostFrames)
}

// Fails every read with a non-timeout error
type brokenConn struct {
	net.PacketConn
}

var errBroken = errors.New("socket broken")

func (c brokenConn) ReadFrom([]byte) (int, net.Addr, error) {
	return 0, nil, errBroken
}

func TestServeReadErrorStopsLogger(t *testing.T) {
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := NewServerUDP(ServerOpts{StatsInterval: 10 * time.Millisecond})

	// ctx is never cancelled, Serve only returns once its logger has stopped
	done := make(chan error, 1)
	go func() { done <- srv.Serve(context.Background(), brokenConn{conn}) }()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, errBroken)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after a read error")
	}
}
