package client

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/goodieshq/govban/internal/protocol"
	"github.com/goodieshq/govban/internal/protocol/transfer"
	"github.com/goodieshq/govban/internal/utils"
	"github.com/rs/zerolog/log"
)

type ClientUDP struct {
	host    string
	port    uint16
	timeout time.Duration
	stats   protocol.Stats
}

func NewClientUDP(
	host string,
	port uint16,
	timeout *time.Duration,
) *ClientUDP {
	t := utils.DefaultIfNil(timeout, 3*time.Second)
	if port == 0 {
		port = protocol.DefaultPort
	}
	return &ClientUDP{
		host:    host,
		port:    port,
		timeout: t,
	}
}

// Sends each Write as one datagram on an unconnected socket
type datagramWriter struct {
	conn    net.PacketConn
	addr    net.Addr
	timeout time.Duration
}

func (w *datagramWriter) Write(p []byte) (int, error) {
	if w.timeout > 0 {
		if err := w.conn.SetWriteDeadline(time.Now().Add(w.timeout)); err != nil {
			return 0, fmt.Errorf("failed to set write deadline: %w", err)
		}
	}
	return w.conn.WriteTo(p, w.addr)
}

func (c *ClientUDP) Stats() *protocol.Stats {
	return &c.stats
}

// newAudioHeader builds the header shared by every packet of the run
func newAudioHeader(runOpts RunOpts) (protocol.Header, error) {
	name, err := protocol.NewStreamName(runOpts.GetStreamName())
	if err != nil {
		return protocol.Header{}, err
	}

	samples := runOpts.GetSamplesPerFrame()
	if samples < 1 || samples > 256 {
		return protocol.Header{}, fmt.Errorf("%w: %d", protocol.ErrInvalidSampleCount, samples)
	}
	channels := runOpts.GetChannels()
	if channels < 1 || channels > 256 {
		return protocol.Header{}, fmt.Errorf("%w: %d", protocol.ErrInvalidChannelCount, channels)
	}
	if runOpts.GetSampleRate().Hz() == 0 {
		return protocol.Header{}, fmt.Errorf("%w: sample rate code %d", protocol.ErrUnknownEnumValue, runOpts.GetSampleRate())
	}

	return protocol.Header{
		SampleRate:    runOpts.GetSampleRate(),
		SubProtocol:   protocol.SubProtocolAudio,
		NumSamples:    samples,
		NumChannels:   channels,
		BitResolution: protocol.BitResolutionS16,
		Codec:         protocol.CodecPCM,
		StreamName:    name,
	}, nil
}

// Run streams PCM audio packets to the receiver until the duration elapses,
// MaxFrames packets have been sent, or ctx is cancelled
func (c *ClientUDP) Run(ctx context.Context, runOpts RunOpts) error {
	header, err := newAudioHeader(runOpts)
	if err != nil {
		return fmt.Errorf("invalid stream options: %w", err)
	}

	gen := newToneGenerator(runOpts.GetToneHz(), header.SampleRate.Hz(), int(header.NumChannels))
	if size := gen.frameSize(int(header.NumSamples)); size > protocol.MaxPayloadSize {
		return fmt.Errorf("%w: %d byte payload, max %d", protocol.ErrPacketTooLarge, size, protocol.MaxPayloadSize)
	}

	address := net.JoinHostPort(c.host, fmt.Sprintf("%d", c.port))
	raddr, err := net.ResolveUDPAddr("udp", address)
	if err != nil {
		return fmt.Errorf("failed to resolve receiver address: %w", err)
	}

	conn, err := net.ListenPacket("udp", ":0")
	if err != nil {
		return fmt.Errorf("failed to open socket: %w", err)
	}
	defer conn.Close()
	w := &datagramWriter{conn: conn, addr: raddr, timeout: c.timeout}

	// generate a ULID for this run
	runID, err := utils.NewULID()
	if err != nil {
		return fmt.Errorf("failed to generate run ID: %w", err)
	}

	if d := runOpts.GetDuration(); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	// counters cover a single run
	c.stats.Reset()

	if interval := runOpts.GetStatsInterval(); interval > 0 {
		go transfer.Logger(ctx, &c.stats, interval)
	}

	maxFrames := runOpts.GetMaxFrames()
	sent := uint32(0)
	next := func() (protocol.Marshaler, error) {
		if maxFrames > 0 && sent >= maxFrames {
			return nil, io.EOF
		}
		pkt := &protocol.Packet{
			Header:  header,
			Payload: gen.fill(int(header.NumSamples)),
		}
		pkt.FrameNumber = header.FrameNumber + sent
		sent++
		return pkt, nil
	}

	log.Info().
		Str("run_id", runID.String()).
		Str("address", address).
		Str("stream", header.StreamName.String()).
		Str("sample_rate", header.SampleRate.String()).
		Uint16("channels", header.NumChannels).
		Uint16("samples", header.NumSamples).
		Float64("tone_hz", runOpts.GetToneHz()).
		Msg("Streaming VBAN audio")

	t := time.Now()
	err = transfer.SendLoop(ctx, w, runOpts.FrameInterval(), &c.stats, next)
	if err != nil {
		return fmt.Errorf("send loop failed: %w", err)
	}
	elapsed := time.Since(t)

	log.Info().
		Str("run_id", runID.String()).
		Str("duration", utils.DisplayTime(elapsed)).
		Uint64("packets", c.stats.GetPacketsSent()).
		Str("total_sent", utils.DisplayB(c.stats.GetBytesSent())).
		Str("avg_sent", utils.DisplayBPS(c.stats.GetBytesSent(), elapsed)).
		Msg("Stream complete")

	return nil
}
