package server

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/goodieshq/govban/internal/metrics"
	"github.com/goodieshq/govban/internal/protocol"
	"github.com/goodieshq/govban/internal/protocol/transfer"
	"github.com/goodieshq/govban/internal/utils"
	"github.com/rs/zerolog/log"
)

// Called for every accepted packet. The packet is owned by the callee.
type PacketHandler func(pkt *protocol.Packet, addr net.Addr)

type ServerUDP struct {
	host          string
	port          uint16
	streamName    string
	allowed       map[string]struct{}
	handler       PacketHandler
	metrics       *metrics.ReceiverMetrics
	statsInterval time.Duration
	stats         protocol.Stats
	streams       *streamTracker
}

type ServerOpts struct {
	Host           string
	Port           uint16
	StreamName     string   // only accept this stream, empty accepts all
	AllowedSources []string // only accept these sender IPs, empty accepts all
	Handler        PacketHandler
	Metrics        *metrics.ReceiverMetrics
	StatsInterval  time.Duration // 0 disables periodic throughput logging
	MaxStreams     int           // tracked (source, name) pairs, 0 uses DEFAULT_MAX_STREAMS
	StreamTimeout  time.Duration // forget streams idle this long, 0 keeps them until evicted
}

func NewServerUDP(opts ServerOpts) *ServerUDP {
	if opts.Port == 0 {
		opts.Port = protocol.DefaultPort
	}

	var allowed map[string]struct{}
	if len(opts.AllowedSources) > 0 {
		allowed = make(map[string]struct{}, len(opts.AllowedSources))
		for _, src := range opts.AllowedSources {
			if ip := net.ParseIP(src); ip != nil {
				allowed[ip.String()] = struct{}{}
			}
		}
	}

	return &ServerUDP{
		host:          opts.Host,
		port:          opts.Port,
		streamName:    opts.StreamName,
		allowed:       allowed,
		handler:       opts.Handler,
		metrics:       opts.Metrics,
		statsInterval: opts.StatsInterval,
		streams:       newStreamTracker(opts.MaxStreams, opts.StreamTimeout),
	}
}

func (s *ServerUDP) Stats() *protocol.Stats {
	return &s.stats
}

// Streams returns every tracked stream, oldest first
func (s *ServerUDP) Streams() []StreamInfo {
	return s.streams.snapshot()
}

// Run binds the UDP socket and receives packets until ctx is cancelled
func (s *ServerUDP) Run(ctx context.Context) error {
	address := net.JoinHostPort(s.host, fmt.Sprintf("%d", s.port))
	conn, err := net.ListenPacket("udp", address)
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return s.Serve(ctx, conn)
}

// Serve receives packets on an already bound connection and closes it on return
func (s *ServerUDP) Serve(ctx context.Context, conn net.PacketConn) error {
	defer conn.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	log.Info().
		Str("address", conn.LocalAddr().String()).
		Str("stream", s.streamName).
		Int("allowed_sources", len(s.allowed)).
		Msg("Listening for VBAN packets")

	var wg sync.WaitGroup
	if s.statsInterval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			transfer.Logger(ctx, &s.stats, s.statsInterval)
		}()
	}

	err := transfer.RecvLoop(ctx, conn, &s.stats, s.handle)
	cancel()
	wg.Wait()
	if err != nil {
		return fmt.Errorf("receive loop failed: %w", err)
	}

	for _, st := range s.Streams() {
		log.Info().
			Str("stream_id", st.ID.String()).
			Str("stream", st.Name).
			Str("source", st.Source).
			Uint64("packets", st.Packets).
			Uint64("lost_frames", st.LostFrames).
			Uint64("reordered", st.Reordered).
			Msg("Stream summary")
	}
	return nil
}

func (s *ServerUDP) drop(reason string) {
	s.stats.AddDropped()
	s.metrics.RecordDropped(reason)
}

func sourceIP(addr net.Addr) string {
	switch a := addr.(type) {
	case *net.UDPAddr:
		return a.IP.String()
	case nil:
		return ""
	default:
		host, _, err := net.SplitHostPort(a.String())
		if err != nil {
			return a.String()
		}
		return host
	}
}

// handle processes a single datagram. Invalid datagrams are discarded before
// they reach the stream tracker.
func (s *ServerUDP) handle(data []byte, addr net.Addr) {
	source := sourceIP(addr)

	if s.allowed != nil {
		if _, ok := s.allowed[source]; !ok {
			s.drop(metrics.ReasonSource)
			log.Debug().Str("source", source).Msg("Dropped packet from unknown source")
			return
		}
	}

	pkt, err := protocol.UnmarshalPacket(data)
	if err != nil {
		s.drop(metrics.DropReason(err))
		log.Debug().Err(err).Str("source", source).Int("size", len(data)).Msg("Dropped invalid packet")
		return
	}

	name := pkt.StreamName.String()
	if s.streamName != "" && name != s.streamName {
		s.drop(metrics.ReasonStream)
		return
	}

	if expected, ok := pkt.ExpectedPayloadSize(); ok && expected != len(pkt.Payload) {
		s.drop(metrics.ReasonPayload)
		log.Debug().
			Str("stream", name).
			Int("expected", expected).
			Int("size", len(pkt.Payload)).
			Msg("Dropped PCM packet with inconsistent payload size")
		return
	}

	obs, err := s.streams.observe(source, &pkt.Header, time.Now())
	if err != nil {
		log.Error().Err(err).Str("stream", name).Msg("Failed to track stream")
		return
	}
	for _, st := range obs.evicted {
		log.Info().
			Str("stream_id", st.ID.String()).
			Str("stream", st.Name).
			Str("source", st.Source).
			Uint64("packets", st.Packets).
			Str("idle", utils.DisplayTime(time.Since(st.LastSeen))).
			Msg("Stream expired")
	}
	for _, freed := range obs.freed {
		s.metrics.ForgetStream(freed)
	}
	if obs.isNew {
		s.metrics.SetStreams(s.streams.len())
		log.Info().
			Str("stream_id", obs.info.ID.String()).
			Str("stream", name).
			Str("source", source).
			Str("sub_protocol", pkt.SubProtocol.String()).
			Str("codec", pkt.Codec.String()).
			Str("sample_rate", pkt.SampleRate.String()).
			Str("bit_resolution", pkt.BitResolution.String()).
			Uint16("channels", pkt.NumChannels).
			Msg("New stream")
	}
	if obs.lost > 0 {
		s.metrics.RecordLost(name, obs.lost)
		log.Warn().
			Str("stream", name).
			Uint32("frame", pkt.FrameNumber).
			Uint32("lost", obs.lost).
			Msg("Frames lost")
	}
	if obs.reordered {
		s.metrics.RecordReordered(name)
		log.Debug().
			Str("stream", name).
			Uint32("frame", pkt.FrameNumber).
			Uint32("last_frame", obs.info.LastFrame).
			Msg("Late or duplicate frame")
	}

	s.metrics.RecordPacket(name, pkt.SubProtocol, len(pkt.Payload))
	if s.handler != nil {
		s.handler(pkt, addr)
	}
}
