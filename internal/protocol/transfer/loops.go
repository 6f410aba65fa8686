package transfer

import (
	"context"
	"errors"
	"io"
	"net"
	"time"

	"github.com/goodieshq/govban/internal/protocol"
	"github.com/goodieshq/govban/internal/utils"
	"github.com/rs/zerolog/log"
)

// Called for every received datagram. data is only valid for the duration of the call.
type HandlerFunc func(data []byte, addr net.Addr)

// Produces the next packet to send
type NextFunc func() (protocol.Marshaler, error)

// RecvLoop reads datagrams from conn until ctx is cancelled or conn fails.
// The connection is closed when ctx is done to unblock the pending read.
func RecvLoop(ctx context.Context, conn net.PacketConn, stats *protocol.Stats, handle HandlerFunc) error {
	buf := make([]byte, protocol.MaxPacketSize)

	stop := context.AfterFunc(ctx, func() {
		conn.Close()
	})
	defer stop()

	for {
		n, addr, err := conn.ReadFrom(buf)
		if n > 0 {
			stats.AddRcvd(n)
			handle(buf[:n], addr)
		}
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			return err
		}
	}
}

// SendLoop writes one packet per interval until ctx is done or next returns io.EOF
func SendLoop(ctx context.Context, w io.Writer, interval time.Duration, stats *protocol.Stats, next NextFunc) error {
	tick := time.NewTicker(interval)
	defer tick.Stop()

	for {
		pkt, err := next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		buf, err := protocol.SendPacket(w, pkt)
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			return err
		}
		stats.AddSent(len(buf))

		select {
		case <-ctx.Done():
			return nil
		case <-tick.C:
		}
	}
}

// Logger periodically logs packet and byte rates until ctx is done
func Logger(ctx context.Context, stats *protocol.Stats, interval time.Duration) {
	tick := time.NewTicker(interval)
	defer tick.Stop()
	t := time.Now()

	var lastPktsSent, lastPktsRcvd uint64
	var lastBytesSent, lastBytesRcvd uint64

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			pktsSent, pktsRcvd := stats.GetPacketsSent(), stats.GetPacketsRcvd()
			bytesSent, bytesRcvd := stats.GetBytesSent(), stats.GetBytesRcvd()

			now := time.Now()
			diffTime := now.Sub(t)
			t = now

			evt := log.Info()
			if pktsSent > lastPktsSent {
				evt = evt.Str("sent", utils.DisplayBPS(bytesSent-lastBytesSent, diffTime)).
					Str("sent_pps", utils.DisplayPPS(pktsSent-lastPktsSent, diffTime))
			}
			if pktsRcvd > lastPktsRcvd {
				evt = evt.Str("rcvd", utils.DisplayBPS(bytesRcvd-lastBytesRcvd, diffTime)).
					Str("rcvd_pps", utils.DisplayPPS(pktsRcvd-lastPktsRcvd, diffTime))
			}
			if dropped := stats.GetPacketsDropped(); dropped > 0 {
				evt = evt.Uint64("dropped", dropped)
			}
			evt.Msg("Throughput stats")

			lastPktsSent, lastPktsRcvd = pktsSent, pktsRcvd
			lastBytesSent, lastBytesRcvd = bytesSent, bytesRcvd
		}
	}
}
