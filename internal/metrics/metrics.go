// Package metrics provides Prometheus collectors for the VBAN receiver.
package metrics

import (
	"errors"

	"github.com/goodieshq/govban/internal/protocol"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "vban"

// Drop reasons used as the "reason" label of DroppedTotal
const (
	ReasonSource  = "source"
	ReasonMagic   = "magic"
	ReasonFormat  = "format"
	ReasonTrunc   = "truncated"
	ReasonEnum    = "unknown_enum"
	ReasonStream  = "stream_name"
	ReasonInvalid = "invalid"
	ReasonPayload = "payload_size"
)

// ReceiverMetrics holds the receiver collectors.
// All methods are nil-safe: calls on a nil *ReceiverMetrics are no-ops.
type ReceiverMetrics struct {
	PacketsTotal  *prometheus.CounterVec
	BytesTotal    *prometheus.CounterVec
	DroppedTotal  *prometheus.CounterVec
	LostFrames    *prometheus.CounterVec
	ReorderFrames *prometheus.CounterVec
	ActiveStreams prometheus.Gauge
}

// NewReceiverMetrics creates the collectors and registers them with reg.
// If reg is nil, metrics are created but not registered.
func NewReceiverMetrics(reg prometheus.Registerer) *ReceiverMetrics {
	m := &ReceiverMetrics{
		PacketsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "receiver",
			Name:      "packets_total",
			Help:      "Accepted VBAN packets by stream and sub-protocol",
		}, []string{"stream", "sub_protocol"}),
		BytesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "receiver",
			Name:      "payload_bytes_total",
			Help:      "Payload bytes of accepted VBAN packets by stream",
		}, []string{"stream"}),
		DroppedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "receiver",
			Name:      "dropped_total",
			Help:      "Datagrams discarded by the receiver, labeled by reason",
		}, []string{"reason"}),
		LostFrames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "receiver",
			Name:      "lost_frames_total",
			Help:      "Frames missing from the frame counter sequence by stream",
		}, []string{"stream"}),
		ReorderFrames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "receiver",
			Name:      "reordered_frames_total",
			Help:      "Frames that arrived with a counter at or below the last seen value",
		}, []string{"stream"}),
		ActiveStreams: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "receiver",
			Name:      "streams",
			Help:      "Number of streams currently tracked",
		}),
	}

	if reg != nil {
		collectors := []prometheus.Collector{
			m.PacketsTotal,
			m.BytesTotal,
			m.DroppedTotal,
			m.LostFrames,
			m.ReorderFrames,
			m.ActiveStreams,
		}
		for _, c := range collectors {
			if err := reg.Register(c); err != nil {
				var are prometheus.AlreadyRegisteredError
				if !errors.As(err, &are) {
					panic(err)
				}
			}
		}
	}

	return m
}

func (m *ReceiverMetrics) RecordPacket(stream string, sp protocol.SubProtocol, payloadBytes int) {
	if m == nil {
		return
	}
	m.PacketsTotal.WithLabelValues(stream, sp.String()).Inc()
	m.BytesTotal.WithLabelValues(stream).Add(float64(payloadBytes))
}

func (m *ReceiverMetrics) RecordDropped(reason string) {
	if m == nil {
		return
	}
	m.DroppedTotal.WithLabelValues(reason).Inc()
}

func (m *ReceiverMetrics) RecordLost(stream string, frames uint32) {
	if m == nil || frames == 0 {
		return
	}
	m.LostFrames.WithLabelValues(stream).Add(float64(frames))
}

func (m *ReceiverMetrics) RecordReordered(stream string) {
	if m == nil {
		return
	}
	m.ReorderFrames.WithLabelValues(stream).Inc()
}

func (m *ReceiverMetrics) SetStreams(n int) {
	if m == nil {
		return
	}
	m.ActiveStreams.Set(float64(n))
}

// ForgetStream removes every series labeled with stream
func (m *ReceiverMetrics) ForgetStream(stream string) {
	if m == nil {
		return
	}
	m.PacketsTotal.DeletePartialMatch(prometheus.Labels{"stream": stream})
	m.BytesTotal.DeleteLabelValues(stream)
	m.LostFrames.DeleteLabelValues(stream)
	m.ReorderFrames.DeleteLabelValues(stream)
}

// DropReason maps a decode error onto a drop reason label
func DropReason(err error) string {
	switch {
	case errors.Is(err, protocol.ErrMissingMagicNumber):
		return ReasonMagic
	case errors.Is(err, protocol.ErrMalformedFormat):
		return ReasonFormat
	case errors.Is(err, protocol.ErrTruncatedPacket):
		return ReasonTrunc
	case errors.Is(err, protocol.ErrUnknownEnumValue):
		return ReasonEnum
	default:
		return ReasonInvalid
	}
}
