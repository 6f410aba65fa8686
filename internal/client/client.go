package client

import (
	"context"
	"time"

	"github.com/goodieshq/govban/internal/protocol"
	"github.com/goodieshq/govban/internal/utils"
)

const (
	DEFAULT_STREAM_NAME       = "Stream1"
	DEFAULT_SAMPLE_RATE       = protocol.SampleRate48000
	DEFAULT_CHANNELS          = 2
	DEFAULT_SAMPLES_PER_FRAME = 256
	DEFAULT_DURATION          = 10 * time.Second
	DEFAULT_TONE_HZ           = 0 // silence
	DEFAULT_AMPLITUDE         = 0.25
)

type RunOpts struct {
	StreamName      *string
	SampleRate      *protocol.SampleRate
	Channels        *uint16
	SamplesPerFrame *uint16
	Duration        *time.Duration // 0 runs until the context is cancelled
	ToneHz          *float64
	MaxFrames       *uint32 // 0 is unlimited
	StatsInterval   *time.Duration
}

func (r RunOpts) GetStreamName() string {
	return utils.DefaultIfNil(r.StreamName, DEFAULT_STREAM_NAME)
}

func (r RunOpts) GetSampleRate() protocol.SampleRate {
	return utils.DefaultIfNil(r.SampleRate, DEFAULT_SAMPLE_RATE)
}

func (r RunOpts) GetChannels() uint16 {
	return utils.DefaultIfNil(r.Channels, DEFAULT_CHANNELS)
}

func (r RunOpts) GetSamplesPerFrame() uint16 {
	return utils.DefaultIfNil(r.SamplesPerFrame, DEFAULT_SAMPLES_PER_FRAME)
}

func (r RunOpts) GetDuration() time.Duration {
	return utils.DefaultIfNil(r.Duration, DEFAULT_DURATION)
}

func (r RunOpts) GetToneHz() float64 {
	return utils.DefaultIfNil(r.ToneHz, DEFAULT_TONE_HZ)
}

func (r RunOpts) GetMaxFrames() uint32 {
	return utils.DefaultIfNil(r.MaxFrames, 0)
}

func (r RunOpts) GetStatsInterval() time.Duration {
	return utils.DefaultIfNil(r.StatsInterval, 0)
}

// FrameInterval is the playback time covered by one packet
func (r RunOpts) FrameInterval() time.Duration {
	hz := r.GetSampleRate().Hz()
	if hz == 0 {
		return 0
	}
	return time.Duration(r.GetSamplesPerFrame()) * time.Second / time.Duration(hz)
}

type Client interface {
	Run(ctx context.Context, opts RunOpts) error
}
