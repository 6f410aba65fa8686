package client

import (
	"encoding/binary"
	"math"
)

// Generates interleaved little-endian S16 PCM. A zero frequency yields silence.
// The phase carries over between frames so consecutive packets join without clicks.
type toneGenerator struct {
	freq      float64
	amplitude float64
	rate      float64
	channels  int
	phase     float64
}

func newToneGenerator(freq float64, sampleRate int, channels int) *toneGenerator {
	return &toneGenerator{
		freq:      freq,
		amplitude: DEFAULT_AMPLITUDE,
		rate:      float64(sampleRate),
		channels:  channels,
	}
}

// frameSize is the payload length of one frame of n samples
func (g *toneGenerator) frameSize(n int) int {
	return n * g.channels * 2
}

// fill writes n samples per channel into a new buffer
func (g *toneGenerator) fill(n int) []byte {
	buf := make([]byte, g.frameSize(n))
	if g.freq == 0 {
		return buf
	}

	step := 2 * math.Pi * g.freq / g.rate
	off := 0
	for i := 0; i < n; i++ {
		v := int16(math.Sin(g.phase) * g.amplitude * math.MaxInt16)
		for c := 0; c < g.channels; c++ {
			binary.LittleEndian.PutUint16(buf[off:], uint16(v))
			off += 2
		}
		g.phase += step
		if g.phase >= 2*math.Pi {
			g.phase -= 2 * math.Pi
		}
	}
	return buf
}
