package protocol

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rawHeader() []byte {
	buf := []byte{
		'V', 'B', 'A', 'N',
		0x03,        // 48kHz, audio
		0x7f,        // 128 samples
		0x01,        // 2 channels
		0x08 | 0x01, // S16, PCM
	}
	name := make([]byte, StreamNameSize)
	copy(name, "Stream1")
	buf = append(buf, name...)
	return append(buf, 0x00, 0x00, 0x01, 0x02)
}

func testHeader(t *testing.T) Header {
	t.Helper()
	name, err := NewStreamName("DemoStream")
	require.NoError(t, err)
	return Header{
		SampleRate:    SampleRate44100,
		SubProtocol:   SubProtocolAudio,
		NumSamples:    256,
		NumChannels:   2,
		BitResolution: BitResolutionS24,
		Codec:         CodecPCM,
		StreamName:    name,
		FrameNumber:   0xdeadbeef,
	}
}

func TestUnmarshalHeader(t *testing.T) {
	h, err := UnmarshalHeader(rawHeader())
	require.NoError(t, err)

	assert.Equal(t, SampleRate48000, h.SampleRate)
	assert.Equal(t, 48000, h.SampleRate.Hz())
	assert.Equal(t, SubProtocolAudio, h.SubProtocol)
	assert.Equal(t, uint16(128), h.NumSamples)
	assert.Equal(t, uint16(2), h.NumChannels)
	assert.Equal(t, BitResolutionS16, h.BitResolution)
	assert.Equal(t, CodecPCM, h.Codec)
	assert.Equal(t, "Stream1", h.StreamName.String())
	assert.Equal(t, "Stream1\x00\x00\x00\x00\x00\x00\x00\x00\x00", h.Name())
	assert.Equal(t, uint32(0x0102), h.FrameNumber)
}

func TestUnmarshalHeaderMagic(t *testing.T) {
	for _, m := range []string{"vban", "VBAM", "\x00\x00\x00\x00", "NABV", "FLO\x00"} {
		t.Run(m, func(t *testing.T) {
			data := rawHeader()
			copy(data[0:4], m)
			_, err := UnmarshalHeader(data)
			assert.ErrorIs(t, err, ErrMissingMagicNumber)
		})
	}

	// remaining content does not matter
	data := bytes.Repeat([]byte{0xff}, 64)
	_, err := UnmarshalHeader(data)
	assert.ErrorIs(t, err, ErrMissingMagicNumber)
}

func TestUnmarshalHeaderReservedBit(t *testing.T) {
	data := rawHeader()
	data[7] = 0x00
	_, err := UnmarshalHeader(data)
	assert.ErrorIs(t, err, ErrMalformedFormat)

	data[7] = 0xf7 // everything but the reserved bit
	_, err = UnmarshalHeader(data)
	assert.ErrorIs(t, err, ErrMalformedFormat)
}

func TestUnmarshalHeaderBias(t *testing.T) {
	tests := []struct {
		name     string
		raw      byte
		expected uint16
	}{
		{"min", 0x00, 1},
		{"mid", 0x7f, 128},
		{"max", 0xff, 256},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := rawHeader()
			data[5] = tt.raw
			data[6] = tt.raw
			h, err := UnmarshalHeader(data)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, h.NumSamples)
			assert.Equal(t, tt.expected, h.NumChannels)
		})
	}
}

func TestUnmarshalHeaderSubProtocol(t *testing.T) {
	tests := []struct {
		raw         byte
		sampleRate  SampleRate
		subProtocol SubProtocol
	}{
		{0x03, SampleRate48000, SubProtocolAudio},
		{0x23, SampleRate48000, SubProtocolSerial},
		{0x50, SampleRate44100, SubProtocolText},
		{0x60, SampleRate6000, SubProtocolService},
		{0xe7, SampleRate8000, SubProtocolUser},
	}
	for _, tt := range tests {
		t.Run(tt.subProtocol.String(), func(t *testing.T) {
			data := rawHeader()
			data[4] = tt.raw
			h, err := UnmarshalHeader(data)
			require.NoError(t, err)
			assert.Equal(t, tt.sampleRate, h.SampleRate)
			assert.Equal(t, tt.subProtocol, h.SubProtocol)
		})
	}
}

func TestUnmarshalHeaderUnknownSampleRate(t *testing.T) {
	for code := byte(21); code < 32; code++ {
		data := rawHeader()
		data[4] = code
		h, err := UnmarshalHeader(data)
		assert.ErrorIs(t, err, ErrUnknownEnumValue, "code %d", code)
		assert.Nil(t, h)
	}
}

func TestUnmarshalHeaderCodec(t *testing.T) {
	data := rawHeader()
	data[7] = 0x08 | 0x10 | 0x04
	h, err := UnmarshalHeader(data)
	require.NoError(t, err)
	assert.Equal(t, CodecVBCA, h.Codec)
	assert.Equal(t, BitResolutionF32, h.BitResolution)

	data[7] = 0xff
	h, err = UnmarshalHeader(data)
	require.NoError(t, err)
	assert.Equal(t, CodecUser, h.Codec)
	assert.Equal(t, BitResolutionS10, h.BitResolution)
}

func TestUnmarshalHeaderTruncated(t *testing.T) {
	data := rawHeader()
	for n := 0; n < HeaderSize; n++ {
		_, err := UnmarshalHeader(data[:n])
		assert.ErrorIs(t, err, ErrTruncatedPacket, "length %d", n)
	}
	_, err := UnmarshalHeader(nil)
	assert.ErrorIs(t, err, ErrTruncatedPacket)
}

func TestUnmarshalHeaderLossyName(t *testing.T) {
	data := rawHeader()
	copy(data[8:24], []byte{'a', 0xff, 'b', 0xc3, 0x28, 0x80, 0, 0, 0, 0, 0, 0, 0, 0, 0, 'z'})
	h, err := UnmarshalHeader(data)
	require.NoError(t, err)

	name := h.Name()
	assert.Contains(t, name, "�")
	assert.Equal(t, "a�b�(�\x00\x00\x00\x00\x00\x00\x00\x00\x00z", name)
	assert.Equal(t, "a�b�(�\x00\x00\x00\x00\x00\x00\x00\x00\x00z", h.StreamName.String())
}

func TestStreamNameTextMaximalSubparts(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected string
	}{
		{"truncated 3-byte sequence", []byte{0xe2, 0x82, 'A'}, "\uFFFDA"},
		{"truncated 4-byte sequence", []byte{0xf0, 0x9f, 0x98, 'A'}, "\uFFFDA"},
		{"lone continuation bytes", []byte{0x80, 0x80, 'A'}, "\uFFFD\uFFFDA"},
		{"bad second byte after E0", []byte{0xe0, 0x80, 'A'}, "\uFFFD\uFFFDA"},
		{"surrogate range", []byte{0xed, 0xa0, 0x80, 'A'}, "\uFFFD\uFFFD\uFFFDA"},
		{"lead byte at end", []byte{'A', 0xe2}, "A\uFFFD"},
		{"never valid", []byte{0xc0, 0xff, 'A'}, "\uFFFD\uFFFDA"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var sn StreamName
			copy(sn[:], tt.input)
			assert.Equal(t, tt.expected, sn.String())
		})
	}
}

func TestHeaderRoundTrip(t *testing.T) {
	h := testHeader(t)

	buf, err := h.Marshal()
	require.NoError(t, err)
	require.Len(t, buf, HeaderSize)

	decoded, err := UnmarshalHeader(buf)
	require.NoError(t, err)
	assert.Equal(t, h, *decoded)
}

func TestHeaderRoundTripDropsSubProtocol(t *testing.T) {
	h := testHeader(t)
	h.SubProtocol = SubProtocolSerial

	buf, err := h.Marshal()
	require.NoError(t, err)
	assert.Equal(t, SampleRate44100.Code(), buf[4], "sub-protocol bits are not encoded")

	decoded, err := UnmarshalHeader(buf)
	require.NoError(t, err)
	assert.Equal(t, SubProtocolAudio, decoded.SubProtocol)

	// every other field survives
	decoded.SubProtocol = h.SubProtocol
	assert.Equal(t, h, *decoded)
}

func TestHeaderMarshalLayout(t *testing.T) {
	h := testHeader(t)
	h.NumSamples = 1
	h.NumChannels = 256
	h.Codec = CodecVBCV
	h.BitResolution = BitResolutionF64
	h.FrameNumber = 0x01020304

	buf, err := h.Marshal()
	require.NoError(t, err)

	assert.Equal(t, []byte("VBAN"), buf[0:4])
	assert.Equal(t, byte(16), buf[4])
	assert.Equal(t, byte(0x00), buf[5])
	assert.Equal(t, byte(0xff), buf[6])
	assert.Equal(t, byte(0x20|0x08|0x05), buf[7])
	assert.Equal(t, h.StreamName[:], buf[8:24])
	assert.Equal(t, []byte{0x01, 0x02, 0x03, 0x04}, buf[24:28])
}

func TestHeaderMarshalInvalidCounts(t *testing.T) {
	h := testHeader(t)
	h.NumSamples = 0
	_, err := h.Marshal()
	assert.ErrorIs(t, err, ErrInvalidSampleCount)

	h = testHeader(t)
	h.NumSamples = 257
	_, err = h.Marshal()
	assert.ErrorIs(t, err, ErrInvalidSampleCount)

	h = testHeader(t)
	h.NumChannels = 0
	_, err = h.Marshal()
	assert.ErrorIs(t, err, ErrInvalidChannelCount)

	h = testHeader(t)
	err = h.MarshalTo(make([]byte, HeaderSize-1))
	assert.ErrorIs(t, err, ErrTruncatedPacket)
}

func TestHeaderMarshalInvalidEnums(t *testing.T) {
	tests := []struct {
		name   string
		modify func(h *Header)
	}{
		{"reserved sample rate", func(h *Header) { h.SampleRate = SampleRate(25) }},
		{"sample rate past 5 bits", func(h *Header) { h.SampleRate = SampleRate(0x23) }},
		{"bit resolution past 3 bits", func(h *Header) { h.BitResolution = BitResolution(9) }},
		{"codec low nibble", func(h *Header) { h.Codec = Codec(0x05) }},
		{"codec with stray bits", func(h *Header) { h.Codec = Codec(0x18) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := testHeader(t)
			tt.modify(&h)

			buf, err := h.Marshal()
			assert.ErrorIs(t, err, ErrUnknownEnumValue)
			assert.Nil(t, buf)

			err = h.MarshalTo(make([]byte, HeaderSize))
			assert.ErrorIs(t, err, ErrUnknownEnumValue)
		})
	}
}

func TestStreamName(t *testing.T) {
	sn, err := NewStreamName("Stream1")
	require.NoError(t, err)
	assert.Equal(t, "Stream1", sn.String())
	assert.Equal(t, byte(0), sn[15])

	_, err = NewStreamName("0123456789abcdef")
	assert.NoError(t, err)

	_, err = NewStreamName("0123456789abcdefg")
	assert.ErrorIs(t, err, ErrInvalidStreamNameLength)

	_, err = StreamNameFromBytes([]byte("short"))
	assert.ErrorIs(t, err, ErrInvalidStreamNameLength)

	sn, err = StreamNameFromBytes([]byte("0123456789abcdef"))
	require.NoError(t, err)
	assert.Equal(t, "0123456789abcdef", sn.Text())
}

func TestExpectedPayloadSize(t *testing.T) {
	h := testHeader(t)
	size, ok := h.ExpectedPayloadSize()
	assert.True(t, ok)
	assert.Equal(t, 256*2*3, size)

	h.BitResolution = BitResolutionS12
	_, ok = h.ExpectedPayloadSize()
	assert.False(t, ok)

	h = testHeader(t)
	h.Codec = CodecVBCA
	_, ok = h.ExpectedPayloadSize()
	assert.False(t, ok)

	h = testHeader(t)
	h.SubProtocol = SubProtocolText
	_, ok = h.ExpectedPayloadSize()
	assert.False(t, ok)
}
