package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
	"unicode/utf8"
)

var be = binary.BigEndian

// Fixed-width stream name field, not null-terminated on the wire
type StreamName [StreamNameSize]byte

// NewStreamName zero-pads name to 16 bytes. Names longer than 16 bytes are rejected.
func NewStreamName(name string) (StreamName, error) {
	var sn StreamName
	if len(name) > StreamNameSize {
		return sn, fmt.Errorf("%w: %d bytes, max %d", ErrInvalidStreamNameLength, len(name), StreamNameSize)
	}
	copy(sn[:], name)
	return sn, nil
}

// StreamNameFromBytes requires exactly 16 bytes
func StreamNameFromBytes(b []byte) (StreamName, error) {
	var sn StreamName
	if len(b) != StreamNameSize {
		return sn, fmt.Errorf("%w: %d bytes, want %d", ErrInvalidStreamNameLength, len(b), StreamNameSize)
	}
	copy(sn[:], b)
	return sn, nil
}

// Text decodes all 16 bytes. Each maximal invalid UTF-8 subsequence becomes
// a single U+FFFD, so a truncated multi-byte sequence yields one replacement.
func (sn StreamName) Text() string {
	b := sn[:]
	if utf8.Valid(b) {
		return string(b)
	}

	var sb strings.Builder
	sb.Grow(len(b) + 8)
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		if r == utf8.RuneError && size == 1 {
			size = invalidPrefixLen(b)
		}
		sb.WriteRune(r)
		b = b[size:]
	}
	return sb.String()
}

// invalidPrefixLen returns how many bytes of b, which starts with an invalid
// sequence, belong to the longest prefix of a well-formed sequence (at least 1)
func invalidPrefixLen(b []byte) int {
	lo, hi := byte(0x80), byte(0xbf)
	var n int
	switch c := b[0]; {
	case c >= 0xc2 && c <= 0xdf:
		n = 2
	case c == 0xe0:
		n, lo = 3, 0xa0
	case c == 0xed:
		n, hi = 3, 0x9f
	case c >= 0xe1 && c <= 0xef:
		n = 3
	case c == 0xf0:
		n, lo = 4, 0x90
	case c >= 0xf1 && c <= 0xf3:
		n = 4
	case c == 0xf4:
		n, hi = 4, 0x8f
	default:
		return 1
	}

	if len(b) < 2 || b[1] < lo || b[1] > hi {
		return 1
	}
	i := 2
	for i < n && i < len(b) && b[i] >= 0x80 && b[i] <= 0xbf {
		i++
	}
	return i
}

// String is Text without the trailing NUL padding
func (sn StreamName) String() string {
	return strings.TrimRight(sn.Text(), "\x00")
}

// Header is the 28-byte prefix of every VBAN packet
type Header struct {
	SampleRate    SampleRate    // byte 4, bits 0-4
	SubProtocol   SubProtocol   // byte 4, bits 5-7
	NumSamples    uint16        // samples per frame, 1-256
	NumChannels   uint16        // channel count, 1-256
	BitResolution BitResolution // byte 7, bits 0-2
	Codec         Codec         // byte 7, bits 4-7
	StreamName    StreamName    // bytes 8-23
	FrameNumber   uint32        // advisory frame counter
}

// Name returns the stream name field as text. Never fails.
func (h *Header) Name() string {
	return h.StreamName.Text()
}

// ExpectedPayloadSize returns the payload length implied by the header for
// byte-aligned PCM audio. ok is false for every other kind of packet.
func (h *Header) ExpectedPayloadSize() (size int, ok bool) {
	if h.SubProtocol != SubProtocolAudio || h.Codec != CodecPCM {
		return 0, false
	}
	sampleSize := h.BitResolution.SampleSize()
	if sampleSize == 0 {
		return 0, false
	}
	return int(h.NumSamples) * int(h.NumChannels) * sampleSize, true
}

// UnmarshalHeader parses the first 28 bytes of data into a Header
func UnmarshalHeader(data []byte) (*Header, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("%w: %d bytes, need %d", ErrTruncatedPacket, len(data), HeaderSize)
	}

	if !bytes.Equal(data[0:4], magic[:]) {
		return nil, ErrMissingMagicNumber
	}

	var header Header
	var err error

	header.SampleRate, err = SampleRateFromCode(data[4] & maskSampleRate)
	if err != nil {
		return nil, err
	}
	header.SubProtocol, err = SubProtocolFromCode(data[4] & maskSubProtocol)
	if err != nil {
		return nil, err
	}

	header.NumSamples = uint16(data[5]) + 1
	header.NumChannels = uint16(data[6]) + 1

	if data[7]&maskReserved == 0 {
		return nil, ErrMalformedFormat
	}
	header.BitResolution, err = BitResolutionFromCode(data[7] & maskBitResolution)
	if err != nil {
		return nil, err
	}
	header.Codec, err = CodecFromCode(data[7] & maskCodec)
	if err != nil {
		return nil, err
	}

	copy(header.StreamName[:], data[8:24])
	header.FrameNumber = be.Uint32(data[24:28])

	return &header, nil
}

// Marshal encodes the header into exactly 28 bytes.
//
// Only the sample rate is written to byte 4: the sub-protocol bits are left
// at zero, so a non-audio header decodes back as SubProtocolAudio.
func (h *Header) Marshal() ([]byte, error) {
	buf := make([]byte, HeaderSize)
	if err := h.MarshalTo(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// MarshalTo writes the header into the first 28 bytes of buf
func (h *Header) MarshalTo(buf []byte) error {
	if len(buf) < HeaderSize {
		return fmt.Errorf("%w: buffer of %d bytes, need %d", ErrTruncatedPacket, len(buf), HeaderSize)
	}
	if h.NumSamples < 1 || h.NumSamples > 256 {
		return fmt.Errorf("%w: %d", ErrInvalidSampleCount, h.NumSamples)
	}
	if h.NumChannels < 1 || h.NumChannels > 256 {
		return fmt.Errorf("%w: %d", ErrInvalidChannelCount, h.NumChannels)
	}
	if _, err := SampleRateFromCode(h.SampleRate.Code()); err != nil {
		return err
	}
	if _, err := BitResolutionFromCode(h.BitResolution.Code()); err != nil {
		return err
	}
	if _, err := CodecFromCode(h.Codec.Code()); err != nil {
		return err
	}

	copy(buf[0:4], magic[:])
	buf[4] = h.SampleRate.Code()
	buf[5] = byte(h.NumSamples - 1)
	buf[6] = byte(h.NumChannels - 1)
	buf[7] = maskReserved | h.BitResolution.Code() | h.Codec.Code()
	copy(buf[8:24], h.StreamName[:])
	be.PutUint32(buf[24:28], h.FrameNumber)
	return nil
}
