package protocol

import "fmt"

// Sample rate index, stored in the low 5 bits of header byte 4
type SampleRate uint8

const (
	SampleRate6000   SampleRate = 0
	SampleRate12000  SampleRate = 1
	SampleRate24000  SampleRate = 2
	SampleRate48000  SampleRate = 3
	SampleRate96000  SampleRate = 4
	SampleRate192000 SampleRate = 5
	SampleRate384000 SampleRate = 6
	SampleRate8000   SampleRate = 7
	SampleRate16000  SampleRate = 8
	SampleRate32000  SampleRate = 9
	SampleRate64000  SampleRate = 10
	SampleRate128000 SampleRate = 11
	SampleRate256000 SampleRate = 12
	SampleRate512000 SampleRate = 13
	SampleRate11025  SampleRate = 14
	SampleRate22050  SampleRate = 15
	SampleRate44100  SampleRate = 16
	SampleRate88200  SampleRate = 17
	SampleRate176400 SampleRate = 18
	SampleRate352800 SampleRate = 19
	SampleRate705600 SampleRate = 20
)

// indexed by code, the table is not ordered by frequency
var sampleRateHz = [...]int{
	6000, 12000, 24000, 48000, 96000, 192000, 384000,
	8000, 16000, 32000, 64000, 128000, 256000, 512000,
	11025, 22050, 44100, 88200, 176400, 352800, 705600,
}

// SampleRateFromCode maps a 5-bit sample rate code to its SampleRate.
// Codes past the end of the table are reserved and rejected.
func SampleRateFromCode(code uint8) (SampleRate, error) {
	if int(code) >= len(sampleRateHz) {
		return 0, fmt.Errorf("%w: sample rate code %d", ErrUnknownEnumValue, code)
	}
	return SampleRate(code), nil
}

// SampleRateFromHz finds the SampleRate for a frequency in Hz
func SampleRateFromHz(hz int) (SampleRate, error) {
	for code, v := range sampleRateHz {
		if v == hz {
			return SampleRate(code), nil
		}
	}
	return 0, fmt.Errorf("%w: sample rate %d Hz", ErrUnknownEnumValue, hz)
}

func (sr SampleRate) Code() uint8 {
	return uint8(sr)
}

// Hz returns the frequency, or 0 for an unmapped code
func (sr SampleRate) Hz() int {
	if int(sr) >= len(sampleRateHz) {
		return 0
	}
	return sampleRateHz[sr]
}

func (sr SampleRate) String() string {
	if hz := sr.Hz(); hz > 0 {
		return fmt.Sprintf("%dHz", hz)
	}
	return fmt.Sprintf("SampleRate(%d)", uint8(sr))
}

// Kind of payload carried by the packet, stored in the high 3 bits of header byte 4
type SubProtocol uint8

const (
	SubProtocolAudio      SubProtocol = 0x00
	SubProtocolSerial     SubProtocol = 0x20
	SubProtocolText       SubProtocol = 0x40
	SubProtocolService    SubProtocol = 0x60
	SubProtocolUndefined1 SubProtocol = 0x80
	SubProtocolUndefined2 SubProtocol = 0xa0
	SubProtocolUndefined3 SubProtocol = 0xc0
	SubProtocolUser       SubProtocol = 0xe0
)

// SubProtocolFromCode expects the masked value (bits 5-7 in place, e.g. 0x20)
func SubProtocolFromCode(code uint8) (SubProtocol, error) {
	switch sp := SubProtocol(code); sp {
	case SubProtocolAudio, SubProtocolSerial, SubProtocolText, SubProtocolService,
		SubProtocolUndefined1, SubProtocolUndefined2, SubProtocolUndefined3, SubProtocolUser:
		return sp, nil
	}
	return 0, fmt.Errorf("%w: sub-protocol code 0x%02x", ErrUnknownEnumValue, code)
}

func (sp SubProtocol) Code() uint8 {
	return uint8(sp)
}

func (sp SubProtocol) String() string {
	switch sp {
	case SubProtocolAudio:
		return "AUDIO"
	case SubProtocolSerial:
		return "SERIAL"
	case SubProtocolText:
		return "TEXT"
	case SubProtocolService:
		return "SERVICE"
	case SubProtocolUndefined1:
		return "UNDEFINED1"
	case SubProtocolUndefined2:
		return "UNDEFINED2"
	case SubProtocolUndefined3:
		return "UNDEFINED3"
	case SubProtocolUser:
		return "USER"
	default:
		return fmt.Sprintf("SubProtocol(0x%02x)", uint8(sp))
	}
}

// Sample format, stored in the low 3 bits of header byte 7
type BitResolution uint8

const (
	BitResolutionU8  BitResolution = 0 // unsigned 8 bit
	BitResolutionS16 BitResolution = 1 // signed 16 bit
	BitResolutionS24 BitResolution = 2 // signed 24 bit
	BitResolutionS32 BitResolution = 3 // signed 32 bit
	BitResolutionF32 BitResolution = 4 // 32 bit float
	BitResolutionF64 BitResolution = 5 // 64 bit float
	BitResolutionS12 BitResolution = 6 // signed 12 bit, packed
	BitResolutionS10 BitResolution = 7 // signed 10 bit, packed
)

var bitResolutionNames = [...]string{"U8", "S16", "S24", "S32", "F32", "F64", "S12", "S10"}

// bytes per sample, 0 for the packed formats
var bitResolutionSizes = [...]int{1, 2, 3, 4, 4, 8, 0, 0}

func BitResolutionFromCode(code uint8) (BitResolution, error) {
	if int(code) >= len(bitResolutionNames) {
		return 0, fmt.Errorf("%w: bit resolution code %d", ErrUnknownEnumValue, code)
	}
	return BitResolution(code), nil
}

func (br BitResolution) Code() uint8 {
	return uint8(br)
}

// SampleSize returns the number of bytes per sample. Packed formats are not
// byte aligned and report 0.
func (br BitResolution) SampleSize() int {
	if int(br) >= len(bitResolutionSizes) {
		return 0
	}
	return bitResolutionSizes[br]
}

func (br BitResolution) String() string {
	if int(br) >= len(bitResolutionNames) {
		return fmt.Sprintf("BitResolution(%d)", uint8(br))
	}
	return bitResolutionNames[br]
}

// Payload encoding, stored in the high 4 bits of header byte 7
type Codec uint8

const (
	CodecPCM         Codec = 0x00
	CodecVBCA        Codec = 0x10 // VB-Audio AOIP codec
	CodecVBCV        Codec = 0x20 // VB-Audio voice codec
	CodecUndefined1  Codec = 0x30
	CodecUndefined2  Codec = 0x40
	CodecUndefined3  Codec = 0x50
	CodecUndefined4  Codec = 0x60
	CodecUndefined5  Codec = 0x70
	CodecUndefined6  Codec = 0x80
	CodecUndefined7  Codec = 0x90
	CodecUndefined8  Codec = 0xa0
	CodecUndefined9  Codec = 0xb0
	CodecUndefined10 Codec = 0xc0
	CodecUndefined11 Codec = 0xd0
	CodecUndefined12 Codec = 0xe0
	CodecUser        Codec = 0xf0
)

// CodecFromCode expects the masked value (bits 4-7 in place, e.g. 0x10)
func CodecFromCode(code uint8) (Codec, error) {
	if code&^maskCodec != 0 {
		return 0, fmt.Errorf("%w: codec code 0x%02x", ErrUnknownEnumValue, code)
	}
	return Codec(code), nil
}

func (c Codec) Code() uint8 {
	return uint8(c)
}

func (c Codec) String() string {
	switch c {
	case CodecPCM:
		return "PCM"
	case CodecVBCA:
		return "VBCA"
	case CodecVBCV:
		return "VBCV"
	case CodecUser:
		return "USER"
	}
	if uint8(c)&^maskCodec == 0 {
		return fmt.Sprintf("UNDEFINED%d", uint8(c)>>4-2)
	}
	return fmt.Sprintf("Codec(0x%02x)", uint8(c))
}
