package protocol

import "errors"

var (
	// Header decode errors
	ErrMissingMagicNumber = errors.New("missing VBAN magic number")
	ErrMalformedFormat    = errors.New("malformed format: reserved bit not set")
	ErrTruncatedPacket    = errors.New("truncated packet")
	ErrUnknownEnumValue   = errors.New("unknown enum value")

	// Header encode errors
	ErrInvalidStreamNameLength = errors.New("invalid stream name length")
	ErrInvalidSampleCount      = errors.New("invalid sample count")
	ErrInvalidChannelCount     = errors.New("invalid channel count")
	ErrPacketTooLarge          = errors.New("packet too large")
)
