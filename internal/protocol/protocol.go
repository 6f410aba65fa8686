package protocol

// 4-byte magic constant at the start of each packet
const MAGIC = "VBAN"

const (
	HeaderSize     = 28   // fixed size of every VBAN header
	MaxPacketSize  = 1464 // header + payload, sized to fit a single datagram
	MaxPayloadSize = MaxPacketSize - HeaderSize
	StreamNameSize = 16
	DefaultPort    = 6980
)

// bit layout of header bytes 4 and 7
const (
	maskSampleRate    = 0b00011111
	maskSubProtocol   = 0b11100000
	maskBitResolution = 0b00000111
	maskReserved      = 0b00001000
	maskCodec         = 0b11110000
)

// Anything that can be serialized into a single datagram
type Marshaler interface {
	Marshal() ([]byte, error)
}

var magic = [4]byte{MAGIC[0], MAGIC[1], MAGIC[2], MAGIC[3]}
