package protocol

import (
	"fmt"
	"io"
)

// Packet is a decoded header followed by its payload
type Packet struct {
	Header
	Payload []byte // owned copy of everything after the header
}

// UnmarshalPacket decodes the header and copies the remaining bytes as payload
func UnmarshalPacket(data []byte) (*Packet, error) {
	header, err := UnmarshalHeader(data)
	if err != nil {
		return nil, err
	}

	pkt := Packet{
		Header:  *header,
		Payload: make([]byte, len(data)-HeaderSize),
	}
	copy(pkt.Payload, data[HeaderSize:])

	return &pkt, nil
}

// Marshal encodes header and payload into a single datagram
func (p *Packet) Marshal() ([]byte, error) {
	size := HeaderSize + len(p.Payload)
	if size > MaxPacketSize {
		return nil, fmt.Errorf("%w: %d bytes, max %d", ErrPacketTooLarge, size, MaxPacketSize)
	}

	buf := make([]byte, size)
	if err := p.Header.MarshalTo(buf); err != nil {
		return nil, err
	}
	copy(buf[HeaderSize:], p.Payload)
	return buf, nil
}

// SendPacket marshals pkt and writes it to w in a single call
func SendPacket(w io.Writer, pkt Marshaler) ([]byte, error) {
	buf, err := pkt.Marshal()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal packet: %w", err)
	}

	_, err = w.Write(buf)
	if err != nil {
		return nil, fmt.Errorf("failed to send packet: %w", err)
	}

	return buf, nil
}
