package protocol

import (
	"encoding/binary"
	"fmt"
)

// headerSize is the fixed prefix of every packet: 2-byte length plus
// 2-byte header. The length field counts the prefix itself.
const headerSize = 4

// Packet is the outer envelope of every Z21 datagram.
//
//	[0-1]  length  (little-endian, includes the 4 header bytes)
//	[2-3]  header  (little-endian command identifier)
//	[4+]   payload
type Packet struct {
	Length  uint16
	Header  uint16
	Payload []byte
}

// NewPacket builds a packet for the given header and payload, computing
// the length field. It fails if the payload does not fit the 16-bit
// length field.
func NewPacket(header uint16, payload []byte) (Packet, error) {
	if len(payload)+headerSize > 0xFFFF {
		return Packet{}, fmt.Errorf("%w: %d payload bytes", ErrPayloadTooLarge, len(payload))
	}
	return Packet{
		Length:  uint16(len(payload) + headerSize),
		Header:  header,
		Payload: payload,
	}, nil
}

// Encode serializes the packet for transmission.
func (p Packet) Encode() []byte {
	buf := make([]byte, headerSize+len(p.Payload))
	binary.LittleEndian.PutUint16(buf[0:2], p.Length)
	binary.LittleEndian.PutUint16(buf[2:4], p.Header)
	copy(buf[headerSize:], p.Payload)
	return buf
}

// DecodePacket parses a received datagram. The packet layer is
// format-only: apart from the minimum length no validation happens here.
func DecodePacket(data []byte) (Packet, error) {
	if len(data) < headerSize {
		return Packet{}, fmt.Errorf("%w: %d bytes", ErrPacketTooShort, len(data))
	}
	return Packet{
		Length:  binary.LittleEndian.Uint16(data[0:2]),
		Header:  binary.LittleEndian.Uint16(data[2:4]),
		Payload: data[headerSize:],
	}, nil
}

// String returns a debug representation of the packet.
func (p Packet) String() string {
	return fmt.Sprintf("Packet{header=0x%04x, len=%d}", p.Header, p.Length)
}
