package protocol

import "fmt"

// XBusMessage is the inner command format carried inside HeaderXBus
// packets:
//
//	[0]    x-header
//	[1..n] data bytes
//	[n+1]  checksum (XOR of x-header and all data bytes)
//
// Every message is self-validating; DecodeXBus rejects any message whose
// trailing byte disagrees with the recomputed checksum.
type XBusMessage struct {
	Header byte
	Data   []byte
}

// NewXBusMessage builds a message from a header and any number of data
// bytes. Construction always succeeds; the checksum is computed on
// encode.
func NewXBusMessage(header byte, data ...byte) XBusMessage {
	return XBusMessage{Header: header, Data: data}
}

// Checksum returns the XOR fold over the header and all data bytes.
func (m XBusMessage) Checksum() byte {
	sum := m.Header
	for _, b := range m.Data {
		sum ^= b
	}
	return sum
}

// Encode serializes the message with its trailing checksum byte.
func (m XBusMessage) Encode() []byte {
	buf := make([]byte, 0, len(m.Data)+2)
	buf = append(buf, m.Header)
	buf = append(buf, m.Data...)
	return append(buf, m.Checksum())
}

// DecodeXBus parses and validates an X-Bus message. It fails if fewer
// than two bytes are supplied (header plus checksum) or if the checksum
// does not match.
func DecodeXBus(data []byte) (XBusMessage, error) {
	if len(data) < 2 {
		return XBusMessage{}, fmt.Errorf("%w: %d bytes", ErrMessageTooShort, len(data))
	}
	msg := XBusMessage{
		Header: data[0],
		Data:   data[1 : len(data)-1],
	}
	if got, want := data[len(data)-1], msg.Checksum(); got != want {
		return XBusMessage{}, fmt.Errorf("%w: got 0x%02x, want 0x%02x", ErrChecksumMismatch, got, want)
	}
	return msg, nil
}

// String returns a debug representation of the message.
func (m XBusMessage) String() string {
	return fmt.Sprintf("XBus{header=0x%02x, data=% x}", m.Header, m.Data)
}
