package protocol

import "errors"

// Sentinel errors returned by the codecs. Callers can match them with
// errors.Is after any amount of wrapping.
var (
	// ErrPayloadTooLarge is returned when a payload does not fit the
	// 16-bit length field of the outer packet.
	ErrPayloadTooLarge = errors.New("packet payload too large")

	// ErrPacketTooShort is returned when a datagram is shorter than the
	// 4-byte packet header.
	ErrPacketTooShort = errors.New("packet too short")

	// ErrMessageTooShort is returned when an X-Bus message is shorter
	// than header plus checksum.
	ErrMessageTooShort = errors.New("x-bus message too short")

	// ErrChecksumMismatch is returned when the trailing XOR byte of an
	// X-Bus message disagrees with the recomputed checksum.
	ErrChecksumMismatch = errors.New("x-bus checksum mismatch")

	// ErrInvalidStateData is returned when a state payload has the wrong
	// size or carries a reserved field coding.
	ErrInvalidStateData = errors.New("invalid state data")

	// ErrInvalidInput is returned for caller-supplied values that are out
	// of range, before any wire I/O happens.
	ErrInvalidInput = errors.New("invalid input")
)
