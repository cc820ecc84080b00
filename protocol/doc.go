// Package protocol implements the Z21 LAN binary protocol.
//
// This package handles encoding, decoding and validation of the datagram
// formats spoken by Roco/Fleischmann Z21 command stations. It is pure:
// no I/O, no goroutines, and every function is safe for concurrent use.
//
// # Protocol Overview
//
// Every datagram is a length-prefixed packet (all multi-byte fields
// little-endian):
//   - Length: 2 bytes, counts the whole packet including itself
//   - Header: 2 bytes, command identifier
//   - Payload: variable length
//
// Packets with header 0x40 carry an X-Bus message in their payload, an
// inner checksummed format:
//   - X-Header: 1 byte
//   - Data bytes: variable length
//   - Checksum: 1 byte, XOR of the x-header and all data bytes
//
// # Message Types
//
// The decoders in this package cover:
//   - System state: 16-byte telemetry snapshots (currents, voltages,
//     temperature, status flags) sent in 0x84 packets
//   - Loco state: variable-length locomotive info (address, stepping,
//     speed, function outputs) sent as X-Bus 0xEF messages
//   - Drive and function bytes: the bit-packed command encodings for
//     locomotive speed and function control
//
// # Error Handling
//
// The package distinguishes between:
//   - Format errors: short packets or messages (ErrPacketTooShort,
//     ErrMessageTooShort)
//   - Validation errors: checksum mismatches, wrong fixed sizes or
//     reserved codings (ErrChecksumMismatch, ErrInvalidStateData)
//   - Input errors: caller-supplied values out of range, raised before
//     any I/O (ErrInvalidInput, ErrPayloadTooLarge)
//
// All errors wrap a sentinel and can be matched with errors.Is.
package protocol
