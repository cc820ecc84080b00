// Package logging provides structured logging for the Z21 driver.
//
// This package wraps zap with convenience functions for the logging
// patterns used throughout the driver. By default it is silent so the
// driver can be embedded in other programs without producing output;
// set Z21_LOG_LEVEL to enable it.
//
// # Log Levels
//
// The package supports standard log levels:
//   - Debug: wire-level detail (packet hex dumps, dropped datagrams)
//   - Info: session lifecycle (connect, handshake, close)
//   - Warn: non-fatal issues (keep-alive send failures, decode drops)
//   - Error: fatal issues
//
// # Structured Logging
//
// All log functions use structured fields:
//
//	logging.Info("session established",
//	    zap.String("station", "192.168.0.111:21105"),
//	)
//
// # Packet Logging
//
// LogPacket emits a debug-level hex dump of one datagram in either
// direction:
//
//	logging.LogPacket("send", header, payload)
//
// # Thread Safety
//
// All logging functions are safe for concurrent use.
package logging
