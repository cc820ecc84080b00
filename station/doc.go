// Package station drives a Z21 DCC command station over UDP.
//
// A Station owns the socket and a single receive goroutine that decodes
// every datagram and republishes it on an internal fan-out hub. Request
// correlation and long-lived subscriptions are independent consumers of
// that hub: each one sees its own copy of the full packet stream, so
// two concurrent requests for the same reply header never steal each
// other's answer.
//
// # Session Lifecycle
//
// Connect binds an ephemeral local port, associates the station's
// address, performs the system-state handshake and starts the
// keep-alive task that re-arms the station's broadcast filter every ten
// seconds. Logout (or Close) tears the session down deterministically:
// background goroutines are joined before the call returns.
//
//	st, err := station.Connect("192.168.0.111:21105")
//	if err != nil {
//	    return err
//	}
//	defer st.Logout()
//
//	serial, err := st.SerialNumber(ctx)
//
// # Locomotive Control
//
// Control takes control of one locomotive and validates that the
// station answers for its address:
//
//	loco, err := station.Control(ctx, st, 3)
//	if err != nil {
//	    return err
//	}
//	loco.SetHeadlights(ctx, true)
//	loco.Drive(ctx, 50)   // 50% forward
//	loco.Stop(ctx)
//
// # Error Handling
//
// Request-response calls return ErrTimeout when no matching reply
// arrives in time; the session stays usable and callers may retry.
// Errors inside long-lived subscription loops are swallowed, because
// the underlying events repeat. Construction errors (handshake timeout,
// bind failure) abort Connect entirely: no partially initialized
// session is ever returned.
package station
