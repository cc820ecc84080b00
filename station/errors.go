package station

import "errors"

var (
	// ErrTimeout is returned when no matching packet arrives within the
	// configured deadline. The session itself stays usable; callers may
	// retry.
	ErrTimeout = errors.New("timeout waiting for response")

	// ErrClosed is returned for operations on a station whose session
	// has been torn down.
	ErrClosed = errors.New("station closed")

	// ErrCVNack is returned when the station rejects a CV operation.
	ErrCVNack = errors.New("cv operation not acknowledged")

	// ErrCVShortCircuit is returned when a CV operation fails because of
	// a short circuit on the programming track.
	ErrCVShortCircuit = errors.New("short circuit on programming track")
)
