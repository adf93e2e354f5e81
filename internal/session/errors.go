package session

import "errors"

// Sentinel errors for session failures. Wrap with fmt.Errorf("%w") to add
// context; match with errors.Is.
var (
	// ErrNotConnected is returned when an operation needs an established
	// session and there is none.
	ErrNotConnected = errors.New("session: not connected")

	// ErrHandshakeFailed is returned when the server rejects the
	// handshake or closes before answering it.
	ErrHandshakeFailed = errors.New("session: handshake failed")

	// ErrRequestTimeout resolves a pending request whose response did not
	// arrive within the request timeout.
	ErrRequestTimeout = errors.New("session: request timed out")

	// ErrConnectionClosed resolves every pending request when the
	// connection is torn down.
	ErrConnectionClosed = errors.New("session: connection closed")

	// ErrAlreadyPending is returned when a request id is registered
	// twice.
	ErrAlreadyPending = errors.New("session: request id already pending")
)
