package nhc

import "errors"

// Sentinel errors for the controller session.
// Wrap with fmt.Errorf("%w: ...") to add context.
var (
	// ErrNotConnected indicates the session to the controller is not active.
	ErrNotConnected = errors.New("nhc: not connected to controller")

	// ErrConnectionFailed indicates the TCP connection could not be established.
	ErrConnectionFailed = errors.New("nhc: connection to controller failed")

	// ErrHandshakeFailed indicates the controller did not complete the
	// session handshake (systeminfo, listactions, startevents).
	ErrHandshakeFailed = errors.New("nhc: session handshake failed")

	// ErrInvalidMessage indicates a malformed frame from the controller.
	ErrInvalidMessage = errors.New("nhc: invalid controller message")

	// ErrInvalidPrimitive indicates a command token outside the primitive set.
	ErrInvalidPrimitive = errors.New("nhc: invalid protocol primitive")

	// ErrControllerRejected indicates the controller answered a command with
	// a non-zero error code.
	ErrControllerRejected = errors.New("nhc: controller rejected command")

	// ErrSendFailed indicates a command could not be written to the session.
	ErrSendFailed = errors.New("nhc: sending command failed")

	// ErrClosed indicates the client has been closed.
	ErrClosed = errors.New("nhc: client closed")
)
