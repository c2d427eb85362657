package shogun

import "errors"

// Domain-specific errors for Shogun Live session operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNotConnected is returned when an operation is attempted without
	// an established device session.
	ErrNotConnected = errors.New("shogun: not connected to Shogun Live")

	// ErrRejected is returned when the device API returned a falsy
	// result for a request. This is a rejection, not a transport
	// failure, and is never retried.
	ErrRejected = errors.New("shogun: device rejected the request")

	// ErrReconnectFailed is returned when a reconnect sequence exhausted
	// its attempt budget without re-establishing a session.
	ErrReconnectFailed = errors.New("shogun: reconnect failed")

	// ErrDescriptionUnsupported is returned when the connected API
	// version does not support setting the capture description.
	ErrDescriptionUnsupported = errors.New("shogun: capture description not supported by device API")
)
