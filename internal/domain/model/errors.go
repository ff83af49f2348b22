package model

import "errors"

// Error kinds surfaced by the public API. Callers discriminate with
// errors.Is; ClientError additionally matches errors.As.
var (
	// ErrOverloaded: an admission permit was not acquired within
	// SemaphoreTimeout. The caller may retry later.
	ErrOverloaded = errors.New("too many concurrent requests")

	// ErrNoTarget: the resolved connection set is empty.
	ErrNoTarget = errors.New("no connected target")

	// ErrInactiveConnection: a single-connection target is not registered as
	// active.
	ErrInactiveConnection = errors.New("connection is not active")

	// ErrTimeout: no reply arrived before the request deadline.
	ErrTimeout = errors.New("request timed out")

	// ErrBlobMissing: a reply referenced a blob that could not be read.
	ErrBlobMissing = errors.New("response blob missing")

	// ErrDecodeFailed: the reply payload did not match the requested type.
	ErrDecodeFailed = errors.New("response decode failed")

	// ErrRequestIDCollision guards against request identifier reuse. Seeing
	// it means a bug, not a condition to retry.
	ErrRequestIDCollision = errors.New("request id already pending")

	// ErrStore wraps failures of the durable registry store. The in-progress
	// open/close is aborted; the registry stays consistent because writes
	// commit atomically.
	ErrStore = errors.New("registry store failure")
)

// ClientError carries a failure raised by the peer's Execute handler. It is a
// first-class outcome of an invocation, not a transport fault.
type ClientError struct {
	Message string
}

func (e *ClientError) Error() string {
	return "client error: " + e.Message
}
