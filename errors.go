package docsmcp

import (
	"errors"
	"fmt"
)

var (
	// ErrProcessSpawn reports that the server process could not be started,
	// typically because the executable is missing. Fatal to Connect.
	ErrProcessSpawn = errors.New("failed to spawn server process")

	// ErrMalformedMessage reports a line that is not valid JSON-RPC 2.0:
	// invalid JSON, a missing jsonrpc field, a version mismatch, or a shape
	// that is neither request, notification nor response.
	ErrMalformedMessage = errors.New("malformed message")

	// ErrSessionNotReady is returned when an operation other than the
	// handshake is attempted before the session reaches Ready. The caller may
	// retry once Connect completes.
	ErrSessionNotReady = errors.New("session not ready")

	// ErrRequestTimeout is returned when a pending call's deadline elapses
	// before the matching response arrives. The pending entry is evicted; the
	// caller may reissue with a fresh id.
	ErrRequestTimeout = errors.New("request timeout")

	// ErrSessionClosed is terminal for the session. It is delivered to every
	// pending caller on Close and on unexpected process death, and returned
	// for operations attempted afterwards.
	ErrSessionClosed = errors.New("session closed")
)

// ToolCallError carries the remote error object returned by a tools/call
// request. It is recoverable: the session stays Ready.
type ToolCallError struct {
	Code    int
	Message string
}

func (e *ToolCallError) Error() string {
	return fmt.Sprintf("tool call failed, code: %d, message: %s", e.Code, e.Message)
}
