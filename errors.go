package mcp

import (
	"errors"
	"fmt"
)

// Sentinel errors reported by the session engine. Every outstanding call
// resolves to exactly one terminal value: a result, a *RequestError, or a
// wrapped sentinel from this set. Test with errors.Is.
var (
	// ErrNotConnected is returned when an operation is attempted while the
	// session is not in the ready state. No network activity occurs.
	ErrNotConnected = errors.New("session not connected")

	// ErrSessionClosed resolves calls that were still pending when Close
	// was invoked.
	ErrSessionClosed = errors.New("session closed")

	// ErrConnectionLost resolves calls that were still pending when the
	// transport failed or the peer disconnected.
	ErrConnectionLost = errors.New("connection lost")

	// ErrCancelled resolves a call that was explicitly cancelled via its
	// context before a response arrived.
	ErrCancelled = errors.New("request cancelled")

	// ErrRequestTimeout resolves a call whose client-side deadline elapsed.
	// The server is not notified; a late response is silently discarded.
	ErrRequestTimeout = errors.New("request timed out")

	// ErrTransportClosed is returned by Transport.Receive after Close.
	ErrTransportClosed = errors.New("transport closed")

	// ErrToolNotFound wraps a RequestError whose server error code
	// indicates the named tool does not exist.
	ErrToolNotFound = errors.New("tool not found")

	// ErrInvalidArguments wraps a RequestError whose server error code
	// indicates the tool arguments were rejected.
	ErrInvalidArguments = errors.New("invalid arguments")

	// ErrResourceNotFound wraps a RequestError whose server error code
	// indicates the requested resource URI does not exist.
	ErrResourceNotFound = errors.New("resource not found")

	// ErrPromptNotFound wraps a RequestError whose server error code
	// indicates the named prompt does not exist.
	ErrPromptNotFound = errors.New("prompt not found")
)

// ConnectError reports a failure to establish a session: the transport was
// unreachable, or the handshake failed, was malformed, or timed out.
type ConnectError struct {
	// Stage names the phase that failed, "open" or "handshake".
	Stage string
	Err   error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect failed during %s: %v", e.Stage, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// DecodeError reports a malformed inbound message. It carries the raw
// fragment for diagnostics. A single decode failure does not terminate the
// session; the dispatch loop logs it and keeps reading.
type DecodeError struct {
	Raw []byte
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode message %q: %v", e.Raw, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// RequestError reports a structured error the server returned for a
// specific call, with the server-provided code and message plus the method
// and request id for context. When the code identifies a well-known
// condition, errors.Is also matches the corresponding sentinel
// (ErrToolNotFound, ErrResourceNotFound, ErrPromptNotFound,
// ErrInvalidArguments).
type RequestError struct {
	Code    int
	Message string
	Data    map[string]any

	Method string
	ID     string

	kind error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s: server error code %d: %s", e.Method, e.Code, e.Message)
}

func (e *RequestError) Unwrap() error { return e.kind }
