package mcp

import (
	"context"
	"encoding/json"
)

// Transport provides the byte-level communication layer between a Client
// and an MCP server. It carries one fully serialized message per exchange
// and has no knowledge of protocol semantics.
//
// Implementations must make Close idempotent and must unblock any pending
// Receive call when Close is invoked. Send may be called concurrently with
// Receive, but callers serialize Send calls themselves; the Client holds a
// send-side lock around every full message write.
type Transport interface {
	// Open establishes the underlying channel. For transports that own a
	// child process, Open spawns it; the process lifetime is tied to the
	// transport and Close terminates it if still running.
	Open(ctx context.Context) error

	// Send transmits one serialized message to the server.
	Send(ctx context.Context, data []byte) error

	// Receive blocks until one full message is available, the peer closes,
	// or an I/O error occurs. It never returns a partial message. After
	// Close, Receive returns ErrTransportClosed or the underlying read
	// error.
	Receive(ctx context.Context) ([]byte, error)

	// Close releases the underlying OS resources. It is safe to call
	// multiple times.
	Close() error
}

// NotificationHandler receives server-initiated notifications. It is
// invoked synchronously from the session's dispatch loop, in the order
// notifications arrive on the wire, so implementations must not block.
type NotificationHandler func(method string, params json.RawMessage)

// SessionState describes the lifecycle position of a Client session.
type SessionState int32

// Session lifecycle states. Failed is terminal and reachable from any
// non-terminal state; Closed is the normal terminal state.
const (
	StateDisconnected SessionState = iota
	StateConnecting
	StateNegotiating
	StateReady
	StateClosing
	StateClosed
	StateFailed
)

func (s SessionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateNegotiating:
		return "negotiating"
	case StateReady:
		return "ready"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
