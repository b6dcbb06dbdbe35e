package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocket implements a Transport over a persistent socket connection,
// carrying one JSON message per text frame.
//
// Instances should be created using NewWebSocket.
type WebSocket struct {
	url    string
	dialer *websocket.Dialer
	logger *slog.Logger

	conn  *websocket.Conn
	reads chan wsRead

	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

// WebSocketOption represents the options for the WebSocket transport.
type WebSocketOption func(*WebSocket)

type wsRead struct {
	data []byte
	err  error
}

// WithWebSocketDialer sets a custom dialer, e.g. to configure TLS or
// handshake timeouts.
func WithWebSocketDialer(dialer *websocket.Dialer) WebSocketOption {
	return func(w *WebSocket) {
		w.dialer = dialer
	}
}

// NewWebSocket creates a WebSocket transport that connects to the
// specified url (ws:// or wss://).
func NewWebSocket(url string, options ...WebSocketOption) *WebSocket {
	w := &WebSocket{
		url:    url,
		dialer: websocket.DefaultDialer,
		logger: slog.Default(),
		reads:  make(chan wsRead),
		done:   make(chan struct{}),
	}

	for _, opt := range options {
		opt(w)
	}

	return w
}

// Open implements Transport. It dials the server and starts the read loop.
func (w *WebSocket) Open(ctx context.Context) error {
	conn, resp, err := w.dialer.DialContext(ctx, w.url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("failed to dial %q: %w", w.url, err)
	}

	w.conn = conn
	go w.readLoop()
	return nil
}

// Send implements Transport. Frame writes are serialized; the gorilla
// connection supports only one concurrent writer.
func (w *WebSocket) Send(ctx context.Context, data []byte) error {
	select {
	case <-w.done:
		return ErrTransportClosed
	default:
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Time{}
	}
	if err := w.conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("failed to set write deadline: %w", err)
	}

	if err := w.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}

// Receive implements Transport. It blocks until one frame arrives, the
// connection fails, or the transport is closed.
func (w *WebSocket) Receive(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-w.done:
		return nil, ErrTransportClosed
	case r := <-w.reads:
		return r.data, r.err
	}
}

// Close implements Transport. It attempts a close handshake, then tears the
// connection down, unblocking any pending Receive. Safe to call multiple
// times.
func (w *WebSocket) Close() error {
	w.closeOnce.Do(func() {
		close(w.done)
		if w.conn == nil {
			return
		}

		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		w.writeMu.Lock()
		if err := w.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)); err != nil {
			w.logger.Debug("failed to send close frame", "err", err)
		}
		w.writeMu.Unlock()

		if err := w.conn.Close(); err != nil {
			w.logger.Debug("failed to close connection", "err", err)
		}
	})
	return nil
}

func (w *WebSocket) readLoop() {
	for {
		_, data, err := w.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				err = ErrTransportClosed
			}
			select {
			case w.reads <- wsRead{err: err}:
			case <-w.done:
			}
			return
		}

		select {
		case w.reads <- wsRead{data: data}:
		case <-w.done:
			return
		}
	}
}
