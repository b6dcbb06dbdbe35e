package mcp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"

	"github.com/tmaxmax/go-sse"
)

// SSE implements a Transport over HTTP: server-to-client messages arrive on
// a hanging GET carrying a Server-Sent Events stream, and client-to-server
// messages are POSTed to the endpoint URL the server announces as the first
// event on that stream.
//
// Instances should be created using NewSSE.
type SSE struct {
	connectURL string
	messageURL string
	httpClient *http.Client
	logger     *slog.Logger

	maxPayloadSize int

	cancel context.CancelFunc
	reads  chan sseRead

	closeOnce sync.Once
	done      chan struct{}
}

// SSEOption represents the options for the SSE transport.
type SSEOption func(*SSE)

type sseRead struct {
	data []byte
	err  error
}

// WithSSEMaxPayloadSize sets the maximum size of a single event payload
// received from the server. Oversized events fail the stream.
func WithSSEMaxPayloadSize(size int) SSEOption {
	return func(s *SSE) {
		s.maxPayloadSize = size
	}
}

// NewSSE creates an SSE transport that connects to the specified
// connectURL. The optional httpClient parameter allows custom HTTP client
// configuration - if nil, the default HTTP client is used.
func NewSSE(connectURL string, httpClient *http.Client, options ...SSEOption) *SSE {
	cli := httpClient
	if cli == nil {
		cli = http.DefaultClient
	}
	s := &SSE{
		connectURL: connectURL,
		httpClient: cli,
		logger:     slog.Default(),
		reads:      make(chan sseRead),
		done:       make(chan struct{}),
	}

	for _, opt := range options {
		opt(s)
	}

	return s
}

// Open implements Transport. It issues the hanging GET, starts consuming
// the event stream, and waits for the server to announce the message
// endpoint before returning.
func (s *SSE) Open(ctx context.Context) error {
	// The stream must outlive ctx, which only bounds Open itself; the
	// request context is cancelled by Close instead.
	reqCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, s.connectURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to SSE server: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	ready := make(chan error, 1)
	go s.listenSSEMessages(resp.Body, ready)

	select {
	case <-ctx.Done():
		cancel()
		return fmt.Errorf("no endpoint event: %w", ctx.Err())
	case err := <-ready:
		if err != nil {
			cancel()
			return err
		}
	}

	return nil
}

// Send implements Transport. It transmits one message to the announced
// endpoint through an HTTP POST request.
func (s *SSE) Send(ctx context.Context, data []byte) error {
	select {
	case <-s.done:
		return ErrTransportClosed
	default:
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.messageURL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return nil
}

// Receive implements Transport. It blocks until one message event arrives,
// the stream fails, or the transport is closed.
func (s *SSE) Receive(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.done:
		return nil, ErrTransportClosed
	case r := <-s.reads:
		return r.data, r.err
	}
}

// Close implements Transport. It cancels the hanging GET, which terminates
// the event stream and unblocks any pending Receive. Safe to call multiple
// times.
func (s *SSE) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		if s.cancel != nil {
			s.cancel()
		}
	})
	return nil
}

func (s *SSE) listenSSEMessages(body io.ReadCloser, ready chan<- error) {
	defer body.Close()

	var config *sse.ReadConfig
	if s.maxPayloadSize > 0 {
		config = &sse.ReadConfig{
			MaxEventSize: s.maxPayloadSize,
		}
	}

	opened := false

	for ev, err := range sse.Read(body, config) {
		if err != nil {
			if !opened {
				ready <- fmt.Errorf("stream failed before endpoint event: %w", err)
				return
			}
			if errors.Is(err, context.Canceled) {
				err = ErrTransportClosed
			}
			select {
			case s.reads <- sseRead{err: err}:
			case <-s.done:
			}
			return
		}

		switch ev.Type {
		case "endpoint":
			// Validate the endpoint URL before accepting it, so messages
			// cannot be routed to a mangled destination.
			u, err := url.Parse(ev.Data)
			if err != nil {
				ready <- fmt.Errorf("parse endpoint URL: %w", err)
				return
			}
			if u.String() == "" {
				ready <- errors.New("empty endpoint URL")
				return
			}
			s.messageURL = u.String()
			opened = true
			ready <- nil
		case "message":
			if !opened {
				s.logger.Error("received message before endpoint URL")
				continue
			}
			select {
			case s.reads <- sseRead{data: []byte(ev.Data)}:
			case <-s.done:
				return
			}
		default:
			s.logger.Error("unhandled event type", "type", ev.Type)
		}
	}

	// Stream ended without error: the server closed its end.
	select {
	case s.reads <- sseRead{err: ErrTransportClosed}:
	case <-s.done:
	}
}
