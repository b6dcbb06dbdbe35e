package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// ClientOption is a function that configures a client.
type ClientOption func(*Client)

// Client implements a Model Context Protocol (MCP) session engine. It owns
// a Transport exclusively, performs the initialize handshake and capability
// negotiation, serializes outgoing requests, correlates asynchronous
// responses with their originating calls, and routes server-initiated
// notifications to a registered sink.
//
// A Client must be created using NewClient() and requires Connect() to be
// called before any operations can be performed. Operations may be issued
// concurrently from any number of goroutines; responses are matched
// strictly by request id, never by arrival order. The client should be
// properly closed using Close() when it's no longer needed.
type Client struct {
	info         Info
	capabilities ClientCapabilities
	transport    Transport
	registry     *Registry

	notificationHandler NotificationHandler

	serverInfo         Info
	serverCapabilities ServerCapabilities

	connectTimeout time.Duration
	requestTimeout time.Duration
	writeTimeout   time.Duration

	logger *slog.Logger

	state atomic.Int32
	calls pendingCalls

	sendMu sync.Mutex

	closeOnce sync.Once
	closeErr  error
	loopDone  chan struct{}
}

var (
	defaultConnectTimeout = 10 * time.Second
	defaultRequestTimeout = 30 * time.Second
	defaultWriteTimeout   = 30 * time.Second
)

// WithNotificationHandler sets the sink for server-initiated notifications.
// Only one sink is supported; it is called synchronously from the dispatch
// loop in wire order, and must not block. Notifications arriving with no
// sink registered are dropped, never fatal.
func WithNotificationHandler(handler NotificationHandler) ClientOption {
	return func(c *Client) {
		c.notificationHandler = handler
	}
}

// WithConnectTimeout bounds the whole of Connect, transport open and
// handshake included.
func WithConnectTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.connectTimeout = timeout
	}
}

// WithRequestTimeout sets the default deadline for each outgoing call. A
// tighter per-call deadline can still be set through the context.
func WithRequestTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.requestTimeout = timeout
	}
}

// WithWriteTimeout bounds a single message write on the transport.
func WithWriteTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.writeTimeout = timeout
	}
}

// WithLogger sets the logger for the client.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a new Model Context Protocol (MCP) client with the
// specified configuration. The info parameter provides client
// identification and version information. The transport parameter defines
// how the client communicates with the server; exactly one transport is
// bound per client for its lifetime.
//
// The client will not be connected until Connect() is called.
func NewClient(info Info, transport Transport, options ...ClientOption) *Client {
	c := &Client{
		info:      info,
		transport: transport,
		registry:  NewRegistry(),
		logger:    slog.Default(),
		loopDone:  make(chan struct{}),
	}
	for _, opt := range options {
		opt(c)
	}

	if c.connectTimeout == 0 {
		c.connectTimeout = defaultConnectTimeout
	}
	if c.requestTimeout == 0 {
		c.requestTimeout = defaultRequestTimeout
	}
	if c.writeTimeout == 0 {
		c.writeTimeout = defaultWriteTimeout
	}

	return c
}

// State returns the current session lifecycle state.
func (c *Client) State() SessionState {
	return SessionState(c.state.Load())
}

// ServerInfo returns the server's identity as reported by the handshake.
func (c *Client) ServerInfo() Info {
	return c.serverInfo
}

// Registry returns the client-side capability cache. It holds the lists
// from the most recent ListTools/ListResources/ListPrompts calls, is never
// consulted for correctness, and is always refreshable.
func (c *Client) Registry() *Registry {
	return c.registry
}

// PromptServerSupported returns true if the server supports prompt management.
func (c *Client) PromptServerSupported() bool {
	return c.serverCapabilities.Prompts != nil
}

// ResourceServerSupported returns true if the server supports resource management.
func (c *Client) ResourceServerSupported() bool {
	return c.serverCapabilities.Resources != nil
}

// ToolServerSupported returns true if the server supports tool management.
func (c *Client) ToolServerSupported() bool {
	return c.serverCapabilities.Tools != nil
}

// Connect opens the transport, performs the initialize handshake, and
// starts the background dispatch loop. It transitions the session through
// Connecting and Negotiating into Ready. If the transport cannot be opened,
// or the handshake response is malformed or absent within the connect
// timeout, Connect returns a *ConnectError and the session is Failed.
func (c *Client) Connect(ctx context.Context) error {
	if !c.state.CompareAndSwap(int32(StateDisconnected), int32(StateConnecting)) {
		return fmt.Errorf("connect: session is %s", c.State())
	}

	ctx, cancel := context.WithTimeout(ctx, c.connectTimeout)
	defer cancel()

	if err := c.transport.Open(ctx); err != nil {
		c.state.Store(int32(StateFailed))
		close(c.loopDone)
		return &ConnectError{Stage: "open", Err: err}
	}

	c.state.Store(int32(StateNegotiating))
	go c.listen()

	res, err := c.handshake(ctx)
	if err != nil {
		c.state.Store(int32(StateFailed))
		c.calls.drainAll(ErrConnectionLost)
		if cErr := c.transport.Close(); cErr != nil {
			c.logger.Error("failed to close transport after handshake failure", "err", cErr)
		}
		return &ConnectError{Stage: "handshake", Err: err}
	}

	c.serverInfo = res.ServerInfo
	c.serverCapabilities = res.Capabilities
	c.state.Store(int32(StateReady))

	if err := c.sendNotification(ctx, methodNotificationsInitialized, nil); err != nil {
		c.state.Store(int32(StateFailed))
		c.calls.drainAll(ErrConnectionLost)
		if cErr := c.transport.Close(); cErr != nil {
			c.logger.Error("failed to close transport after handshake failure", "err", cErr)
		}
		return &ConnectError{Stage: "handshake", Err: err}
	}

	return nil
}

func (c *Client) handshake(ctx context.Context) (initializeResult, error) {
	params := initializeParams{
		ProtocolVersion: protocolVersion,
		Capabilities:    c.capabilities,
		ClientInfo:      c.info,
	}
	paramsBs, err := json.Marshal(params)
	if err != nil {
		return initializeResult{}, fmt.Errorf("failed to marshal initialize params: %w", err)
	}

	msgID := uuid.New().String()
	results := c.calls.register(msgID)

	err = c.send(ctx, JSONRPCMessage{
		JSONRPC: JSONRPCVersion,
		ID:      MustString(msgID),
		Method:  methodInitialize,
		Params:  paramsBs,
	})
	if err != nil {
		c.calls.cancel(msgID)
		return initializeResult{}, fmt.Errorf("failed to send initialize request: %w", err)
	}

	var out callOutcome
	select {
	case <-ctx.Done():
		c.calls.cancel(msgID)
		return initializeResult{}, fmt.Errorf("no handshake response: %w", ctx.Err())
	case out = <-results:
	}
	if out.err != nil {
		return initializeResult{}, out.err
	}
	if out.msg.Error != nil {
		return initializeResult{}, fmt.Errorf("initialize error: %w", out.msg.Error)
	}

	var res initializeResult
	if err := json.Unmarshal(out.msg.Result, &res); err != nil {
		return initializeResult{}, fmt.Errorf("malformed initialize result: %w", err)
	}

	if res.ProtocolVersion != protocolVersion {
		return initializeResult{}, fmt.Errorf("protocol version mismatch: %s != %s",
			res.ProtocolVersion, protocolVersion)
	}

	return res, nil
}

// ListTools retrieves a paginated list of available tools from the server
// and replaces the registry's cached tool list wholesale.
func (c *Client) ListTools(ctx context.Context, params ListToolsParams) (ListToolsResult, error) {
	res, err := c.call(ctx, MethodToolsList, params)
	if err != nil {
		return ListToolsResult{}, err
	}

	var result ListToolsResult
	if err := json.Unmarshal(res.Result, &result); err != nil {
		return ListToolsResult{}, fmt.Errorf("%s: malformed result: %w", MethodToolsList, err)
	}

	c.registry.setTools(result.Tools)

	return result, nil
}

// CallTool executes a specific tool and returns its result. The tool name
// is not checked against the registry; the server is authoritative, so an
// unknown-to-client name is still sent and ErrToolNotFound is the server's
// answer. Arguments are opaque structured data forwarded verbatim.
func (c *Client) CallTool(ctx context.Context, params CallToolParams) (CallToolResult, error) {
	res, err := c.call(ctx, MethodToolsCall, params)
	if err != nil {
		return CallToolResult{}, err
	}

	var result CallToolResult
	if err := json.Unmarshal(res.Result, &result); err != nil {
		return CallToolResult{}, fmt.Errorf("%s: malformed result: %w", MethodToolsCall, err)
	}

	return result, nil
}

// ListResources retrieves a paginated list of available resources from the
// server and replaces the registry's cached resource list wholesale.
func (c *Client) ListResources(ctx context.Context, params ListResourcesParams) (ListResourcesResult, error) {
	res, err := c.call(ctx, MethodResourcesList, params)
	if err != nil {
		return ListResourcesResult{}, err
	}

	var result ListResourcesResult
	if err := json.Unmarshal(res.Result, &result); err != nil {
		return ListResourcesResult{}, fmt.Errorf("%s: malformed result: %w", MethodResourcesList, err)
	}

	c.registry.setResources(result.Resources)

	return result, nil
}

// ReadResource retrieves the content of a specific resource by URI.
func (c *Client) ReadResource(ctx context.Context, params ReadResourceParams) (ReadResourceResult, error) {
	res, err := c.call(ctx, MethodResourcesRead, params)
	if err != nil {
		return ReadResourceResult{}, err
	}

	var result ReadResourceResult
	if err := json.Unmarshal(res.Result, &result); err != nil {
		return ReadResourceResult{}, fmt.Errorf("%s: malformed result: %w", MethodResourcesRead, err)
	}

	return result, nil
}

// ListPrompts retrieves a paginated list of available prompts from the
// server and replaces the registry's cached prompt list wholesale.
func (c *Client) ListPrompts(ctx context.Context, params ListPromptsParams) (ListPromptsResult, error) {
	res, err := c.call(ctx, MethodPromptsList, params)
	if err != nil {
		return ListPromptsResult{}, err
	}

	var result ListPromptsResult
	if err := json.Unmarshal(res.Result, &result); err != nil {
		return ListPromptsResult{}, fmt.Errorf("%s: malformed result: %w", MethodPromptsList, err)
	}

	c.registry.setPrompts(result.Prompts)

	return result, nil
}

// GetPrompt retrieves a specific prompt rendered with the given arguments.
func (c *Client) GetPrompt(ctx context.Context, params GetPromptParams) (GetPromptResult, error) {
	res, err := c.call(ctx, MethodPromptsGet, params)
	if err != nil {
		return GetPromptResult{}, err
	}

	var result GetPromptResult
	if err := json.Unmarshal(res.Result, &result); err != nil {
		return GetPromptResult{}, fmt.Errorf("%s: malformed result: %w", MethodPromptsGet, err)
	}

	return result, nil
}

// Ping sends a protocol ping and waits for the server's reply. Useful as a
// cheap liveness probe between calls.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.call(ctx, methodPing, nil)
	return err
}

// Close shuts the session down. It transitions to Closing, resolves every
// still-pending call with ErrSessionClosed, closes the transport, and
// transitions to Closed. It does not wait for in-flight calls to complete
// normally, bounding shutdown latency. Close is idempotent.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		started := c.State() != StateDisconnected

		c.state.Store(int32(StateClosing))
		c.calls.drainAll(ErrSessionClosed)
		c.closeErr = c.transport.Close()
		if started {
			<-c.loopDone
		}
		c.state.Store(int32(StateClosed))
	})
	return c.closeErr
}

// listen is the dispatch loop, one per session, running for the session's
// lifetime. It is the single reader of the transport and the single writer
// of state transitions away from Ready.
func (c *Client) listen() {
	defer close(c.loopDone)

	for {
		data, err := c.transport.Receive(context.Background())
		if err != nil {
			// A read failure during Closing is the expected effect of
			// Close releasing the transport.
			switch c.State() {
			case StateClosing, StateClosed:
			default:
				c.state.Store(int32(StateFailed))
				c.logger.Error("transport receive failed", "err", err)
			}
			c.calls.drainAll(ErrConnectionLost)
			return
		}

		msg, err := DecodeMessage(data)
		if err != nil {
			// Malformed inbound payloads are non-fatal; the connection
			// stays up unless the transport itself signals closure.
			c.logger.Warn("dropping malformed message", "err", err)
			continue
		}
		if msg.JSONRPC != JSONRPCVersion {
			c.logger.Warn("dropping message with invalid jsonrpc version", "version", msg.JSONRPC)
			continue
		}

		switch {
		case msg.Method == "":
			if !c.calls.resolve(string(msg.ID), callOutcome{msg: msg}) {
				c.logger.Debug("discarding response with no pending request", "id", string(msg.ID))
			}
		case msg.Method == methodPing && msg.ID != "":
			if err := c.sendResult(msg.ID, nil); err != nil {
				c.logger.Error("failed to answer ping", "err", err)
			}
		case msg.ID != "":
			// A server-to-client request this client does not implement.
			if err := c.sendError(msg.ID, JSONRPCError{
				Code:    jsonRPCMethodNotFoundCode,
				Message: fmt.Sprintf("method %q not supported", msg.Method),
			}); err != nil {
				c.logger.Error("failed to reject server request", "method", msg.Method, "err", err)
			}
		default:
			if c.notificationHandler == nil {
				c.logger.Debug("dropping notification with no handler registered", "method", msg.Method)
				continue
			}
			c.notificationHandler(msg.Method, msg.Params)
		}
	}
}

// call sends one request and suspends the caller until the completion slot
// resolves, the context is done, or the request timeout elapses.
func (c *Client) call(ctx context.Context, method string, params any) (JSONRPCMessage, error) {
	if c.State() != StateReady {
		return JSONRPCMessage{}, fmt.Errorf("%s: %w", method, ErrNotConnected)
	}

	var paramsBs json.RawMessage
	if params != nil {
		var err error
		paramsBs, err = json.Marshal(params)
		if err != nil {
			return JSONRPCMessage{}, fmt.Errorf("failed to marshal params: %w", err)
		}
	}

	msgID := uuid.New().String()
	results := c.calls.register(msgID)

	err := c.send(ctx, JSONRPCMessage{
		JSONRPC: JSONRPCVersion,
		ID:      MustString(msgID),
		Method:  method,
		Params:  paramsBs,
	})
	if err != nil {
		c.calls.cancel(msgID)
		return JSONRPCMessage{}, fmt.Errorf("%s: %w", method, err)
	}

	timer := time.NewTimer(c.requestTimeout)
	defer timer.Stop()

	var out callOutcome
	select {
	case <-ctx.Done():
		c.calls.cancel(msgID)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return JSONRPCMessage{}, fmt.Errorf("%s: %w", method, ErrRequestTimeout)
		}
		return JSONRPCMessage{}, fmt.Errorf("%s: %w", method, ErrCancelled)
	case <-timer.C:
		c.calls.cancel(msgID)
		return JSONRPCMessage{}, fmt.Errorf("%s: %w", method, ErrRequestTimeout)
	case out = <-results:
	}

	if out.err != nil {
		return JSONRPCMessage{}, fmt.Errorf("%s: %w", method, out.err)
	}
	if out.msg.Error != nil {
		return JSONRPCMessage{}, newRequestError(method, out.msg)
	}

	return out.msg, nil
}

// send serializes and writes one full message. Writes are serialized by a
// send-side lock so concurrent calls never interleave partial payloads.
func (c *Client) send(ctx context.Context, msg JSONRPCMessage) error {
	data, err := EncodeMessage(msg)
	if err != nil {
		return err
	}

	sCtx, sCancel := context.WithTimeout(ctx, c.writeTimeout)
	defer sCancel()

	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	return c.transport.Send(sCtx, data)
}

func (c *Client) sendNotification(ctx context.Context, method string, params any) error {
	var paramsBs json.RawMessage
	if params != nil {
		var err error
		paramsBs, err = json.Marshal(params)
		if err != nil {
			return fmt.Errorf("failed to marshal params: %w", err)
		}
	}

	if err := c.send(ctx, JSONRPCMessage{
		JSONRPC: JSONRPCVersion,
		Method:  method,
		Params:  paramsBs,
	}); err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}

	return nil
}

func (c *Client) sendResult(id MustString, result any) error {
	resBs, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	return c.send(context.Background(), JSONRPCMessage{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Result:  resBs,
	})
}

func (c *Client) sendError(id MustString, rpcErr JSONRPCError) error {
	return c.send(context.Background(), JSONRPCMessage{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Error:   &rpcErr,
	})
}

// newRequestError builds the client-facing error for a server error
// response, mapping well-known codes to not-found sentinels so callers can
// use errors.Is without inspecting codes themselves.
func newRequestError(method string, msg JSONRPCMessage) error {
	re := &RequestError{
		Code:    msg.Error.Code,
		Message: msg.Error.Message,
		Data:    msg.Error.Data,
		Method:  method,
		ID:      string(msg.ID),
	}
	re.kind = classifyRequestError(method, msg.Error)
	return re
}

func classifyRequestError(method string, rpcErr *JSONRPCError) error {
	lower := strings.ToLower(rpcErr.Message)
	missing := strings.Contains(lower, "not found") || strings.Contains(lower, "unknown")

	switch method {
	case MethodToolsCall:
		if rpcErr.Code == jsonRPCMethodNotFoundCode {
			return ErrToolNotFound
		}
		if rpcErr.Code == jsonRPCInvalidParamsCode {
			// Servers reuse the invalid-params code both for a missing tool
			// and for rejected arguments; the message disambiguates.
			if missing {
				return ErrToolNotFound
			}
			return ErrInvalidArguments
		}
	case MethodResourcesRead:
		if rpcErr.Code == jsonRPCResourceNotFoundCode ||
			(rpcErr.Code == jsonRPCInvalidParamsCode && missing) {
			return ErrResourceNotFound
		}
	case MethodPromptsGet:
		if rpcErr.Code == jsonRPCInvalidParamsCode && missing {
			return ErrPromptNotFound
		}
		if rpcErr.Code == jsonRPCMethodNotFoundCode {
			return ErrPromptNotFound
		}
	}

	return nil
}
