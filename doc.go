// Package mcp implements a client for the Model Context Protocol (MCP),
// a JSON-RPC based protocol that lets a local process discover and invoke
// capabilities exposed by a server: named tools, addressable resources,
// and parametrized prompts. This implementation follows the official
// specification from https://spec.modelcontextprotocol.io/specification/.
//
// The heart of the package is Client, a session engine that owns a
// Transport, performs the initialize handshake, correlates asynchronous
// responses with their originating requests, and routes server-initiated
// notifications to a registered sink. Transports are interchangeable:
// StdIO speaks newline-delimited JSON over a child process's standard
// streams, SSE pairs an HTTP POST endpoint with a Server-Sent Events
// stream, and WebSocket uses a persistent socket connection.
package mcp
