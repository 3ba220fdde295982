// Copyright 2025 Matt Barlow

// Package transport provides JSON-RPC 2.0 message transports for the
// automation bridge: stdio (newline-delimited) and HTTP/SSE.
package transport

// JSON-RPC 2.0 standard error codes.
// See: https://www.jsonrpc.org/specification#error_object
const (
	// ErrCodeParseError indicates invalid JSON was received by the server.
	ErrCodeParseError = -32700

	// ErrCodeInvalidRequest indicates the JSON sent is not a valid Request object.
	ErrCodeInvalidRequest = -32600

	// ErrCodeMethodNotFound indicates the method does not exist or is not available.
	ErrCodeMethodNotFound = -32601

	// ErrCodeInvalidParams indicates invalid method parameter(s).
	ErrCodeInvalidParams = -32602

	// ErrCodeInternalError indicates an internal JSON-RPC error.
	ErrCodeInternalError = -32603
)

// Transport defines the interface for bridge message transport.
//
// Implementations must be safe for concurrent use from multiple
// goroutines. The transport manages the lifecycle of connections and
// handles serialization of JSON-RPC 2.0 messages.
//
// There are two implementations:
//   - StdioTransport: stdin/stdout (default)
//   - HTTPTransport: HTTP POST for requests, SSE for streamed responses
type Transport interface {
	// ReadMessage reads a JSON-RPC 2.0 message from the transport.
	// Blocks until a message is available, an error occurs, or the
	// transport is closed. Returns io.EOF when the peer closes the
	// connection.
	//
	// Note: HTTPTransport does not support ReadMessage; it uses the
	// callback pattern via Serve(handler) instead.
	ReadMessage() (*Message, error)

	// WriteMessage writes a JSON-RPC 2.0 message to the transport.
	// For StdioTransport, writes to stdout. For HTTPTransport,
	// broadcasts to all connected SSE clients.
	WriteMessage(msg *Message) error

	// Close closes the transport and releases any resources.
	// Idempotent and safe to call multiple times.
	Close() error

	// IsClosed returns whether the transport has been closed.
	IsClosed() bool
}

// Ensure StdioTransport implements Transport interface
var _ Transport = (*StdioTransport)(nil)
