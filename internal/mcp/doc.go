// ABOUTME: Package documentation for the JSON-RPC protocol layer.
// ABOUTME: Describes the dispatcher, the HTTP transport, and error mapping.

// Package mcp implements the tool-invocation protocol surface.
//
// The Server type is a transport-agnostic JSON-RPC 2.0 dispatcher: it takes
// a raw request body and returns a response envelope, routing the six
// supported methods (initialize, tools/list, tools/call, resources/list,
// resources/read, resources/templates/list) to the tool registry and the
// resource catalog. Domain errors from those layers are mapped onto the
// protocol's error codes in errors.go.
//
// HTTPServer binds a Server to an HTTP mux at /mcp, adds CORS headers and
// the Mcp-Session-Id handshake, and serves a /health probe that reports the
// sandbox root. Sessions are issued on initialize but never enforced; each
// request is dispatched on its own.
package mcp
