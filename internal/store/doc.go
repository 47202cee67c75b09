// ABOUTME: Package documentation for the audit store.
// ABOUTME: Describes the invocation log schema and its role in the server.

// Package store persists an audit log of tool invocations in SQLite.
//
// Each tools/call that reaches the registry produces one row: the tool
// name, a server-assigned request id, elapsed time, and whether the call
// errored. The dispatcher treats recording as best-effort; a store failure
// never fails the request.
//
// The database uses WAL mode so queries over the log do not block writers.
package store
