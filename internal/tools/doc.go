// Package tools provides the tool catalog and the built-in tool packs.
//
// # Overview
//
// A tool is a named, schema-described unit of server-side functionality.
// The Registry maps tool names to {Definition, Handler} pairs and is built
// once at startup; catalog order follows registration order. All handlers
// share one signature:
//
//	func(ctx context.Context, input json.RawMessage) (*content.Result, error)
//
// # Packs
//
// Basic pack (BasicPack):
//
//   - echo: return the input text unchanged
//   - add_numbers: sum a non-empty numeric array
//   - now: current time, optionally in a named IANA zone
//   - word_count: count whitespace-delimited words and characters
//
// Filesystem pack (FSPack), all paths confined by the sandbox resolver:
//
//   - read_file, write_file, append_file
//   - list_dir, make_dirs, move_path, delete_path
//
// # Errors
//
// Handlers signal failure class through sentinel errors (ErrInvalidInput,
// ErrNotFound, ErrConflict, plus sandbox.ErrViolation from the resolver).
// The protocol layer maps these to JSON-RPC error codes; handlers never
// build protocol envelopes themselves.
//
// Input schemas are advisory documentation: each handler performs its own
// explicit argument checks rather than validating against the schema.
package tools
