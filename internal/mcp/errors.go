// ABOUTME: JSON-RPC error codes and the mapping from internal errors to them.
// ABOUTME: Distinguishes "not allowed" from "does not exist" from "something broke".

package mcp

import (
	"errors"

	"github.com/crucible-tools/crucible/internal/resources"
	"github.com/crucible-tools/crucible/internal/sandbox"
	"github.com/crucible-tools/crucible/internal/tools"
)

// Standard JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
)

// Implementation-defined codes in the server range. Sandbox violations and
// missing resources get their own codes so callers can tell "you are not
// allowed" apart from "it does not exist".
const (
	CodeInternalError    = -32000
	CodeSandboxViolation = -32001
	CodeNotFound         = -32002
	CodeConflict         = -32003
)

// codeForError maps an error from a handler, tool, or catalog to its
// JSON-RPC error code.
func codeForError(err error) int {
	switch {
	case errors.Is(err, sandbox.ErrViolation):
		return CodeSandboxViolation
	case errors.Is(err, tools.ErrNotFound), errors.Is(err, resources.ErrNotFound):
		return CodeNotFound
	case errors.Is(err, tools.ErrConflict):
		return CodeConflict
	case errors.Is(err, tools.ErrInvalidInput),
		errors.Is(err, tools.ErrToolNotFound),
		errors.Is(err, resources.ErrUnsupportedScheme):
		return CodeInvalidParams
	default:
		return CodeInternalError
	}
}
