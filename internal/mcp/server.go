// ABOUTME: JSON-RPC 2.0 dispatcher for the MCP tool and resource methods.
// ABOUTME: Every handler error is converted to an error envelope at this boundary.

package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/crucible-tools/crucible/internal/resources"
	"github.com/crucible-tools/crucible/internal/tools"
)

// serverName and serverVersion identify this server in initialize responses.
const (
	serverName    = "crucible"
	serverVersion = "0.2.0"
)

// JSON-RPC 2.0 types

// Request represents a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response represents a JSON-RPC 2.0 response. Exactly one of Result or
// Error is set.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error represents a JSON-RPC 2.0 error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// CallToolParams are the params for tools/call. ToolName is a legacy alias
// for Name kept for older bridge clients.
type CallToolParams struct {
	Name      string          `json:"name"`
	ToolName  string          `json:"toolName"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// ReadResourceParams are the params for resources/read.
type ReadResourceParams struct {
	URI string `json:"uri"`
}

// Auditor records completed tool invocations. Recording failures must not
// fail the request; they are logged and dropped.
type Auditor interface {
	RecordToolCall(ctx context.Context, tool, requestID string, elapsed time.Duration, isError bool) error
}

// DuplicateChecker flags request IDs that were already seen recently.
type DuplicateChecker interface {
	CheckAndMark(key string) bool
}

// Config holds configuration for the dispatcher.
type Config struct {
	Registry *tools.Registry
	Catalog  *resources.Catalog
	Logger   *slog.Logger
	Auditor  Auditor          // optional
	Dedupe   DuplicateChecker // optional
}

// Server routes JSON-RPC requests to the tool registry and resource catalog.
type Server struct {
	registry *tools.Registry
	catalog  *resources.Catalog
	logger   *slog.Logger
	auditor  Auditor
	dedupe   DuplicateChecker
}

// NewServer creates a dispatcher with the given configuration.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Registry == nil {
		return nil, errors.New("registry is required")
	}
	if cfg.Catalog == nil {
		return nil, errors.New("resource catalog is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		registry: cfg.Registry,
		catalog:  cfg.Catalog,
		logger:   logger,
		auditor:  cfg.Auditor,
		dedupe:   cfg.Dedupe,
	}, nil
}

// Dispatch parses one JSON-RPC request body and routes it by method. It
// always returns a well-formed response; no handler error or panic escapes.
func (s *Server) Dispatch(ctx context.Context, body []byte) *Response {
	if !json.Valid(body) {
		return errorResponse(nil, CodeParseError, "invalid JSON")
	}

	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		return errorResponse(nil, CodeInvalidRequest, "invalid request: expected JSON object")
	}
	if req.JSONRPC != "" && req.JSONRPC != "2.0" {
		return errorResponse(req.ID, CodeInvalidRequest, "invalid JSON-RPC version")
	}

	if s.dedupe != nil && len(req.ID) > 0 && string(req.ID) != "null" {
		if s.dedupe.CheckAndMark(req.Method + ":" + string(req.ID)) {
			// A retried transport delivery reuses its request ID. Flag it,
			// but still serve the request: every method is re-runnable, the
			// mutating ones through their filesystem semantics.
			s.logger.Warn("duplicate request id", "method", req.Method, "id", string(req.ID))
		}
	}

	s.logger.Debug("rpc request", "method", req.Method, "id", string(req.ID))
	return s.route(ctx, req)
}

// route runs the method handler for req, converting errors and panics into
// error envelopes.
func (s *Server) route(ctx context.Context, req Request) (resp *Response) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("handler panic", "method", req.Method, "panic", r)
			resp = errorResponse(req.ID, CodeInternalError, "internal error")
		}
	}()

	var (
		result any
		err    error
	)

	switch req.Method {
	case "initialize":
		result = s.handleInitialize()
	case "tools/list":
		result = s.handleToolsList()
	case "tools/call":
		result, err = s.handleToolsCall(ctx, req.Params)
	case "resources/list":
		result, err = s.handleResourcesList()
	case "resources/read":
		result, err = s.handleResourcesRead(req.Params)
	case "resources/templates/list":
		result = s.handleResourceTemplates()
	default:
		return errorResponse(req.ID, CodeMethodNotFound, fmt.Sprintf("method not found: %s", req.Method))
	}

	if err != nil {
		code := codeForError(err)
		s.logger.Warn("rpc error", "method", req.Method, "code", code, "error", err)
		return errorResponse(req.ID, code, err.Error())
	}
	return &Response{JSONRPC: "2.0", ID: req.ID, Result: result}
}

func (s *Server) handleInitialize() any {
	return map[string]any{
		"serverInfo": map[string]any{
			"name":    serverName,
			"version": serverVersion,
		},
		"capabilities": map[string]any{
			"tools":     map[string]any{"listChanged": false},
			"resources": map[string]any{"subscribe": false, "listChanged": false},
		},
	}
}

func (s *Server) handleToolsList() any {
	defs := s.registry.List()
	s.logger.Debug("tools/list", "count", len(defs))
	// Full catalog, no pagination.
	return map[string]any{"tools": defs}
}

func (s *Server) handleToolsCall(ctx context.Context, params json.RawMessage) (any, error) {
	var p CallToolParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, fmt.Errorf("%w: invalid params", tools.ErrInvalidInput)
		}
	}

	name := p.Name
	if name == "" {
		name = p.ToolName
	}
	if name == "" {
		return nil, fmt.Errorf("%w: tool name is required", tools.ErrInvalidInput)
	}

	requestID := uuid.New().String()
	start := time.Now()
	result, err := s.registry.Call(ctx, name, p.Arguments)
	elapsed := time.Since(start)

	if s.auditor != nil {
		if aerr := s.auditor.RecordToolCall(ctx, name, requestID, elapsed, err != nil); aerr != nil {
			s.logger.Warn("audit record failed", "tool", name, "error", aerr)
		}
	}

	if err != nil {
		return nil, err
	}

	s.logger.Debug("tools/call complete",
		"tool", name,
		"request_id", requestID,
		"elapsed", elapsed,
		"parts", len(result.Parts),
	)
	return result, nil
}

func (s *Server) handleResourcesList() (any, error) {
	items, err := s.catalog.List()
	if err != nil {
		return nil, err
	}
	return map[string]any{"resources": items}, nil
}

func (s *Server) handleResourcesRead(params json.RawMessage) (any, error) {
	var p ReadResourceParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, fmt.Errorf("%w: invalid params", tools.ErrInvalidInput)
		}
	}
	if p.URI == "" {
		return nil, fmt.Errorf("%w: missing 'uri'", tools.ErrInvalidInput)
	}

	contents, err := s.catalog.Read(p.URI)
	if err != nil {
		return nil, err
	}
	return map[string]any{"contents": []*resources.Contents{contents}}, nil
}

func (s *Server) handleResourceTemplates() any {
	return map[string]any{"resourceTemplates": s.catalog.Templates()}
}

func errorResponse(id json.RawMessage, code int, message string) *Response {
	return &Response{
		JSONRPC: "2.0",
		ID:      id,
		Error: &Error{
			Code:    code,
			Message: message,
		},
	}
}
