// ABOUTME: JSON-RPC callers used by the chat loop to reach the tool server.
// ABOUTME: HTTPCaller speaks to a remote /mcp endpoint; LocalCaller goes in-process.

package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/crucible-tools/crucible/internal/mcp"
)

// Caller issues one JSON-RPC request and returns the raw result payload.
// A response with an error envelope is returned as *RPCError.
type Caller interface {
	Call(ctx context.Context, method string, params any) (json.RawMessage, error)
}

// RPCError is a JSON-RPC error envelope surfaced as a Go error.
type RPCError struct {
	Code    int
	Message string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// HTTPCaller reaches a tool server over HTTP.
type HTTPCaller struct {
	endpoint string
	client   *http.Client
}

// NewHTTPCaller creates a caller for the given /mcp endpoint URL. A nil
// client uses http.DefaultClient.
func NewHTTPCaller(endpoint string, client *http.Client) *HTTPCaller {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPCaller{endpoint: endpoint, client: client}
}

func (c *HTTPCaller) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	envelope := map[string]any{
		"jsonrpc": "2.0",
		"id":      uuid.New().String(),
		"method":  method,
	}
	if params != nil {
		envelope["params"] = params
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling %s: %w", method, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	var env struct {
		Result json.RawMessage `json:"result"`
		Error  *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if env.Error != nil {
		return nil, &RPCError{Code: env.Error.Code, Message: env.Error.Message}
	}
	return env.Result, nil
}

// LocalCaller dispatches against an in-process server, skipping HTTP.
type LocalCaller struct {
	server *mcp.Server
}

// NewLocalCaller wraps a dispatcher.
func NewLocalCaller(server *mcp.Server) *LocalCaller {
	return &LocalCaller{server: server}
}

func (c *LocalCaller) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	envelope := map[string]any{
		"jsonrpc": "2.0",
		"id":      uuid.New().String(),
		"method":  method,
	}
	if params != nil {
		envelope["params"] = params
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	resp := c.server.Dispatch(ctx, body)
	if resp.Error != nil {
		return nil, &RPCError{Code: resp.Error.Code, Message: resp.Error.Message}
	}
	result, err := json.Marshal(resp.Result)
	if err != nil {
		return nil, fmt.Errorf("encoding result: %w", err)
	}
	return result, nil
}
