// ABOUTME: Thread-safe registry mapping tool names to descriptor/handler pairs.
// ABOUTME: Catalog order follows registration order; names must be unique.

package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/crucible-tools/crucible/internal/content"
)

// ErrToolNotFound indicates the named tool is not registered.
var ErrToolNotFound = errors.New("tool not found")

// ErrToolCollision indicates a tool name is already registered.
var ErrToolCollision = errors.New("tool name collision")

// ErrInvalidInput indicates a missing or mistyped tool argument.
var ErrInvalidInput = errors.New("invalid input")

// ErrNotFound indicates a missing file or move source.
var ErrNotFound = errors.New("not found")

// ErrConflict indicates an operation refused because of existing state,
// such as deleting a non-empty directory.
var ErrConflict = errors.New("conflict")

// Definition describes a tool: its name, human-readable description, and
// advisory JSON Schemas for input and output. Schemas document the contract;
// enforcement is up to each handler.
type Definition struct {
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	InputSchema  json.RawMessage `json:"inputSchema"`
	OutputSchema json.RawMessage `json:"outputSchema,omitempty"`
}

// Handler executes a tool against its raw JSON arguments.
type Handler func(ctx context.Context, input json.RawMessage) (*content.Result, error)

// Tool pairs a definition with its handler.
type Tool struct {
	Definition Definition
	Handler    Handler
}

// Registry is the fixed tool catalog, built once at startup.
type Registry struct {
	mu     sync.RWMutex
	order  []string
	tools  map[string]*Tool
	logger *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		tools:  make(map[string]*Tool),
		logger: logger,
	}
}

// Register adds tools to the catalog. Returns ErrToolCollision if any name
// is already taken; nothing is registered in that case.
func (r *Registry) Register(ts ...*Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, t := range ts {
		if _, exists := r.tools[t.Definition.Name]; exists {
			return fmt.Errorf("%w: %s", ErrToolCollision, t.Definition.Name)
		}
	}
	for _, t := range ts {
		r.tools[t.Definition.Name] = t
		r.order = append(r.order, t.Definition.Name)
	}

	r.logger.Info("tools registered", "count", len(ts), "total", len(r.order))
	return nil
}

// List returns all tool definitions in registration order.
func (r *Registry) List() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]Definition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name].Definition)
	}
	return defs
}

// Get returns the tool registered under name, or ErrToolNotFound.
func (r *Registry) Get(name string) (*Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return t, nil
}

// Call looks up name and executes its handler with input.
func (r *Registry) Call(ctx context.Context, name string, input json.RawMessage) (*content.Result, error) {
	t, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	if len(input) == 0 {
		input = json.RawMessage(`{}`)
	}
	return t.Handler(ctx, input)
}
