// ABOUTME: Tool-calling conversation loop between a model and the tool server.
// ABOUTME: Runs rounds of complete/execute until a final answer or the round cap.

package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/crucible-tools/crucible/internal/content"
	"github.com/crucible-tools/crucible/internal/oracle"
	"github.com/crucible-tools/crucible/internal/tools"
)

// FallbackMessage is returned when the round cap is reached before the
// model produces a final answer.
const FallbackMessage = "Too many tool-calling steps."

const defaultSystemPrompt = "You are a helpful assistant. You can call the available tools " +
	"to inspect and modify a sandboxed workspace; use them whenever they help answer the user."

// DefaultMaxRounds caps the think/act rounds per prompt.
const DefaultMaxRounds = 8

// Loop drives one conversation between a model provider and a tool server.
type Loop struct {
	caller       Caller
	provider     oracle.Provider
	logger       *slog.Logger
	maxRounds    int
	systemPrompt string
}

// LoopConfig configures a Loop. Zero values get defaults.
type LoopConfig struct {
	Caller       Caller
	Provider     oracle.Provider
	Logger       *slog.Logger
	MaxRounds    int
	SystemPrompt string
}

// NewLoop validates the configuration and builds a loop.
func NewLoop(cfg LoopConfig) (*Loop, error) {
	if cfg.Caller == nil {
		return nil, fmt.Errorf("caller is required")
	}
	if cfg.Provider == nil {
		return nil, fmt.Errorf("provider is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxRounds := cfg.MaxRounds
	if maxRounds <= 0 {
		maxRounds = DefaultMaxRounds
	}
	systemPrompt := cfg.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = defaultSystemPrompt
	}
	return &Loop{
		caller:       cfg.Caller,
		provider:     cfg.Provider,
		logger:       logger,
		maxRounds:    maxRounds,
		systemPrompt: systemPrompt,
	}, nil
}

// Run answers one user prompt. It discovers the server's tool catalog,
// then alternates between model completions and tool execution until the
// model answers without tool calls or the round cap is hit.
func (l *Loop) Run(ctx context.Context, prompt string) (string, error) {
	if _, err := l.caller.Call(ctx, "initialize", nil); err != nil {
		return "", fmt.Errorf("initialize: %w", err)
	}

	specs, err := l.listTools(ctx)
	if err != nil {
		return "", fmt.Errorf("listing tools: %w", err)
	}
	l.logger.Debug("tool catalog loaded", "count", len(specs))

	messages := []oracle.Message{
		{Role: oracle.RoleSystem, Content: l.systemPrompt},
		{Role: oracle.RoleUser, Content: prompt},
	}

	for round := 1; round <= l.maxRounds; round++ {
		resp, err := l.provider.Complete(ctx, messages, specs)
		if err != nil {
			return "", fmt.Errorf("completion round %d: %w", round, err)
		}

		if len(resp.ToolCalls) == 0 {
			l.logger.Debug("final answer", "round", round)
			return resp.Content, nil
		}

		messages = append(messages, oracle.Message{
			Role:      oracle.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		for _, tc := range resp.ToolCalls {
			payload := l.executeTool(ctx, tc)
			messages = append(messages, oracle.Message{
				Role:       oracle.RoleTool,
				Content:    payload,
				ToolCallID: tc.ID,
			})
		}
	}

	l.logger.Warn("round cap reached", "max_rounds", l.maxRounds)
	return FallbackMessage, nil
}

// executeTool runs one tool call and renders its outcome as the tool
// message payload. Failures become an error payload so the model can react;
// they never abort the loop.
func (l *Loop) executeTool(ctx context.Context, tc oracle.ToolCall) string {
	args := tc.Arguments
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}
	raw, err := l.caller.Call(ctx, "tools/call", map[string]any{
		"name":      tc.Name,
		"arguments": args,
	})
	if err != nil {
		l.logger.Warn("tool call failed", "tool", tc.Name, "error", err)
		return errorPayload(err.Error())
	}

	var result content.Result
	if err := json.Unmarshal(raw, &result); err != nil {
		l.logger.Warn("malformed tool result", "tool", tc.Name, "error", err)
		return errorPayload("malformed tool result")
	}
	return renderPayload(&result)
}

// renderPayload prefers the first structured part of a result; plain text
// parts joined by newlines are the fallback.
func renderPayload(result *content.Result) string {
	if raw := result.FirstJSON(); raw != nil {
		return string(raw)
	}
	return strings.Join(result.Texts(), "\n")
}

func errorPayload(msg string) string {
	raw, err := json.Marshal(map[string]string{"error": msg})
	if err != nil {
		return `{"error":"internal"}`
	}
	return string(raw)
}

func (l *Loop) listTools(ctx context.Context) ([]oracle.ToolSpec, error) {
	raw, err := l.caller.Call(ctx, "tools/list", nil)
	if err != nil {
		return nil, err
	}
	var listed struct {
		Tools []tools.Definition `json:"tools"`
	}
	if err := json.Unmarshal(raw, &listed); err != nil {
		return nil, fmt.Errorf("decoding tool list: %w", err)
	}

	specs := make([]oracle.ToolSpec, len(listed.Tools))
	for i, def := range listed.Tools {
		specs[i] = oracle.ToolSpec{
			Name:        def.Name,
			Description: def.Description,
			Parameters:  def.InputSchema,
		}
	}
	return specs, nil
}
