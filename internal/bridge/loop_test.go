// ABOUTME: Tests for the tool-calling conversation loop.
// ABOUTME: Uses a scripted provider against a real in-process tool server.

package bridge

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/crucible-tools/crucible/internal/content"
	"github.com/crucible-tools/crucible/internal/mcp"
	"github.com/crucible-tools/crucible/internal/oracle"
	"github.com/crucible-tools/crucible/internal/resources"
	"github.com/crucible-tools/crucible/internal/sandbox"
	"github.com/crucible-tools/crucible/internal/tools"
)

// scriptedProvider replays a fixed sequence of responses and records what
// it was asked.
type scriptedProvider struct {
	responses []*oracle.Response
	calls     int
	lastMsgs  []oracle.Message
	lastTools []oracle.ToolSpec
}

func (p *scriptedProvider) Complete(_ context.Context, msgs []oracle.Message, specs []oracle.ToolSpec) (*oracle.Response, error) {
	p.lastMsgs = msgs
	p.lastTools = specs
	if p.calls >= len(p.responses) {
		return p.responses[len(p.responses)-1], nil
	}
	resp := p.responses[p.calls]
	p.calls++
	return resp, nil
}

func newLocalCaller(t *testing.T) *LocalCaller {
	t.Helper()

	resolver, err := sandbox.NewResolver(t.TempDir())
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	registry := tools.NewRegistry(logger)
	require.NoError(t, registry.Register(tools.BasicPack(logger)...))
	require.NoError(t, registry.Register(tools.FSPack(resolver)...))

	srv, err := mcp.NewServer(mcp.Config{
		Registry: registry,
		Catalog:  resources.NewCatalog(resolver),
		Logger:   logger,
	})
	require.NoError(t, err)
	return NewLocalCaller(srv)
}

func newTestLoop(t *testing.T, provider oracle.Provider, maxRounds int) *Loop {
	t.Helper()
	loop, err := NewLoop(LoopConfig{
		Caller:    newLocalCaller(t),
		Provider:  provider,
		Logger:    slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})),
		MaxRounds: maxRounds,
	})
	require.NoError(t, err)
	return loop
}

func TestRunDirectAnswer(t *testing.T) {
	provider := &scriptedProvider{responses: []*oracle.Response{
		{Content: "four"},
	}}
	loop := newTestLoop(t, provider, 0)

	answer, err := loop.Run(context.Background(), "what is 2+2?")
	require.NoError(t, err)
	require.Equal(t, "four", answer)
	require.Equal(t, 1, provider.calls)

	// The full tool catalog was offered even though nothing was called.
	require.Len(t, provider.lastTools, 11)
	require.Equal(t, oracle.RoleSystem, provider.lastMsgs[0].Role)
	require.Equal(t, "what is 2+2?", provider.lastMsgs[1].Content)
}

func TestRunToolRoundTrip(t *testing.T) {
	provider := &scriptedProvider{responses: []*oracle.Response{
		{ToolCalls: []oracle.ToolCall{
			{ID: "c1", Name: "add_numbers", Arguments: json.RawMessage(`{"numbers":[2,3]}`)},
		}},
		{Content: "the sum is 5"},
	}}
	loop := newTestLoop(t, provider, 0)

	answer, err := loop.Run(context.Background(), "add 2 and 3")
	require.NoError(t, err)
	require.Equal(t, "the sum is 5", answer)
	require.Equal(t, 2, provider.calls)

	// The second completion saw the assistant turn and the tool payload.
	msgs := provider.lastMsgs
	require.Len(t, msgs, 4)
	require.Equal(t, oracle.RoleAssistant, msgs[2].Role)
	require.Len(t, msgs[2].ToolCalls, 1)
	require.Equal(t, oracle.RoleTool, msgs[3].Role)
	require.Equal(t, "c1", msgs[3].ToolCallID)
	require.JSONEq(t, `{"sum":5}`, msgs[3].Content)
}

func TestRunToolFailureFedBack(t *testing.T) {
	provider := &scriptedProvider{responses: []*oracle.Response{
		{ToolCalls: []oracle.ToolCall{
			{ID: "c1", Name: "no_such_tool", Arguments: json.RawMessage(`{}`)},
		}},
		{Content: "that tool does not exist"},
	}}
	loop := newTestLoop(t, provider, 0)

	answer, err := loop.Run(context.Background(), "use the magic tool")
	require.NoError(t, err)
	require.Equal(t, "that tool does not exist", answer)

	toolMsg := provider.lastMsgs[3]
	require.Equal(t, oracle.RoleTool, toolMsg.Role)

	var payload map[string]string
	require.NoError(t, json.Unmarshal([]byte(toolMsg.Content), &payload))
	require.Contains(t, payload["error"], "no_such_tool")
}

func TestRunRoundCap(t *testing.T) {
	// Every round requests another tool call.
	provider := &scriptedProvider{responses: []*oracle.Response{
		{ToolCalls: []oracle.ToolCall{
			{ID: "c", Name: "echo", Arguments: json.RawMessage(`{"text":"again"}`)},
		}},
	}}
	loop := newTestLoop(t, provider, 3)

	answer, err := loop.Run(context.Background(), "loop forever")
	require.NoError(t, err)
	require.Equal(t, FallbackMessage, answer)
	require.Equal(t, 1, provider.calls, "scripted provider repeats its last response")
	require.Len(t, provider.lastMsgs, 2+2*2, "two completed rounds of assistant+tool turns before the last")
}

// countingProvider always asks for another tool call.
type countingProvider struct {
	completions int
}

func (p *countingProvider) Complete(_ context.Context, _ []oracle.Message, _ []oracle.ToolSpec) (*oracle.Response, error) {
	p.completions++
	return &oracle.Response{ToolCalls: []oracle.ToolCall{
		{ID: "c", Name: "echo", Arguments: json.RawMessage(`{"text":"again"}`)},
	}}, nil
}

func TestRunDefaultRoundCapIsEight(t *testing.T) {
	provider := &countingProvider{}
	loop := newTestLoop(t, provider, 0)

	answer, err := loop.Run(context.Background(), "loop forever")
	require.NoError(t, err)
	require.Equal(t, FallbackMessage, answer)
	require.Equal(t, DefaultMaxRounds, provider.completions)
	require.Equal(t, 8, provider.completions)
}

func TestRunEmptyArgumentsDefaulted(t *testing.T) {
	provider := &scriptedProvider{responses: []*oracle.Response{
		{ToolCalls: []oracle.ToolCall{{ID: "c1", Name: "now"}}},
		{Content: "done"},
	}}
	loop := newTestLoop(t, provider, 0)

	answer, err := loop.Run(context.Background(), "what time is it?")
	require.NoError(t, err)
	require.Equal(t, "done", answer)

	var payload struct {
		ISO string `json:"iso"`
	}
	require.NoError(t, json.Unmarshal([]byte(provider.lastMsgs[3].Content), &payload))
	require.NotEmpty(t, payload.ISO)
}

func TestRenderPayload(t *testing.T) {
	t.Run("prefers structured part", func(t *testing.T) {
		jsonPart, err := content.JSONPart(map[string]int{"sum": 5})
		require.NoError(t, err)
		result := content.NewResult(content.TextPart("sum = 5"), jsonPart)
		require.JSONEq(t, `{"sum":5}`, renderPayload(result))
	})

	t.Run("joins text parts", func(t *testing.T) {
		result := content.NewResult(content.TextPart("a"), content.TextPart("b"))
		require.Equal(t, "a\nb", renderPayload(result))
	})
}

func TestNewLoopValidation(t *testing.T) {
	_, err := NewLoop(LoopConfig{Provider: &scriptedProvider{}})
	require.Error(t, err)

	_, err = NewLoop(LoopConfig{Caller: newLocalCaller(t)})
	require.Error(t, err)
}
