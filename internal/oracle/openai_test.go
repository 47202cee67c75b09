// ABOUTME: Tests for conversion between neutral types and the OpenAI client.
// ABOUTME: Verifies role mapping, tool call round trips, and tool schemas.

package oracle

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConvertMessagesRoles(t *testing.T) {
	msgs := convertMessages([]Message{
		{Role: RoleSystem, Content: "be brief"},
		{Role: RoleUser, Content: "hello"},
		{Role: RoleAssistant, Content: "hi"},
		{Role: RoleTool, Content: `{"ok":true}`, ToolCallID: "call-1"},
	})
	require.Len(t, msgs, 4)
	require.NotNil(t, msgs[0].OfSystem)
	require.NotNil(t, msgs[1].OfUser)
	require.NotNil(t, msgs[2].OfAssistant)
	require.NotNil(t, msgs[3].OfTool)
	require.Equal(t, "call-1", msgs[3].OfTool.ToolCallID)
}

func TestConvertMessagesAssistantToolCalls(t *testing.T) {
	msgs := convertMessages([]Message{
		{
			Role: RoleAssistant,
			ToolCalls: []ToolCall{
				{ID: "c1", Name: "echo", Arguments: json.RawMessage(`{"text":"x"}`)},
				{ID: "c2", Name: "now", Arguments: json.RawMessage(`{}`)},
			},
		},
	})
	require.Len(t, msgs, 1)
	require.NotNil(t, msgs[0].OfAssistant)

	calls := msgs[0].OfAssistant.ToolCalls
	require.Len(t, calls, 2)
	require.Equal(t, "c1", calls[0].ID)
	require.Equal(t, "echo", calls[0].Function.Name)
	require.JSONEq(t, `{"text":"x"}`, calls[0].Function.Arguments)
}

func TestConvertMessagesUnknownRoleDropped(t *testing.T) {
	msgs := convertMessages([]Message{
		{Role: "developer", Content: "ignored"},
		{Role: RoleUser, Content: "kept"},
	})
	require.Len(t, msgs, 1)
}

func TestConvertTools(t *testing.T) {
	specs := []ToolSpec{
		{
			Name:        "word_count",
			Description: "Count words",
			Parameters:  json.RawMessage(`{"type":"object","properties":{"text":{"type":"string"}}}`),
		},
	}
	out := convertTools(specs)
	require.Len(t, out, 1)
	require.Equal(t, "word_count", out[0].Function.Name)
	require.Contains(t, out[0].Function.Parameters, "properties")

	require.Nil(t, convertTools(nil))
}
