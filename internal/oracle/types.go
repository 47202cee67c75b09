// ABOUTME: Conversation types shared between the chat loop and providers.
// ABOUTME: Messages, tool calls, and tool specs in a provider-neutral shape.

package oracle

import "encoding/json"

// Roles for conversation messages.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one turn in a conversation.
type Message struct {
	Role       string
	Content    string
	ToolCalls  []ToolCall // assistant turns that request tool execution
	ToolCallID string     // tool turns echo the call they answer
}

// ToolCall is a model request to run one tool.
type ToolCall struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

// ToolSpec describes a callable tool to the model. Parameters is a JSON
// Schema object.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  json.RawMessage
}

// Response is the model's reply to one completion request. A reply with
// tool calls expects the caller to execute them and continue the
// conversation; one without is final.
type Response struct {
	Content   string
	ToolCalls []ToolCall
}
