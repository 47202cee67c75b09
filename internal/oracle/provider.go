// ABOUTME: Provider abstraction over chat completion backends.
// ABOUTME: The loop depends on this interface, not on a concrete API client.

package oracle

import "context"

// Provider produces one chat completion for a conversation. Implementations
// must be safe for concurrent use.
type Provider interface {
	Complete(ctx context.Context, messages []Message, tools []ToolSpec) (*Response, error)
}
