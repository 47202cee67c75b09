// ABOUTME: Package documentation for the model/tool-server bridge.
// ABOUTME: Describes the conversation loop and the JSON-RPC caller types.

// Package bridge connects a chat model to the tool server.
//
// Loop.Run answers one user prompt: it loads the server's tool catalog,
// then alternates between model completions and tool execution. Each tool
// call is issued through a Caller, which is either HTTPCaller against a
// remote /mcp endpoint or LocalCaller against an in-process dispatcher.
// Tool failures are fed back to the model as an error payload rather than
// aborting the conversation; only transport and provider failures end the
// run early. A conversation that exhausts its round cap returns
// FallbackMessage.
package bridge
