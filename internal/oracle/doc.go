// Package oracle defines the provider-neutral conversation types used by
// the chat loop and an OpenAI-backed Provider implementation.
package oracle
