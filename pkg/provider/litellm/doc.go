// Package litellm implements provider.Provider for OpenAI-compatible Chat
// Completions backends: a LiteLLM proxy, Ollama's compatibility endpoint,
// or any server speaking the same wire format.
//
// The adapter handles SSE stream parsing, tool call fragment translation,
// model name mapping for multi-provider routing, and a one-shot fallback
// that retries a rejected request without tool schemas for backends that
// cannot accept them.
package litellm
