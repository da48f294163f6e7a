package litellm

import "time"

// Config holds configuration for the LiteLLM provider adapter.
type Config struct {
	// BaseURL is the backend URL (e.g., "http://localhost:4000" for a
	// LiteLLM proxy, "http://localhost:11434" for Ollama).
	BaseURL string

	// APIKey for backend authentication (optional).
	APIKey string

	// Timeout for individual HTTP requests. Defaults to 120s.
	Timeout time.Duration

	// SupportsTools declares whether the backend accepts tool schemas.
	// When false the adapter still tries to send them once per request
	// and falls back to a tool-free retry on rejection.
	SupportsTools bool

	// ModelMapping maps requested model names to backend model identifiers.
	// For example: {"gpt-4": "openai/gpt-4", "claude": "anthropic/claude-sonnet"}.
	// If a model is not in the map, it is passed through unchanged.
	ModelMapping map[string]string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:       baseURL,
		Timeout:       120 * time.Second,
		SupportsTools: true,
	}
}
