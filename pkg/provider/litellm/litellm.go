package litellm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/onedayrun/platform/pkg/api"
	"github.com/onedayrun/platform/pkg/provider"
)

// LiteLLMProvider implements provider.Provider for OpenAI-compatible
// backends. It delegates HTTP communication to the Client and supports
// model name mapping for multi-provider routing.
//
// Backends that cannot accept tool schemas (some Ollama models, bare
// completion proxies) reject the whole request with HTTP 400. When that
// happens and the request carried tools, the provider retries exactly once
// with the tool schemas stripped; a second failure is surfaced unchanged.
type LiteLLMProvider struct {
	cfg    Config
	client *Client
	caps   provider.Capabilities
}

// Ensure LiteLLMProvider implements provider.Provider at compile time.
var _ provider.Provider = (*LiteLLMProvider)(nil)

// New creates a new LiteLLMProvider with the given configuration.
// Returns an error if the configuration is invalid.
func New(cfg Config) (*LiteLLMProvider, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("litellm: BaseURL is required")
	}

	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}

	client := NewClient(cfg.BaseURL, cfg.APIKey, cfg.Timeout)

	if len(cfg.ModelMapping) > 0 {
		mapping := cfg.ModelMapping
		client.ModelMapper = func(model string) string {
			if mapped, ok := mapping[model]; ok {
				return mapped
			}
			return model
		}
	}

	return &LiteLLMProvider{
		cfg:    cfg,
		client: client,
		caps: provider.Capabilities{
			Streaming:   true,
			ToolCalling: cfg.SupportsTools,
		},
	}, nil
}

// Name returns the provider identifier.
func (p *LiteLLMProvider) Name() string {
	return "litellm"
}

// Capabilities returns what this provider supports.
func (p *LiteLLMProvider) Capabilities() provider.Capabilities {
	return p.caps
}

// Complete performs non-streaming inference, retrying once without tool
// schemas if the backend rejects them.
func (p *LiteLLMProvider) Complete(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	resp, err := p.client.Complete(ctx, req)
	if retryReq, ok := p.toolFallback(req, err); ok {
		return p.client.Complete(ctx, retryReq)
	}
	return resp, err
}

// Stream performs streaming inference, retrying once without tool schemas
// if the backend rejects them. The returned channel is closed when the
// stream completes, errors, or the context is cancelled.
func (p *LiteLLMProvider) Stream(ctx context.Context, req *provider.Request) (<-chan provider.Event, error) {
	ch, err := p.client.Stream(ctx, req)
	if retryReq, ok := p.toolFallback(req, err); ok {
		return p.client.Stream(ctx, retryReq)
	}
	return ch, err
}

// ListModels returns available models from the backend by querying
// the /v1/models endpoint.
func (p *LiteLLMProvider) ListModels(ctx context.Context) ([]provider.ModelInfo, error) {
	return p.client.ListModels(ctx)
}

// Close releases provider resources.
func (p *LiteLLMProvider) Close() error {
	return p.client.Close()
}

// toolFallback decides whether a failed request qualifies for the one-shot
// tool-free retry: the backend is configured as not tool-capable, the
// request carried tool schemas anyway, and the backend answered with an
// invalid_request rejection. A tool-capable backend's 400 (context length,
// bad parameter) is never retried. It returns the stripped retry request.
func (p *LiteLLMProvider) toolFallback(req *provider.Request, err error) (*provider.Request, bool) {
	if err == nil || len(req.Tools) == 0 || p.cfg.SupportsTools {
		return nil, false
	}

	var appErr *api.AppError
	if !errors.As(err, &appErr) || appErr.Type != api.ErrorTypeInvalidRequest {
		return nil, false
	}

	slog.Warn("backend rejected tool schemas, retrying without tools",
		"model", req.Model,
		"error", appErr.Message,
	)

	retryReq := *req
	retryReq.Tools = nil
	return &retryReq, true
}
