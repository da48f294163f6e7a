// Package session implements the per-conversation orchestration engine:
// prompt building, provider streaming, tool-call reassembly and dispatch,
// phase tracking, and the process-wide session registry.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/onedayrun/platform/pkg/api"
	"github.com/onedayrun/platform/pkg/observability"
	"github.com/onedayrun/platform/pkg/provider"
	"github.com/onedayrun/platform/pkg/storage"
	"github.com/onedayrun/platform/pkg/tools"
)

// Config carries the engine's provider call parameters.
type Config struct {
	// Model is the model identifier sent to the provider.
	Model string

	// MaxTurns bounds the number of provider calls per chat turn,
	// including follow-up turns after tool dispatch.
	MaxTurns int

	// Temperature for provider sampling.
	Temperature float64

	// MaxTokens caps the provider's output per call.
	MaxTokens int
}

func (c Config) maxTurns() int {
	if c.MaxTurns <= 0 {
		return 4
	}
	return c.MaxTurns
}

// Engine runs one conversation. It owns the conversation history, the
// project context, and token accounting. Chat turns on one Engine are
// strictly sequential: a second Chat while one is in flight is rejected.
// Project state reads (Progress, Snapshot) and out-of-turn writes (Mutate)
// are allowed concurrently with a turn.
type Engine struct {
	// mu is held for the whole of a chat turn.
	mu sync.Mutex

	// stateMu guards the project context fields. The turn goroutine and
	// tool handlers write under it; Progress/Snapshot/Mutate let the HTTP
	// and WebSocket handlers read and write mid-turn without racing.
	stateMu sync.RWMutex

	provider provider.Provider
	deps     tools.Deps
	cfg      Config
	logger   *slog.Logger

	project  *api.ProjectContext
	registry *tools.Registry
	history  []provider.Message
}

// NewEngine creates an Engine without an active project. StartProject must
// be called before Chat.
func NewEngine(p provider.Provider, deps tools.Deps, cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		provider: p,
		deps:     deps,
		cfg:      cfg,
		logger:   logger,
	}
}

// StartProject creates a fresh project context in the discovery phase and
// resets the conversation history.
func (e *Engine) StartProject(clientName, tier string) (*api.ProjectContext, error) {
	if !api.ValidTier(tier) {
		return nil, api.NewInvalidRequestError("tier", "unknown pricing tier: "+tier)
	}

	e.stateMu.Lock()
	e.project = api.NewProjectContext(clientName, tier)
	e.registry = tools.New(e.project, &e.stateMu, e.deps, e.logger)
	e.history = nil
	e.stateMu.Unlock()

	e.logger.Info("project started",
		"project_id", e.project.ProjectID, "client", clientName, "tier", tier)
	return e.project, nil
}

// Snapshot returns a deep copy of the project context taken under the
// state lock, or nil when no project is active. Callers can read and
// serialize it without racing an in-flight chat turn.
func (e *Engine) Snapshot() *api.ProjectContext {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()
	return storage.Clone(e.project)
}

// Mutate applies fn to the project context under the state lock. It is
// the write path for collaborators outside the chat turn, such as the
// HTTP handlers binding a repository or recording a deployment.
func (e *Engine) Mutate(fn func(*api.ProjectContext)) error {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	if e.project == nil {
		return api.NewSessionStateError("no active project")
	}
	fn(e.project)
	return nil
}

// Progress returns the project progress snapshot.
func (e *Engine) Progress() (*api.ProgressReport, error) {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()
	if e.project == nil {
		return nil, api.NewSessionStateError("no active project")
	}
	report := e.project.Progress()
	return &report, nil
}

// AdvancePhase moves the project to the target phase. The engine does not
// validate transition ordering; sequencing is the business layer's call.
func (e *Engine) AdvancePhase(target api.Phase) error {
	if !target.Valid() {
		return api.NewInvalidRequestError("phase", "unknown phase: "+string(target))
	}
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	if e.project == nil {
		return api.NewSessionStateError("no active project")
	}
	e.project.CurrentPhase = target
	e.project.Touch()
	return nil
}

func (e *Engine) hasProject() bool {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()
	return e.project != nil
}

// Chat processes one user message and returns the event stream for the
// turn. The returned error covers pre-flight failures only (no project, a
// chat already in flight); every mid-stream failure arrives as a single
// error event on the channel. Channel close marks end of turn.
func (e *Engine) Chat(ctx context.Context, userMessage string) (<-chan api.ChatEvent, error) {
	if !e.mu.TryLock() {
		return nil, api.NewSessionStateError("a chat turn is already in progress")
	}
	if !e.hasProject() {
		e.mu.Unlock()
		return nil, api.NewSessionStateError("no active project")
	}

	e.history = append(e.history, provider.Message{Role: "user", Content: userMessage})

	ch := make(chan api.ChatEvent, 16)
	go e.run(ctx, ch)
	return ch, nil
}

// Complete processes one user message without streaming and returns the
// full assistant text. Tool calls are not dispatched on this path.
func (e *Engine) Complete(ctx context.Context, userMessage string) (string, error) {
	if !e.mu.TryLock() {
		return "", api.NewSessionStateError("a chat turn is already in progress")
	}
	defer e.mu.Unlock()
	if !e.hasProject() {
		return "", api.NewSessionStateError("no active project")
	}

	e.history = append(e.history, provider.Message{Role: "user", Content: userMessage})

	start := time.Now()
	resp, err := e.provider.Complete(ctx, e.buildRequest(false))
	e.recordProviderCall(err == nil, time.Since(start), nil)
	if err != nil {
		return "", err
	}

	e.history = append(e.history, provider.Message{Role: "assistant", Content: resp.Text})
	e.stateMu.Lock()
	e.project.AddTokens(api.EstimateTokens(resp.Text))
	e.project.Touch()
	e.stateMu.Unlock()
	return resp.Text, nil
}

// run executes the turn loop: stream a provider response, emit text deltas
// as they arrive, dispatch finalized tool calls, fold the results into
// history, and loop back to the provider until it answers without tools
// or the turn budget runs out.
func (e *Engine) run(ctx context.Context, ch chan<- api.ChatEvent) {
	defer e.mu.Unlock()
	defer close(ch)

	for turn := 0; turn < e.cfg.maxTurns(); turn++ {
		// Transport gone: abandon the turn. Dispatched tool calls have
		// already completed or failed on their own.
		if ctx.Err() != nil {
			return
		}

		start := time.Now()
		eventCh, err := e.provider.Stream(ctx, e.buildRequest(true))
		if err != nil {
			e.recordProviderCall(false, time.Since(start), nil)
			if ctx.Err() == nil {
				ch <- errorEvent(err)
			}
			return
		}

		acc := NewAccumulator()
		var streamErr error
		for ev := range eventCh {
			if streamErr != nil {
				continue // drain so the producer can finish
			}
			if ev.Type == provider.EventError {
				streamErr = ev.Err
				continue
			}
			if delta := acc.Feed(ev); delta != "" {
				ch <- api.ChatEvent{Type: api.ChatEventTextDelta, Delta: delta}
			}
		}

		e.recordProviderCall(streamErr == nil, time.Since(start), acc.Usage())

		if streamErr != nil {
			// Partial assistant text is not folded into history.
			if ctx.Err() == nil {
				ch <- errorEvent(streamErr)
			}
			return
		}

		text := acc.Text()
		calls := acc.FinalizeToolCalls()

		if len(calls) == 0 {
			e.history = append(e.history, provider.Message{Role: "assistant", Content: text})
			e.stateMu.Lock()
			e.project.AddTokens(api.EstimateTokens(text))
			e.project.Touch()
			e.stateMu.Unlock()
			return
		}

		// The assistant message carrying the tool calls must precede the
		// tool-role results per Chat Completions convention.
		e.history = append(e.history, assistantToolCallMessage(text, calls))
		e.stateMu.Lock()
		e.project.AddTokens(api.EstimateTokens(text))
		e.project.Touch()
		e.stateMu.Unlock()

		for _, call := range calls {
			ch <- api.ChatEvent{Type: api.ChatEventToolStatus, Tool: call.Name, Status: api.ToolStatusRunning}

			res := e.registry.Dispatch(ctx, call)

			status := api.ToolStatusDone
			if res.IsError {
				status = api.ToolStatusFailed
			}
			ch <- api.ChatEvent{Type: api.ChatEventToolStatus, Tool: call.Name, Status: status}

			e.history = append(e.history, provider.Message{
				Role:       "tool",
				Content:    res.Output,
				ToolCallID: res.CallID,
				Name:       call.Name,
			})
		}
	}

	e.logger.Warn("turn budget exhausted",
		"project_id", e.project.ProjectID, "max_turns", e.cfg.maxTurns())
}

// buildRequest assembles the provider request from the system prompt, the
// accumulated history, and the tool schemas.
func (e *Engine) buildRequest(stream bool) *provider.Request {
	// The prompt serializes the project context, which a collaborator may
	// be mutating through Mutate at the same time.
	e.stateMu.RLock()
	prompt := BuildSystemPrompt(e.project)
	e.stateMu.RUnlock()

	messages := make([]provider.Message, 0, len(e.history)+1)
	messages = append(messages, provider.Message{
		Role:    "system",
		Content: prompt,
	})
	messages = append(messages, e.history...)

	temperature := e.cfg.Temperature
	maxTokens := e.cfg.MaxTokens

	req := &provider.Request{
		Model:       e.cfg.Model,
		Messages:    messages,
		Tools:       tools.Definitions(),
		Temperature: &temperature,
		Stream:      stream,
	}
	if maxTokens > 0 {
		req.MaxTokens = &maxTokens
	}
	return req
}

// recordProviderCall updates the provider metrics for one call.
func (e *Engine) recordProviderCall(success bool, elapsed time.Duration, usage *provider.Usage) {
	name := e.provider.Name()
	status := "success"
	if !success {
		status = "error"
	}
	observability.ProviderRequestsTotal.WithLabelValues(name, e.cfg.Model, status).Inc()
	observability.ProviderLatency.WithLabelValues(name, e.cfg.Model).Observe(elapsed.Seconds())
	if usage != nil {
		observability.ProviderTokensTotal.WithLabelValues(name, e.cfg.Model, "input").Add(float64(usage.PromptTokens))
		observability.ProviderTokensTotal.WithLabelValues(name, e.cfg.Model, "output").Add(float64(usage.CompletionTokens))
	}
}

// assistantToolCallMessage builds the assistant history entry for a turn
// that requested tools.
func assistantToolCallMessage(text string, calls []tools.Call) provider.Message {
	toolCalls := make([]provider.ToolCall, 0, len(calls))
	for _, c := range calls {
		toolCalls = append(toolCalls, provider.ToolCall{
			ID:   c.ID,
			Type: "function",
			Function: provider.FunctionCall{
				Name:      c.Name,
				Arguments: c.Arguments,
			},
		})
	}
	return provider.Message{
		Role:      "assistant",
		Content:   text,
		ToolCalls: toolCalls,
	}
}

// errorEvent wraps a provider failure as the turn's single error event.
func errorEvent(err error) api.ChatEvent {
	var appErr *api.AppError
	if !errors.As(err, &appErr) {
		appErr = api.NewProviderError(err.Error())
	}
	return api.ChatEvent{Type: api.ChatEventError, Err: appErr}
}
