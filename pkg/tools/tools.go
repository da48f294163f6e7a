// Package tools implements the function tools the model can call during a
// project conversation: component search, code generation, repository file
// creation, deployment, test runs, and requirements analysis.
//
// A Registry is bound to one project context and its collaborators. Tool
// handlers return JSON-serializable result maps in the shape the model
// receives back as tool output.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/onedayrun/platform/pkg/api"
	"github.com/onedayrun/platform/pkg/catalog"
	"github.com/onedayrun/platform/pkg/deploy"
	"github.com/onedayrun/platform/pkg/observability"
	"github.com/onedayrun/platform/pkg/repository"
)

// Call is a model request to invoke a tool.
type Call struct {
	// ID is the unique call identifier, e.g. "call_abc123".
	ID string

	// Name is the tool function name.
	Name string

	// Arguments is the JSON-encoded arguments string.
	Arguments string
}

// Result is the output of a tool execution. Output carries the
// JSON-encoded result map handed back to the model.
type Result struct {
	CallID  string
	Name    string
	Output  string
	IsError bool
}

// Handler executes one tool against parsed arguments.
type Handler func(ctx context.Context, args map[string]any) map[string]any

// Deps are the collaborators tool handlers act on. Any of them may be nil;
// handlers then answer with their not-available fallback instead of failing.
type Deps struct {
	Library     *catalog.Library
	GitHub      *repository.Service
	Deployments *deploy.Manager
}

// Registry binds the tool handlers to one project context.
type Registry struct {
	project *api.ProjectContext

	// mu guards the project context fields. Handlers run on the chat turn
	// goroutine while the transport layer reads and writes the same
	// context; the session engine shares its state lock here.
	mu *sync.RWMutex

	deps     Deps
	logger   *slog.Logger
	handlers map[string]Handler
}

// New creates a Registry for the given project. A nil mu gets a lock of
// its own.
func New(project *api.ProjectContext, mu *sync.RWMutex, deps Deps, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	if mu == nil {
		mu = &sync.RWMutex{}
	}
	r := &Registry{
		project: project,
		mu:      mu,
		deps:    deps,
		logger:  logger,
	}
	r.handlers = map[string]Handler{
		"search_components":    r.searchComponents,
		"generate_code":        r.generateCode,
		"create_file":          r.createFile,
		"deploy_project":       r.deployProject,
		"run_tests":            r.runTests,
		"analyze_requirements": r.analyzeRequirements,
	}
	return r
}

// Has reports whether the named tool exists.
func (r *Registry) Has(name string) bool {
	_, ok := r.handlers[name]
	return ok
}

// Dispatch routes the call to its handler, records metrics, and recovers
// from handler panics. Unparseable arguments fall back to an empty
// argument map so a malformed model call still produces a tool answer.
func (r *Registry) Dispatch(ctx context.Context, call Call) (result Result) {
	start := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("tool handler panicked",
				"tool", call.Name, "project_id", r.project.ProjectID, "panic", rec)
			result = r.encode(call, map[string]any{
				"success": false,
				"error":   fmt.Sprintf("internal error: tool %q panicked", call.Name),
			})
			observability.ToolExecutionsTotal.WithLabelValues(call.Name, "panic").Inc()
		}
	}()

	handler, ok := r.handlers[call.Name]
	if !ok {
		observability.ToolExecutionsTotal.WithLabelValues(call.Name, "unknown").Inc()
		return r.encode(call, map[string]any{
			"success": false,
			"error":   fmt.Sprintf("Unknown tool: %s", call.Name),
		})
	}

	args := map[string]any{}
	if call.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			r.logger.Warn("tool arguments are not valid JSON, dispatching with empty arguments",
				"tool", call.Name, "project_id", r.project.ProjectID, "error", err)
			args = map[string]any{}
		}
	}

	out := handler(ctx, args)

	status := "success"
	if ok, _ := out["success"].(bool); !ok {
		status = "error"
	}
	observability.ToolExecutionsTotal.WithLabelValues(call.Name, status).Inc()
	r.logger.Debug("tool executed",
		"tool", call.Name, "project_id", r.project.ProjectID,
		"status", status, "duration", time.Since(start))

	return r.encode(call, out)
}

// encode marshals the result map into a Result. IsError mirrors the
// handler's success flag.
func (r *Registry) encode(call Call, out map[string]any) Result {
	success, _ := out["success"].(bool)
	payload, err := json.Marshal(out)
	if err != nil {
		payload = []byte(`{"success":false,"error":"unserializable tool result"}`)
		success = false
	}
	return Result{
		CallID:  call.ID,
		Name:    call.Name,
		Output:  string(payload),
		IsError: !success,
	}
}

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}
