package tools

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	gh "github.com/google/go-github/v60/github"

	"github.com/onedayrun/platform/pkg/api"
	"github.com/onedayrun/platform/pkg/catalog"
	"github.com/onedayrun/platform/pkg/deploy"
	"github.com/onedayrun/platform/pkg/repository"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newRegistry(t *testing.T, project *api.ProjectContext, deps Deps) *Registry {
	t.Helper()
	return New(project, nil, deps, testLogger())
}

func decodeOutput(t *testing.T, res Result) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal([]byte(res.Output), &out); err != nil {
		t.Fatalf("tool output is not valid JSON: %v\noutput: %s", err, res.Output)
	}
	return out
}

func githubService(t *testing.T, handler http.Handler) *repository.Service {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := gh.NewClient(nil)
	base, err := url.Parse(srv.URL + "/")
	if err != nil {
		t.Fatalf("parsing test server URL: %v", err)
	}
	client.BaseURL = base
	return repository.NewWithClient(client, "", testLogger())
}

func TestDispatchUnknownTool(t *testing.T) {
	r := newRegistry(t, api.NewProjectContext("client", "24h"), Deps{})

	res := r.Dispatch(context.Background(), Call{ID: "call_1", Name: "nonexistent"})
	if !res.IsError {
		t.Error("expected error result for unknown tool")
	}
	out := decodeOutput(t, res)
	if out["error"] != "Unknown tool: nonexistent" {
		t.Errorf("unexpected error message: %v", out["error"])
	}
}

func TestDispatchMalformedArgumentsFallsBackToEmpty(t *testing.T) {
	r := newRegistry(t, api.NewProjectContext("client", "24h"), Deps{Library: catalog.NewLibrary()})

	res := r.Dispatch(context.Background(), Call{
		ID:        "call_1",
		Name:      "search_components",
		Arguments: `{"query": "auth`,
	})
	if res.IsError {
		t.Errorf("expected fallback dispatch to succeed, got error: %s", res.Output)
	}
	out := decodeOutput(t, res)
	if out["success"] != true {
		t.Errorf("expected success=true, got %v", out["success"])
	}
}

func TestDispatchRecoversFromPanic(t *testing.T) {
	r := newRegistry(t, api.NewProjectContext("client", "24h"), Deps{})
	r.handlers["boom"] = func(ctx context.Context, args map[string]any) map[string]any {
		panic("exploded")
	}

	res := r.Dispatch(context.Background(), Call{ID: "call_1", Name: "boom"})
	if !res.IsError {
		t.Error("expected error result after panic")
	}
	if !strings.Contains(res.Output, "panicked") {
		t.Errorf("expected panic message in output, got: %s", res.Output)
	}
}

func TestSearchComponentsWithoutLibrary(t *testing.T) {
	r := newRegistry(t, api.NewProjectContext("client", "24h"), Deps{})

	res := r.Dispatch(context.Background(), Call{
		ID: "call_1", Name: "search_components", Arguments: `{"query": "auth"}`,
	})
	out := decodeOutput(t, res)
	if out["message"] != "Component service not available" {
		t.Errorf("unexpected message: %v", out["message"])
	}
	if out["success"] != true {
		t.Error("missing library should still answer success=true")
	}
}

func TestSearchComponentsFindsByQuery(t *testing.T) {
	r := newRegistry(t, api.NewProjectContext("client", "24h"), Deps{Library: catalog.NewLibrary()})

	res := r.Dispatch(context.Background(), Call{
		ID: "call_1", Name: "search_components", Arguments: `{"query": "jwt"}`,
	})
	out := decodeOutput(t, res)
	components, ok := out["components"].([]any)
	if !ok || len(components) == 0 {
		t.Fatalf("expected components in result, got: %s", res.Output)
	}
	first := components[0].(map[string]any)
	if first["id"] != "auth-fastapi-jwt" {
		t.Errorf("expected auth-fastapi-jwt first, got %v", first["id"])
	}
}

func TestGenerateCodeDelegates(t *testing.T) {
	r := newRegistry(t, api.NewProjectContext("client", "24h"), Deps{})

	res := r.Dispatch(context.Background(), Call{
		ID: "call_1", Name: "generate_code",
		Arguments: `{"module_name": "auth", "description": "login flow"}`,
	})
	out := decodeOutput(t, res)
	if out["message"] != "Code generation delegated to main conversation" {
		t.Errorf("unexpected message: %v", out["message"])
	}
}

func TestCreateFileWithoutRepo(t *testing.T) {
	r := newRegistry(t, api.NewProjectContext("client", "24h"), Deps{})

	res := r.Dispatch(context.Background(), Call{
		ID: "call_1", Name: "create_file",
		Arguments: `{"path": "README.md", "content": "hi"}`,
	})
	if !res.IsError {
		t.Error("expected error without a configured repository")
	}
	out := decodeOutput(t, res)
	if out["error"] != "GitHub not configured or no repo selected" {
		t.Errorf("unexpected error: %v", out["error"])
	}
}

func TestCreateFileCommitsAndRecordsPath(t *testing.T) {
	svc := githubService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.Method {
		case http.MethodGet:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"message": "Not Found"}`))
		case http.MethodPut:
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"content": {"sha": "blob1"}, "commit": {"sha": "commit1"}}`))
		}
	}))

	project := api.NewProjectContext("client", "24h")
	project.GithubRepo = "acme/demo"
	r := newRegistry(t, project, Deps{GitHub: svc})

	res := r.Dispatch(context.Background(), Call{
		ID: "call_1", Name: "create_file",
		Arguments: `{"path": "src/main.py", "content": "print('hi')"}`,
	})
	if res.IsError {
		t.Fatalf("unexpected error: %s", res.Output)
	}
	if len(project.FilesGenerated) != 1 || project.FilesGenerated[0] != "src/main.py" {
		t.Errorf("expected file recorded in project context, got %v", project.FilesGenerated)
	}
}

func TestCreateFileFailureLeavesContextUnchanged(t *testing.T) {
	svc := githubService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	project := api.NewProjectContext("client", "24h")
	project.GithubRepo = "acme/demo"
	r := newRegistry(t, project, Deps{GitHub: svc})

	res := r.Dispatch(context.Background(), Call{
		ID: "call_1", Name: "create_file",
		Arguments: `{"path": "src/main.py", "content": "print('hi')"}`,
	})
	if !res.IsError {
		t.Error("expected error result")
	}
	if len(project.FilesGenerated) != 0 {
		t.Errorf("failed commit must not record files, got %v", project.FilesGenerated)
	}
}

func TestDeployProjectUnavailablePlatform(t *testing.T) {
	project := api.NewProjectContext("client", "24h")
	project.GithubRepo = "acme/demo"
	r := newRegistry(t, project, Deps{Deployments: deploy.NewManager("", "", "", testLogger())})

	res := r.Dispatch(context.Background(), Call{
		ID: "call_1", Name: "deploy_project", Arguments: `{"platform": "vercel"}`,
	})
	if !res.IsError {
		t.Error("expected error result")
	}
	out := decodeOutput(t, res)
	if out["error"] != "Deployer for vercel not available" {
		t.Errorf("unexpected error: %v", out["error"])
	}
}

func TestDeployProjectUpdatesContext(t *testing.T) {
	project := api.NewProjectContext("client", "24h")
	project.GithubRepo = "acme/shop-api"
	r := newRegistry(t, project, Deps{Deployments: deploy.NewManager("token", "", "", testLogger())})

	res := r.Dispatch(context.Background(), Call{
		ID: "call_1", Name: "deploy_project", Arguments: `{"platform": "railway"}`,
	})
	if res.IsError {
		t.Fatalf("unexpected error: %s", res.Output)
	}
	if project.DeploymentPlatform != "railway" {
		t.Errorf("expected platform recorded, got %q", project.DeploymentPlatform)
	}
	if project.DeploymentURL != "https://shop-api.up.railway.app" {
		t.Errorf("unexpected deployment URL %q", project.DeploymentURL)
	}
}

func TestRunTests(t *testing.T) {
	r := newRegistry(t, api.NewProjectContext("client", "24h"), Deps{})

	res := r.Dispatch(context.Background(), Call{ID: "call_1", Name: "run_tests"})
	out := decodeOutput(t, res)
	if out["passed"] != true {
		t.Errorf("expected passed=true, got %v", out["passed"])
	}
}

func TestAnalyzeRequirementsAdvancesPhase(t *testing.T) {
	project := api.NewProjectContext("client", "24h")
	r := newRegistry(t, project, Deps{})

	res := r.Dispatch(context.Background(), Call{
		ID: "call_1", Name: "analyze_requirements",
		Arguments: `{"requirements_text": "shop with payments"}`,
	})
	if res.IsError {
		t.Fatalf("unexpected error: %s", res.Output)
	}
	if project.Requirements["raw"] != "shop with payments" {
		t.Errorf("requirements not stored: %v", project.Requirements)
	}
	if project.CurrentPhase != api.PhasePlanning {
		t.Errorf("expected planning phase, got %s", project.CurrentPhase)
	}
	out := decodeOutput(t, res)
	if out["suggested_stack"] != "python_fastapi" {
		t.Errorf("unexpected suggested stack: %v", out["suggested_stack"])
	}
}

func TestDefinitionsAreValidSchemas(t *testing.T) {
	defs := Definitions()
	if len(defs) != 6 {
		t.Fatalf("expected 6 tool definitions, got %d", len(defs))
	}
	for _, d := range defs {
		if d.Type != "function" {
			t.Errorf("tool %s: expected type function, got %s", d.Function.Name, d.Type)
		}
		var schema map[string]any
		if err := json.Unmarshal(d.Function.Parameters, &schema); err != nil {
			t.Errorf("tool %s: invalid parameters schema: %v", d.Function.Name, err)
		}
	}
}
