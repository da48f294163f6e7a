package repository

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
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestService points a Service at a stub GitHub API server.
func newTestService(t *testing.T, org string, handler http.Handler) *Service {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := gh.NewClient(nil)
	base, err := url.Parse(srv.URL + "/")
	require.NoError(t, err)
	client.BaseURL = base

	return NewWithClient(client, org, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestCreateRepositoryInOrg(t *testing.T) {
	svc := newTestService(t, "prototypowanie-pl", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/orgs/prototypowanie-pl/repos", r.URL.Path)
		writeJSON(t, w, http.StatusCreated, map[string]any{
			"name":           "demo",
			"full_name":      "prototypowanie-pl/demo",
			"html_url":       "https://github.com/prototypowanie-pl/demo",
			"clone_url":      "https://github.com/prototypowanie-pl/demo.git",
			"default_branch": "main",
			"private":        true,
		})
	}))

	repo, err := svc.CreateRepository(context.Background(), "demo", "test project", true)
	require.NoError(t, err)
	assert.Equal(t, "prototypowanie-pl/demo", repo.FullName)
	assert.Equal(t, "main", repo.DefaultBranch)
	assert.True(t, repo.Private)
}

func TestCreateRepositoryFallsBackToUser(t *testing.T) {
	var orgCalled, userCalled bool
	svc := newTestService(t, "prototypowanie-pl", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/orgs/prototypowanie-pl/repos":
			orgCalled = true
			writeJSON(t, w, http.StatusForbidden, map[string]any{"message": "insufficient permissions"})
		case "/user/repos":
			userCalled = true
			writeJSON(t, w, http.StatusCreated, map[string]any{
				"name":           "demo",
				"full_name":      "tester/demo",
				"default_branch": "main",
			})
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	repo, err := svc.CreateRepository(context.Background(), "demo", "", true)
	require.NoError(t, err)
	assert.True(t, orgCalled)
	assert.True(t, userCalled)
	assert.Equal(t, "tester/demo", repo.FullName)
}

func TestUpsertFileCreatesWhenMissing(t *testing.T) {
	var putBody string
	svc := newTestService(t, "", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			writeJSON(t, w, http.StatusNotFound, map[string]any{"message": "Not Found"})
		case http.MethodPut:
			b, _ := io.ReadAll(r.Body)
			putBody = string(b)
			writeJSON(t, w, http.StatusCreated, map[string]any{
				"content": map[string]any{"sha": "blob1"},
				"commit":  map[string]any{"sha": "commit1"},
			})
		default:
			t.Errorf("unexpected method %s", r.Method)
		}
	}))

	sha, err := svc.UpsertFile(context.Background(), "acme/demo", "README.md", "hello", "", "main")
	require.NoError(t, err)
	assert.Equal(t, "commit1", sha)
	assert.NotContains(t, putBody, `"sha"`)
	assert.Contains(t, putBody, `"message":"Add README.md"`)
}

func TestUpsertFileUpdatesWhenPresent(t *testing.T) {
	var putBody string
	svc := newTestService(t, "", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			writeJSON(t, w, http.StatusOK, map[string]any{
				"type": "file", "path": "README.md", "sha": "oldsha",
			})
		case http.MethodPut:
			b, _ := io.ReadAll(r.Body)
			putBody = string(b)
			writeJSON(t, w, http.StatusOK, map[string]any{
				"content": map[string]any{"sha": "blob2"},
				"commit":  map[string]any{"sha": "commit2"},
			})
		default:
			t.Errorf("unexpected method %s", r.Method)
		}
	}))

	sha, err := svc.UpsertFile(context.Background(), "acme/demo", "README.md", "hello again", "", "main")
	require.NoError(t, err)
	assert.Equal(t, "commit2", sha)
	assert.Contains(t, putBody, `"sha":"oldsha"`)
	assert.Contains(t, putBody, `"message":"Update README.md"`)
}

func TestCommitFilesAtomic(t *testing.T) {
	var blobs, trees, commits, refUpdates int
	svc := newTestService(t, "", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		switch {
		case r.Method == http.MethodGet && strings.Contains(path, "/git/ref/"):
			writeJSON(t, w, http.StatusOK, map[string]any{
				"ref":    "refs/heads/main",
				"object": map[string]any{"sha": "tipsha", "type": "commit"},
			})
		case r.Method == http.MethodGet && strings.Contains(path, "/git/commits/"):
			writeJSON(t, w, http.StatusOK, map[string]any{
				"sha":  "tipsha",
				"tree": map[string]any{"sha": "basetree"},
			})
		case r.Method == http.MethodPost && strings.Contains(path, "/git/blobs"):
			blobs++
			writeJSON(t, w, http.StatusCreated, map[string]any{"sha": "blobsha"})
		case r.Method == http.MethodPost && strings.Contains(path, "/git/trees"):
			trees++
			b, _ := io.ReadAll(r.Body)
			assert.Contains(t, string(b), `"base_tree":"basetree"`)
			writeJSON(t, w, http.StatusCreated, map[string]any{"sha": "newtree"})
		case r.Method == http.MethodPost && strings.Contains(path, "/git/commits"):
			commits++
			writeJSON(t, w, http.StatusCreated, map[string]any{"sha": "newcommit"})
		case r.Method == http.MethodPatch && strings.Contains(path, "/git/refs/"):
			refUpdates++
			writeJSON(t, w, http.StatusOK, map[string]any{
				"ref":    "refs/heads/main",
				"object": map[string]any{"sha": "newcommit"},
			})
		default:
			t.Errorf("unexpected request: %s %s", r.Method, path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	commit, err := svc.CommitFiles(context.Background(), "acme/demo", "main", "Initial project structure", []FileChange{
		{Path: "src/main.py", Content: "print('hi')"},
		{Path: "requirements.txt", Content: "fastapi"},
	})
	require.NoError(t, err)
	assert.Equal(t, "newcommit", commit.SHA)
	assert.Equal(t, 2, commit.FilesChanged)
	assert.Equal(t, "main", commit.Branch)
	assert.Equal(t, "https://github.com/acme/demo/commit/newcommit", commit.URL)

	assert.Equal(t, 2, blobs)
	assert.Equal(t, 1, trees)
	assert.Equal(t, 1, commits)
	assert.Equal(t, 1, refUpdates)
}

func TestCommitFilesRequiresFiles(t *testing.T) {
	svc := newTestService(t, "", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	}))

	_, err := svc.CommitFiles(context.Background(), "acme/demo", "main", "msg", nil)
	assert.Error(t, err)
}

func TestSetupProjectSeedsBasicStructure(t *testing.T) {
	var createdRepo bool
	var committedPaths []string
	svc := newTestService(t, "", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		switch {
		case r.Method == http.MethodPost && path == "/user/repos":
			createdRepo = true
			writeJSON(t, w, http.StatusCreated, map[string]any{
				"name":           "shop-api",
				"full_name":      "tester/shop-api",
				"default_branch": "main",
			})
		case r.Method == http.MethodGet && strings.Contains(path, "/git/ref/"):
			writeJSON(t, w, http.StatusOK, map[string]any{
				"ref":    "refs/heads/main",
				"object": map[string]any{"sha": "tipsha"},
			})
		case r.Method == http.MethodGet && strings.Contains(path, "/git/commits/"):
			writeJSON(t, w, http.StatusOK, map[string]any{
				"sha": "tipsha", "tree": map[string]any{"sha": "basetree"},
			})
		case r.Method == http.MethodPost && strings.Contains(path, "/git/blobs"):
			writeJSON(t, w, http.StatusCreated, map[string]any{"sha": "blobsha"})
		case r.Method == http.MethodPost && strings.Contains(path, "/git/trees"):
			var body struct {
				Tree []struct {
					Path string `json:"path"`
				} `json:"tree"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			for _, e := range body.Tree {
				committedPaths = append(committedPaths, e.Path)
			}
			writeJSON(t, w, http.StatusCreated, map[string]any{"sha": "newtree"})
		case r.Method == http.MethodPost && strings.Contains(path, "/git/commits"):
			writeJSON(t, w, http.StatusCreated, map[string]any{"sha": "newcommit"})
		case r.Method == http.MethodPatch && strings.Contains(path, "/git/refs/"):
			writeJSON(t, w, http.StatusOK, map[string]any{"ref": "refs/heads/main"})
		default:
			t.Errorf("unexpected request: %s %s", r.Method, path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	repo, err := svc.SetupProject(context.Background(), "shop-api", "node_express", "demo shop")
	require.NoError(t, err)
	assert.True(t, createdRepo)
	assert.Equal(t, "tester/shop-api", repo.FullName)
	assert.ElementsMatch(t, []string{"src/index.js", "package.json", ".gitignore"}, committedPaths)
}

func TestSetupProjectUnknownStackSkipsSeeding(t *testing.T) {
	svc := newTestService(t, "", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.URL.Path == "/user/repos" {
			writeJSON(t, w, http.StatusCreated, map[string]any{
				"name": "x", "full_name": "tester/x", "default_branch": "main",
			})
			return
		}
		t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
	}))

	_, err := svc.SetupProject(context.Background(), "x", "golang_gin", "")
	require.NoError(t, err)
}

func TestStructureRecursesIntoDirectories(t *testing.T) {
	svc := newTestService(t, "", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/contents/"):
			writeJSON(t, w, http.StatusOK, []map[string]any{
				{"type": "dir", "name": "src", "path": "src"},
				{"type": "file", "name": "README.md", "path": "README.md", "size": 42},
			})
		case strings.HasSuffix(r.URL.Path, "/contents/src"):
			writeJSON(t, w, http.StatusOK, []map[string]any{
				{"type": "file", "name": "main.py", "path": "src/main.py", "size": 7},
			})
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	entries, err := svc.Structure(context.Background(), "acme/demo", "", "")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "dir", entries[0].Type)
	require.Len(t, entries[0].Children, 1)
	assert.Equal(t, "src/main.py", entries[0].Children[0].Path)
	assert.Equal(t, "file", entries[1].Type)
	assert.Equal(t, 42, entries[1].Size)
}

func TestSplitFullName(t *testing.T) {
	owner, repo, err := splitFullName("acme/demo")
	require.NoError(t, err)
	assert.Equal(t, "acme", owner)
	assert.Equal(t, "demo", repo)

	for _, bad := range []string{"", "acme", "/demo", "acme/"} {
		_, _, err := splitFullName(bad)
		assert.Error(t, err, "input %q", bad)
	}
}

func TestNewRequiresToken(t *testing.T) {
	_, err := New("", "org", nil)
	assert.Error(t, err)
}
