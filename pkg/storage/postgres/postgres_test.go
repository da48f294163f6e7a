package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	pgmodule "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/onedayrun/platform/pkg/api"
	"github.com/onedayrun/platform/pkg/storage"
)

func init() {
	// Configure testcontainers to use podman.
	// Detect the podman socket from `podman machine inspect`.
	if os.Getenv("DOCKER_HOST") == "" {
		out, err := exec.Command("podman", "machine", "inspect", "--format", "{{.ConnectionInfo.PodmanSocket.Path}}").Output()
		if err == nil {
			sock := strings.TrimSpace(string(out))
			if sock != "" {
				os.Setenv("DOCKER_HOST", "unix://"+sock)
			}
		}
	}
	// Ryuk needs privileged mode with podman.
	if os.Getenv("TESTCONTAINERS_RYUK_CONTAINER_PRIVILEGED") == "" {
		os.Setenv("TESTCONTAINERS_RYUK_CONTAINER_PRIVILEGED", "true")
	}
}

// setupTestDB starts a PostgreSQL container and returns a connected Archive.
// Tests are skipped if no container runtime is available.
func setupTestDB(t *testing.T) *Archive {
	t.Helper()

	if os.Getenv("SKIP_INTEGRATION") == "true" {
		t.Skip("SKIP_INTEGRATION=true, skipping PostgreSQL integration tests")
	}

	if _, err := exec.LookPath("podman"); err != nil {
		t.Skip("podman not found, skipping integration tests")
	}

	ctx := context.Background()

	container, err := pgmodule.Run(ctx,
		"postgres:16-alpine",
		pgmodule.WithDatabase("onedayrun_test"),
		pgmodule.WithUsername("test"),
		pgmodule.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Skipf("skipping: could not start PostgreSQL container (is podman running?): %v", err)
	}

	t.Cleanup(func() {
		container.Terminate(context.Background())
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("getting connection string: %v", err)
	}

	archive, err := New(ctx, Config{
		DSN:            connStr,
		MaxConns:       5,
		MinConns:       1,
		MigrateOnStart: true,
	})
	if err != nil {
		t.Fatalf("creating archive: %v", err)
	}

	t.Cleanup(func() {
		archive.Close()
	})

	return archive
}

func makeTestProject(client string) *api.ProjectContext {
	p := api.NewProjectContext(client, "24h")
	p.ProjectID = fmt.Sprintf("proj_%s_%d", strings.ToLower(client), time.Now().UnixNano())
	p.Requirements["raw"] = "an online shop API"
	p.FilesGenerated = []string{"src/main.py"}
	return p
}

func TestPostgres_SaveAndGet(t *testing.T) {
	archive := setupTestDB(t)
	ctx := context.Background()

	p := makeTestProject("Acme")
	if err := archive.Save(ctx, p); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := archive.Get(ctx, p.ProjectID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.ClientName != "Acme" || got.Tier != "24h" {
		t.Errorf("snapshot = %+v", got)
	}
	if got.Requirements["raw"] != "an online shop API" {
		t.Errorf("requirements = %v", got.Requirements)
	}
	if len(got.FilesGenerated) != 1 || got.FilesGenerated[0] != "src/main.py" {
		t.Errorf("files = %v", got.FilesGenerated)
	}
}

func TestPostgres_GetNotFound(t *testing.T) {
	archive := setupTestDB(t)

	_, err := archive.Get(context.Background(), "proj_nonexistent")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPostgres_SaveUpserts(t *testing.T) {
	archive := setupTestDB(t)
	ctx := context.Background()

	p := makeTestProject("Acme")
	if err := archive.Save(ctx, p); err != nil {
		t.Fatalf("first save failed: %v", err)
	}

	p.CurrentPhase = api.PhaseDeployment
	p.TokensUsed = 4200
	p.Touch()
	if err := archive.Save(ctx, p); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	got, err := archive.Get(ctx, p.ProjectID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.CurrentPhase != api.PhaseDeployment || got.TokensUsed != 4200 {
		t.Errorf("upsert not reflected: %+v", got)
	}
}

func TestPostgres_Delete(t *testing.T) {
	archive := setupTestDB(t)
	ctx := context.Background()

	p := makeTestProject("Acme")
	archive.Save(ctx, p)

	if err := archive.Delete(ctx, p.ProjectID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := archive.Get(ctx, p.ProjectID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := archive.Delete(ctx, p.ProjectID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound on double delete, got %v", err)
	}
}

func TestPostgres_ListFilters(t *testing.T) {
	archive := setupTestDB(t)
	ctx := context.Background()

	acme1 := makeTestProject("Acme")
	acme2 := makeTestProject("Acme")
	acme2.CurrentPhase = api.PhaseTesting
	beta := makeTestProject("Beta")

	for _, p := range []*api.ProjectContext{acme1, acme2, beta} {
		if err := archive.Save(ctx, p); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	acme, err := archive.List(ctx, storage.ListOptions{ClientName: "Acme"})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(acme) != 2 {
		t.Errorf("client filter: len = %d, want 2", len(acme))
	}

	inTesting, err := archive.List(ctx, storage.ListOptions{ClientName: "Acme", Phase: api.PhaseTesting})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(inTesting) != 1 || inTesting[0].ProjectID != acme2.ProjectID {
		t.Errorf("phase filter: %+v", inTesting)
	}
}

func TestPostgres_HealthCheck(t *testing.T) {
	archive := setupTestDB(t)
	if err := archive.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck failed: %v", err)
	}
}
