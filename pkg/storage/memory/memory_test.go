package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/onedayrun/platform/pkg/api"
	"github.com/onedayrun/platform/pkg/storage"
)

func makeProject(id, client string) *api.ProjectContext {
	p := api.NewProjectContext(client, "8h")
	p.ProjectID = id
	return p
}

func TestSaveAndGet(t *testing.T) {
	a := New(0)
	ctx := context.Background()

	p := makeProject("proj_1", "Acme")
	if err := a.Save(ctx, p); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := a.Get(ctx, "proj_1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.ClientName != "Acme" || got.Tier != "8h" {
		t.Errorf("snapshot = %+v", got)
	}
}

func TestGetNotFound(t *testing.T) {
	a := New(0)
	if _, err := a.Get(context.Background(), "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSaveUpserts(t *testing.T) {
	a := New(0)
	ctx := context.Background()

	p := makeProject("proj_1", "Acme")
	a.Save(ctx, p)

	p.CurrentPhase = api.PhaseDeployment
	p.TokensUsed = 1234
	if err := a.Save(ctx, p); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	got, err := a.Get(ctx, "proj_1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.CurrentPhase != api.PhaseDeployment || got.TokensUsed != 1234 {
		t.Errorf("upsert not reflected: %+v", got)
	}
}

func TestSnapshotDoesNotAliasLiveContext(t *testing.T) {
	a := New(0)
	ctx := context.Background()

	p := makeProject("proj_1", "Acme")
	p.FilesGenerated = []string{"main.py"}
	a.Save(ctx, p)

	// Mutations after Save must not leak into the archive.
	p.FilesGenerated = append(p.FilesGenerated, "extra.py")
	p.Requirements["raw"] = "changed"
	p.CurrentPhase = api.PhaseHandover

	got, _ := a.Get(ctx, "proj_1")
	if len(got.FilesGenerated) != 1 {
		t.Errorf("files = %v, want snapshot of 1", got.FilesGenerated)
	}
	if got.Requirements["raw"] == "changed" {
		t.Error("requirements map aliases the live context")
	}
	if got.CurrentPhase == api.PhaseHandover {
		t.Error("phase mutation leaked into the archive")
	}
}

func TestDelete(t *testing.T) {
	a := New(0)
	ctx := context.Background()

	a.Save(ctx, makeProject("proj_1", "Acme"))
	if err := a.Delete(ctx, "proj_1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := a.Get(ctx, "proj_1"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := a.Delete(ctx, "proj_1"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound on double delete, got %v", err)
	}
}

func TestLRUEviction(t *testing.T) {
	a := New(2)
	ctx := context.Background()

	a.Save(ctx, makeProject("proj_1", "Acme"))
	a.Save(ctx, makeProject("proj_2", "Beta"))

	// Re-saving proj_1 makes proj_2 the eviction candidate.
	a.Save(ctx, makeProject("proj_1", "Acme"))
	a.Save(ctx, makeProject("proj_3", "Gamma"))

	if _, err := a.Get(ctx, "proj_2"); !errors.Is(err, storage.ErrNotFound) {
		t.Error("expected proj_2 to be evicted")
	}
	if _, err := a.Get(ctx, "proj_1"); err != nil {
		t.Errorf("proj_1 should survive: %v", err)
	}
	if _, err := a.Get(ctx, "proj_3"); err != nil {
		t.Errorf("proj_3 should be present: %v", err)
	}
}

func TestListFiltersAndOrders(t *testing.T) {
	a := New(0)
	ctx := context.Background()

	p1 := makeProject("proj_1", "Acme")
	p1.UpdatedAt = time.Now().Add(-2 * time.Hour)
	p2 := makeProject("proj_2", "Acme")
	p2.CurrentPhase = api.PhaseTesting
	p2.UpdatedAt = time.Now().Add(-1 * time.Hour)
	p3 := makeProject("proj_3", "Beta")
	p3.UpdatedAt = time.Now()

	a.Save(ctx, p1)
	a.Save(ctx, p2)
	a.Save(ctx, p3)

	all, err := a.List(ctx, storage.ListOptions{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("len = %d, want 3", len(all))
	}
	if all[0].ProjectID != "proj_3" || all[2].ProjectID != "proj_1" {
		t.Errorf("not newest-first: %s, %s, %s",
			all[0].ProjectID, all[1].ProjectID, all[2].ProjectID)
	}

	acme, _ := a.List(ctx, storage.ListOptions{ClientName: "Acme"})
	if len(acme) != 2 {
		t.Errorf("client filter: len = %d, want 2", len(acme))
	}

	testing_, _ := a.List(ctx, storage.ListOptions{Phase: api.PhaseTesting})
	if len(testing_) != 1 || testing_[0].ProjectID != "proj_2" {
		t.Errorf("phase filter: %+v", testing_)
	}

	limited, _ := a.List(ctx, storage.ListOptions{Limit: 1})
	if len(limited) != 1 || limited[0].ProjectID != "proj_3" {
		t.Errorf("limit: %+v", limited)
	}
}
