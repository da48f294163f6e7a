package session

import (
	"testing"

	"github.com/onedayrun/platform/pkg/tools"
)

func TestRegistryCreateAndGet(t *testing.T) {
	r := NewRegistry(0)
	e := NewEngine(&mockProvider{}, tools.Deps{}, Config{}, nil)

	if err := r.Create("proj-1", e); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, ok := r.Get("proj-1")
	if !ok || got != e {
		t.Error("stored engine not returned")
	}
	if _, ok := r.Get("missing"); ok {
		t.Error("unknown ID must not resolve")
	}
	if r.Len() != 1 {
		t.Errorf("len = %d, want 1", r.Len())
	}
}

func TestRegistryRejectsDuplicateID(t *testing.T) {
	r := NewRegistry(0)
	if err := r.Create("proj-1", NewEngine(&mockProvider{}, tools.Deps{}, Config{}, nil)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.Create("proj-1", NewEngine(&mockProvider{}, tools.Deps{}, Config{}, nil)); err == nil {
		t.Error("expected duplicate ID to be rejected")
	}
}

func TestRegistryEnforcesSessionLimit(t *testing.T) {
	r := NewRegistry(2)
	for _, id := range []string{"a", "b"} {
		if err := r.Create(id, NewEngine(&mockProvider{}, tools.Deps{}, Config{}, nil)); err != nil {
			t.Fatalf("creating %s: %v", id, err)
		}
	}
	if err := r.Create("c", NewEngine(&mockProvider{}, tools.Deps{}, Config{}, nil)); err == nil {
		t.Error("expected session limit to reject the third session")
	}

	// Evicting frees a slot.
	r.Evict("a")
	if err := r.Create("c", NewEngine(&mockProvider{}, tools.Deps{}, Config{}, nil)); err != nil {
		t.Errorf("create after evict: %v", err)
	}
}

func TestRegistryEvictUnknownIsNoop(t *testing.T) {
	r := NewRegistry(0)
	r.Evict("never-existed")
	if r.Len() != 0 {
		t.Errorf("len = %d, want 0", r.Len())
	}
}
