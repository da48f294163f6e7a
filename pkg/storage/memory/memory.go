// Package memory provides an in-memory implementation of storage.Archive
// for testing and lightweight deployments. Snapshots are lost when the
// process restarts. Optional LRU eviction limits memory usage.
package memory

import (
	"container/list"
	"context"
	"sort"
	"sync"

	"github.com/onedayrun/platform/pkg/api"
	"github.com/onedayrun/platform/pkg/storage"
)

// entry holds one archived snapshot.
type entry struct {
	project *api.ProjectContext
	lruElem *list.Element // position in LRU list
}

// Archive is an in-memory storage.Archive with optional LRU eviction.
type Archive struct {
	mu      sync.RWMutex
	entries map[string]*entry
	lruList *list.List // front = most recently used, back = least recently used
	maxSize int        // 0 = unlimited
}

var _ storage.Archive = (*Archive)(nil)

// New creates an in-memory archive. If maxSize is 0, the archive grows
// without limit. If maxSize > 0, the least recently saved project is
// evicted when the limit is reached.
func New(maxSize int) *Archive {
	return &Archive{
		entries: make(map[string]*entry),
		lruList: list.New(),
		maxSize: maxSize,
	}
}

// Save upserts a snapshot of the project. The stored copy does not alias
// the caller's context.
func (a *Archive) Save(_ context.Context, project *api.ProjectContext) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if e, exists := a.entries[project.ProjectID]; exists {
		e.project = storage.Clone(project)
		a.lruList.MoveToFront(e.lruElem)
		return nil
	}

	if a.maxSize > 0 && len(a.entries) >= a.maxSize {
		a.evictOldest()
	}

	elem := a.lruList.PushFront(project.ProjectID)
	a.entries[project.ProjectID] = &entry{
		project: storage.Clone(project),
		lruElem: elem,
	}
	return nil
}

// Get retrieves the latest snapshot for the project ID.
func (a *Archive) Get(_ context.Context, id string) (*api.ProjectContext, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	e, ok := a.entries[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return storage.Clone(e.project), nil
}

// List returns matching snapshots, newest update first.
func (a *Archive) List(_ context.Context, opts storage.ListOptions) ([]*api.ProjectContext, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var matches []*api.ProjectContext
	for _, e := range a.entries {
		if opts.ClientName != "" && e.project.ClientName != opts.ClientName {
			continue
		}
		if opts.Phase != "" && e.project.CurrentPhase != opts.Phase {
			continue
		}
		matches = append(matches, storage.Clone(e.project))
	}

	sort.Slice(matches, func(i, j int) bool {
		if !matches[i].UpdatedAt.Equal(matches[j].UpdatedAt) {
			return matches[i].UpdatedAt.After(matches[j].UpdatedAt)
		}
		return matches[i].ProjectID > matches[j].ProjectID
	})

	if limit := opts.BoundedLimit(); len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// Delete removes the snapshot.
func (a *Archive) Delete(_ context.Context, id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	e, ok := a.entries[id]
	if !ok {
		return storage.ErrNotFound
	}
	a.lruList.Remove(e.lruElem)
	delete(a.entries, id)
	return nil
}

// HealthCheck always returns nil for the in-memory archive.
func (a *Archive) HealthCheck(_ context.Context) error {
	return nil
}

// Close is a no-op for the in-memory archive.
func (a *Archive) Close() error {
	return nil
}

// evictOldest removes the least recently saved entry.
// Must be called with a.mu held.
func (a *Archive) evictOldest() {
	back := a.lruList.Back()
	if back == nil {
		return
	}
	id := back.Value.(string)
	a.lruList.Remove(back)
	delete(a.entries, id)
}
