package session

import (
	"sync"

	"github.com/onedayrun/platform/pkg/api"
	"github.com/onedayrun/platform/pkg/observability"
)

// Registry is the process-wide map from project ID to session engine.
// Sessions are independent; the registry is the only cross-session state.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Engine
	max      int
}

// NewRegistry creates a Registry capped at max concurrent sessions
// (0 means unlimited).
func NewRegistry(max int) *Registry {
	return &Registry{
		sessions: make(map[string]*Engine),
		max:      max,
	}
}

// Create stores the engine under the given ID.
func (r *Registry) Create(id string, e *Engine) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[id]; exists {
		return api.NewInvalidRequestError("id", "session already exists: "+id)
	}
	if r.max > 0 && len(r.sessions) >= r.max {
		return api.NewTooManyRequestsError("session limit reached")
	}

	r.sessions[id] = e
	observability.ActiveSessions.Set(float64(len(r.sessions)))
	return nil
}

// Get returns the engine for the given ID.
func (r *Registry) Get(id string) (*Engine, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[id]
	return e, ok
}

// Evict removes the session. Evicting an unknown ID is a no-op.
func (r *Registry) Evict(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	observability.ActiveSessions.Set(float64(len(r.sessions)))
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
