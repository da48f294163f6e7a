// Package storage defines the project archive: durable snapshots of
// project contexts so an engagement survives process restarts and can be
// listed and resumed later.
//
// Archive adapters (memory, postgres) implement the Archive interface.
// Sessions own the live project context; the archive only ever holds
// point-in-time copies.
package storage

import (
	"context"

	"github.com/onedayrun/platform/pkg/api"
)

// Archive persists project context snapshots.
type Archive interface {
	// Save upserts a snapshot of the project, keyed by project ID.
	Save(ctx context.Context, project *api.ProjectContext) error

	// Get retrieves the latest snapshot for the given project ID.
	// Returns ErrNotFound if no snapshot exists.
	Get(ctx context.Context, id string) (*api.ProjectContext, error)

	// List returns snapshots matching the options, newest first by
	// update time.
	List(ctx context.Context, opts ListOptions) ([]*api.ProjectContext, error)

	// Delete removes the snapshot. Returns ErrNotFound if no snapshot
	// exists.
	Delete(ctx context.Context, id string) error

	// HealthCheck verifies the backing store is reachable.
	HealthCheck(ctx context.Context) error

	// Close releases backing resources (pools, connections).
	Close() error
}

// ListOptions filters and bounds a List call.
type ListOptions struct {
	// ClientName restricts results to one client when non-empty.
	ClientName string

	// Phase restricts results to projects currently in this phase.
	Phase api.Phase

	// Limit caps the number of results (default 20, max 100).
	Limit int
}

// BoundedLimit normalizes the limit to the default and cap.
func (o ListOptions) BoundedLimit() int {
	limit := o.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return limit
}

// Clone deep-copies a project context so archived snapshots never alias
// the live context a session keeps mutating.
func Clone(p *api.ProjectContext) *api.ProjectContext {
	if p == nil {
		return nil
	}
	cp := *p
	if p.Requirements != nil {
		cp.Requirements = make(map[string]any, len(p.Requirements))
		for k, v := range p.Requirements {
			cp.Requirements[k] = v
		}
	}
	cp.ComponentsSelected = append([]string(nil), p.ComponentsSelected...)
	cp.FilesGenerated = append([]string(nil), p.FilesGenerated...)
	return &cp
}
