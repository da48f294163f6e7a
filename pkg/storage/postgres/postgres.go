// Package postgres provides a PostgreSQL implementation of storage.Archive.
// It uses pgx/v5 for connection pooling and stores the full project
// snapshot as JSONB alongside indexed filter columns.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/onedayrun/platform/pkg/api"
	"github.com/onedayrun/platform/pkg/storage"
)

// Archive is a PostgreSQL-backed storage.Archive.
type Archive struct {
	pool *pgxpool.Pool
}

var _ storage.Archive = (*Archive)(nil)

// New creates a PostgreSQL archive with the given configuration.
// If MigrateOnStart is true, schema migrations are applied automatically.
func New(ctx context.Context, cfg Config) (*Archive, error) {
	cfg.defaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	a := &Archive{pool: pool}

	if cfg.MigrateOnStart {
		if err := a.migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	return a, nil
}

// Save upserts a snapshot of the project.
func (a *Archive) Save(ctx context.Context, project *api.ProjectContext) error {
	snapshot, err := json.Marshal(project)
	if err != nil {
		return fmt.Errorf("marshaling project: %w", err)
	}

	_, err = a.pool.Exec(ctx, `
		INSERT INTO projects (
			id, client_name, tier, current_phase, tokens_used,
			snapshot, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			client_name   = EXCLUDED.client_name,
			tier          = EXCLUDED.tier,
			current_phase = EXCLUDED.current_phase,
			tokens_used   = EXCLUDED.tokens_used,
			snapshot      = EXCLUDED.snapshot,
			updated_at    = EXCLUDED.updated_at
	`,
		project.ProjectID, project.ClientName, project.Tier,
		string(project.CurrentPhase), project.TokensUsed,
		snapshot, project.CreatedAt, project.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upserting project: %w", err)
	}

	return nil
}

// Get retrieves the latest snapshot for the given project ID.
func (a *Archive) Get(ctx context.Context, id string) (*api.ProjectContext, error) {
	var snapshot []byte
	err := a.pool.QueryRow(ctx,
		"SELECT snapshot FROM projects WHERE id = $1", id,
	).Scan(&snapshot)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying project: %w", err)
	}

	var project api.ProjectContext
	if err := json.Unmarshal(snapshot, &project); err != nil {
		return nil, fmt.Errorf("unmarshaling project: %w", err)
	}
	return &project, nil
}

// List returns matching snapshots, newest update first.
func (a *Archive) List(ctx context.Context, opts storage.ListOptions) ([]*api.ProjectContext, error) {
	query := "SELECT snapshot FROM projects WHERE 1=1"
	args := []any{}
	argIdx := 1

	if opts.ClientName != "" {
		query += fmt.Sprintf(" AND client_name = $%d", argIdx)
		args = append(args, opts.ClientName)
		argIdx++
	}
	if opts.Phase != "" {
		query += fmt.Sprintf(" AND current_phase = $%d", argIdx)
		args = append(args, string(opts.Phase))
		argIdx++
	}

	query += fmt.Sprintf(" ORDER BY updated_at DESC, id DESC LIMIT $%d", argIdx)
	args = append(args, opts.BoundedLimit())

	rows, err := a.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	defer rows.Close()

	projects := []*api.ProjectContext{}
	for rows.Next() {
		var snapshot []byte
		if err := rows.Scan(&snapshot); err != nil {
			return nil, fmt.Errorf("scanning project: %w", err)
		}
		var project api.ProjectContext
		if err := json.Unmarshal(snapshot, &project); err != nil {
			return nil, fmt.Errorf("unmarshaling project: %w", err)
		}
		projects = append(projects, &project)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating projects: %w", err)
	}

	return projects, nil
}

// Delete removes the snapshot.
func (a *Archive) Delete(ctx context.Context, id string) error {
	result, err := a.pool.Exec(ctx, "DELETE FROM projects WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("deleting project: %w", err)
	}
	if result.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// HealthCheck verifies the database connection.
func (a *Archive) HealthCheck(ctx context.Context) error {
	return a.pool.Ping(ctx)
}

// Close releases the connection pool.
func (a *Archive) Close() error {
	a.pool.Close()
	return nil
}
