// Package deploy integrates with hosting platforms (Railway, Vercel,
// Render) to publish generated projects and recommend a platform per
// tech stack.
package deploy

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/onedayrun/platform/pkg/observability"
)

// Status is the lifecycle state of a deployment.
type Status string

const (
	StatusPending   Status = "pending"
	StatusBuilding  Status = "building"
	StatusDeploying Status = "deploying"
	StatusSuccess   Status = "success"
	StatusFailed    Status = "failed"
)

// Result describes a deployment.
type Result struct {
	Status       Status `json:"status"`
	URL          string `json:"url,omitempty"`
	DeploymentID string `json:"deployment_id,omitempty"`
	Logs         string `json:"logs,omitempty"`
}

// Deployer publishes a repository to one hosting platform.
type Deployer interface {
	Platform() string
	Deploy(ctx context.Context, repo, branch string) (*Result, error)
	GetStatus(ctx context.Context, deploymentID string) (*Result, error)
	GetLogs(ctx context.Context, deploymentID string) (string, error)
}

// platformOrder fixes the iteration order for fallbacks and listings.
var platformOrder = []string{"railway", "vercel", "render"}

// recommendations maps (tech stack, project type) to the preferred platform.
var recommendations = map[[2]string]string{
	{"react_next", "web_app"}:     "vercel",
	{"vue_nuxt", "web_app"}:       "vercel",
	{"python_fastapi", "api"}:     "railway",
	{"python_django", "api"}:      "railway",
	{"node_express", "api"}:       "railway",
}

// Manager routes deployments to the platform deployers that have
// credentials configured.
type Manager struct {
	deployers map[string]Deployer
	logger    *slog.Logger
}

// NewManager builds a Manager, registering a deployer for each platform
// with a non-empty token.
func NewManager(railwayToken, vercelToken, renderToken string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{deployers: make(map[string]Deployer), logger: logger}
	if railwayToken != "" {
		m.Register(NewRailwayDeployer(railwayToken))
	}
	if vercelToken != "" {
		m.Register(NewVercelDeployer(vercelToken))
	}
	if renderToken != "" {
		m.Register(NewRenderDeployer(renderToken))
	}
	return m
}

// Register adds a deployer, replacing any existing one for the same
// platform.
func (m *Manager) Register(d Deployer) {
	m.deployers[d.Platform()] = d
}

// Available returns the registered platforms in stable order.
func (m *Manager) Available() []string {
	var out []string
	for _, p := range platformOrder {
		if _, ok := m.deployers[p]; ok {
			out = append(out, p)
		}
	}
	return out
}

// Has reports whether a deployer is registered for the platform.
func (m *Manager) Has(platform string) bool {
	_, ok := m.deployers[platform]
	return ok
}

// Deploy publishes a repository on the named platform.
func (m *Manager) Deploy(ctx context.Context, platform, repo, branch string) (*Result, error) {
	d, ok := m.deployers[platform]
	if !ok {
		observability.DeploymentsTotal.WithLabelValues(platform, "failed").Inc()
		return nil, fmt.Errorf("platform %q not available", platform)
	}

	res, err := d.Deploy(ctx, repo, branch)
	if err != nil {
		observability.DeploymentsTotal.WithLabelValues(platform, "failed").Inc()
		return nil, err
	}
	observability.DeploymentsTotal.WithLabelValues(platform, "success").Inc()
	m.logger.Info("deployment started",
		"platform", platform, "repo", repo, "deployment_id", res.DeploymentID, "url", res.URL)
	return res, nil
}

// GetStatus returns the state of a deployment on the named platform.
func (m *Manager) GetStatus(ctx context.Context, platform, deploymentID string) (*Result, error) {
	d, ok := m.deployers[platform]
	if !ok {
		return nil, fmt.Errorf("platform %q not available", platform)
	}
	return d.GetStatus(ctx, deploymentID)
}

// Recommend picks the platform best suited for the stack and project type.
// The table entry wins when that platform is registered; otherwise the
// first registered platform, and "railway" when nothing is configured.
func (m *Manager) Recommend(techStack, projectType string) string {
	if rec, ok := recommendations[[2]string{techStack, projectType}]; ok && m.Has(rec) {
		return rec
	}
	if avail := m.Available(); len(avail) > 0 {
		return avail[0]
	}
	return "railway"
}

// deploymentID builds the platform-scoped deployment identifier for a repo.
func deploymentID(platform, repo string) string {
	return platform + "-" + strings.ReplaceAll(repo, "/", "-")
}

// repoSlug returns the repository name without the owner.
func repoSlug(repo string) string {
	if i := strings.LastIndex(repo, "/"); i >= 0 {
		return repo[i+1:]
	}
	return repo
}
