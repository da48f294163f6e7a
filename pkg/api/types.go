package api

import (
	"strings"
	"time"
)

// ProjectContext carries the accumulated state of one client engagement.
// It is mutated by the session engine and by tool handlers as the
// conversation progresses, and serialized into the system prompt on every
// provider turn.
type ProjectContext struct {
	ProjectID          string         `json:"project_id"`
	ClientName         string         `json:"client_name"`
	Tier               string         `json:"tier"`
	ProjectType        string         `json:"project_type,omitempty"`
	TechStack          string         `json:"tech_stack,omitempty"`
	CurrentPhase       Phase          `json:"current_phase"`
	Requirements       map[string]any `json:"requirements,omitempty"`
	ComponentsSelected []string       `json:"components_selected,omitempty"`
	FilesGenerated     []string       `json:"files_generated,omitempty"`
	GithubRepo         string         `json:"github_repo,omitempty"`
	DeploymentPlatform string         `json:"deployment_platform,omitempty"`
	DeploymentURL      string         `json:"deployment_url,omitempty"`
	TokensUsed         int            `json:"tokens_used"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

// NewProjectContext creates a project context in the discovery phase.
func NewProjectContext(clientName, tier string) *ProjectContext {
	now := time.Now().UTC()
	return &ProjectContext{
		ProjectID:    NewProjectID(),
		ClientName:   clientName,
		Tier:         tier,
		CurrentPhase: PhaseDiscovery,
		Requirements: map[string]any{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// AddTokens adds n estimated tokens to the running total. Non-positive
// values are ignored so the counter only ever grows.
func (p *ProjectContext) AddTokens(n int) {
	if n <= 0 {
		return
	}
	p.TokensUsed += n
	p.UpdatedAt = time.Now().UTC()
}

// Touch bumps the update timestamp.
func (p *ProjectContext) Touch() {
	p.UpdatedAt = time.Now().UTC()
}

// ProgressReport is the point-in-time progress snapshot exposed over the
// status command and the project HTTP API.
type ProgressReport struct {
	ProjectID       string  `json:"project_id"`
	CurrentPhase    Phase   `json:"current_phase"`
	ProgressPercent float64 `json:"progress_percent"`
	FilesGenerated  int     `json:"files_generated"`
	ComponentsUsed  int     `json:"components_used"`
	TokensUsed      int     `json:"tokens_used"`
	GithubRepo      string  `json:"github_repo,omitempty"`
	DeploymentURL   string  `json:"deployment_url,omitempty"`
}

// Progress builds a progress report from the current context state.
func (p *ProjectContext) Progress() ProgressReport {
	return ProgressReport{
		ProjectID:       p.ProjectID,
		CurrentPhase:    p.CurrentPhase,
		ProgressPercent: p.CurrentPhase.Progress(),
		FilesGenerated:  len(p.FilesGenerated),
		ComponentsUsed:  len(p.ComponentsSelected),
		TokensUsed:      p.TokensUsed,
		GithubRepo:      p.GithubRepo,
		DeploymentURL:   p.DeploymentURL,
	}
}

// EstimateTokens approximates the token count of text as word count
// scaled by 1.3.
func EstimateTokens(text string) int {
	words := len(strings.Fields(text))
	return int(float64(words) * 1.3)
}
