package transport

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/onedayrun/platform/pkg/api"
	"github.com/onedayrun/platform/pkg/catalog"
)

// createProjectRequest is the body of POST /projects.
type createProjectRequest struct {
	ClientName     string `json:"client_name"`
	Tier           string `json:"tier"`
	InitialMessage string `json:"initial_message"`
	TechStack      string `json:"tech_stack,omitempty"`
	ProjectType    string `json:"project_type,omitempty"`
}

// createProjectResponse is the body of a successful POST /projects.
type createProjectResponse struct {
	ProjectID string    `json:"project_id"`
	Status    string    `json:"status"`
	Phase     api.Phase `json:"phase"`
}

// handleCreateProject creates a project session in the discovery phase.
// The initial message seeds the raw requirements; the conversation itself
// happens over the WebSocket endpoint.
func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, api.NewInvalidRequestError("body", "invalid JSON: "+err.Error()))
		return
	}
	if req.ClientName == "" {
		WriteError(w, api.NewInvalidRequestError("client_name", "client_name is required"))
		return
	}
	if req.InitialMessage == "" {
		WriteError(w, api.NewInvalidRequestError("initial_message", "initial_message is required"))
		return
	}

	engine := s.newEngine()
	project, err := engine.StartProject(req.ClientName, req.Tier)
	if err != nil {
		WriteError(w, err)
		return
	}

	project.TechStack = req.TechStack
	project.ProjectType = req.ProjectType
	project.Requirements["raw"] = req.InitialMessage

	if err := s.registry.Create(project.ProjectID, engine); err != nil {
		WriteError(w, err)
		return
	}
	s.saveSnapshot(r.Context(), engine.Snapshot())

	s.logger.Info("project created",
		"project_id", project.ProjectID, "client", req.ClientName, "tier", req.Tier)

	WriteJSON(w, http.StatusCreated, createProjectResponse{
		ProjectID: project.ProjectID,
		Status:    "created",
		Phase:     project.CurrentPhase,
	})
}

// handleGetProject returns the progress snapshot for a project. Live
// sessions are consulted first, then the archive.
func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if engine, ok := s.registry.Get(id); ok {
		report, err := engine.Progress()
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, report)
		return
	}

	if s.archive != nil {
		if snapshot, err := s.archive.Get(r.Context(), id); err == nil {
			WriteJSON(w, http.StatusOK, snapshot.Progress())
			return
		}
	}

	WriteError(w, api.NewNotFoundError("project not found: "+id))
}

// setupGithubRequest is the body of POST /projects/{id}/github.
type setupGithubRequest struct {
	RepoName string `json:"repo_name"`
}

// handleSetupGithub scaffolds a GitHub repository for the project and
// binds it to the project context on success.
func (s *Server) handleSetupGithub(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	engine, ok := s.registry.Get(id)
	if !ok {
		WriteError(w, api.NewNotFoundError("project not found: "+id))
		return
	}
	if s.github == nil {
		WriteError(w, api.NewServerError("GitHub integration is not configured"))
		return
	}

	var req setupGithubRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, api.NewInvalidRequestError("body", "invalid JSON: "+err.Error()))
		return
	}
	if req.RepoName == "" {
		WriteError(w, api.NewInvalidRequestError("repo_name", "repo_name is required"))
		return
	}

	project := engine.Snapshot()
	techStack := project.TechStack
	if techStack == "" {
		techStack = "python_fastapi"
	}
	description := fmt.Sprintf("Project generated by OneDay.run - %s package", project.Tier)

	repo, err := s.github.SetupProject(r.Context(), req.RepoName, techStack, description)
	if err != nil {
		WriteError(w, api.NewInvalidRequestError("repo_name", err.Error()))
		return
	}

	if err := engine.Mutate(func(p *api.ProjectContext) {
		p.GithubRepo = repo.FullName
		p.Touch()
	}); err != nil {
		WriteError(w, err)
		return
	}
	s.saveSnapshot(r.Context(), engine.Snapshot())

	WriteJSON(w, http.StatusOK, map[string]any{
		"status":     "created",
		"repository": repo,
	})
}

// deployProjectRequest is the body of POST /projects/{id}/deploy.
type deployProjectRequest struct {
	Platform string `json:"platform,omitempty"`
}

// handleDeployProject publishes the project's repository on a hosting
// platform. The deployment URL and platform are written into the project
// context only when the deployment reports success.
func (s *Server) handleDeployProject(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	engine, ok := s.registry.Get(id)
	if !ok {
		WriteError(w, api.NewNotFoundError("project not found: "+id))
		return
	}

	var req deployProjectRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, api.NewInvalidRequestError("body", "invalid JSON: "+err.Error()))
			return
		}
	}
	platform := req.Platform
	if platform == "" {
		platform = s.cfg.DefaultPlatform
	}

	project := engine.Snapshot()
	if project.GithubRepo == "" {
		WriteError(w, api.NewInvalidRequestError("github_repo", "no GitHub repository configured for this project"))
		return
	}

	result, err := s.deployments.Deploy(r.Context(), platform, project.GithubRepo, "")
	if err != nil {
		WriteError(w, api.NewInvalidRequestError("platform", err.Error()))
		return
	}

	if result.URL != "" {
		if err := engine.Mutate(func(p *api.ProjectContext) {
			p.DeploymentURL = result.URL
			p.DeploymentPlatform = platform
			p.Touch()
		}); err != nil {
			WriteError(w, err)
			return
		}
		s.saveSnapshot(r.Context(), engine.Snapshot())
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"platform":   platform,
		"deployment": result,
	})
}

// handleListComponents lists components in a category, or the category
// index when no category is given.
func (s *Server) handleListComponents(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	if category == "" {
		WriteJSON(w, http.StatusOK, map[string]any{
			"categories": catalog.Categories,
			"total":      s.library.Len(),
		})
		return
	}

	components := s.library.ListByCategory(catalog.Category(category))
	WriteJSON(w, http.StatusOK, map[string]any{
		"category":   category,
		"components": components,
		"count":      len(components),
	})
}

// handleSearchComponents serves scored component search with optional
// category and tech stack filters.
func (s *Server) handleSearchComponents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		WriteError(w, api.NewInvalidRequestError("q", "query parameter q is required"))
		return
	}
	category := catalog.Category(r.URL.Query().Get("category"))
	techStack := r.URL.Query().Get("tech_stack")

	results := s.library.Search(q, category, techStack, 0)
	WriteJSON(w, http.StatusOK, map[string]any{
		"query":   q,
		"results": results,
		"count":   len(results),
	})
}

// handlePricing returns the tier table with what each package includes.
func (s *Server) handlePricing(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{
		"tiers":    api.PricingTiers,
		"currency": "PLN",
		"includes": map[string][]string{
			"all":  {"GitHub repo", "Documentation", "3 months warranty"},
			"8h+":  {"Deployment included", "Basic testing"},
			"24h+": {"Extended testing", "Performance optimization"},
			"48h+": {"Security audit", "Multi-environment deployment"},
		},
	})
}

// handleHealth reports liveness plus the archive's health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if s.archive != nil {
		if err := s.archive.HealthCheck(r.Context()); err != nil {
			s.logger.Warn("archive health check failed", "error", err)
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
	}
	WriteJSON(w, code, map[string]any{
		"status":   status,
		"sessions": s.registry.Len(),
	})
}

// handleReady reports readiness to accept traffic.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
