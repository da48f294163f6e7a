// Package repository manages GitHub repositories for generated projects:
// creating repos in the platform organization, committing generated files,
// and bootstrapping project structure from templates.
package repository

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	gh "github.com/google/go-github/v60/github"
)

// Repository describes a created or listed GitHub repository.
type Repository struct {
	Name          string `json:"name"`
	FullName      string `json:"full_name"`
	URL           string `json:"url"`
	CloneURL      string `json:"clone_url"`
	SSHURL        string `json:"ssh_url,omitempty"`
	DefaultBranch string `json:"default_branch"`
	Private       bool   `json:"private"`
}

// FileChange is one file to commit.
type FileChange struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// Commit describes the result of a multi-file commit.
type Commit struct {
	SHA          string `json:"sha"`
	URL          string `json:"url"`
	Branch       string `json:"branch"`
	FilesChanged int    `json:"files_changed"`
}

// TreeEntry is one node in a repository structure listing.
type TreeEntry struct {
	Name     string      `json:"name"`
	Path     string      `json:"path"`
	Type     string      `json:"type"`
	Size     int         `json:"size,omitempty"`
	Children []TreeEntry `json:"children,omitempty"`
}

// Service wraps the GitHub API for project repository management.
// Repositories are created in the configured organization when one is set,
// falling back to the authenticated user's account.
type Service struct {
	client *gh.Client
	org    string
	logger *slog.Logger
}

// New creates a Service authenticated with a personal access token.
func New(token, org string, logger *slog.Logger) (*Service, error) {
	if token == "" {
		return nil, fmt.Errorf("github token is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		client: gh.NewClient(nil).WithAuthToken(token),
		org:    org,
		logger: logger,
	}, nil
}

// NewWithClient creates a Service around an existing client. Used in tests
// to point the service at a stub API server.
func NewWithClient(client *gh.Client, org string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{client: client, org: org, logger: logger}
}

// Org returns the configured organization name.
func (s *Service) Org() string { return s.org }

// CreateRepository creates a repository, preferring the organization and
// falling back to the authenticated user when the org create is rejected.
func (s *Service) CreateRepository(ctx context.Context, name, description string, private bool) (*Repository, error) {
	spec := &gh.Repository{
		Name:        gh.String(name),
		Description: gh.String(description),
		Private:     gh.Bool(private),
		AutoInit:    gh.Bool(true),
	}

	if s.org != "" {
		repo, _, err := s.client.Repositories.Create(ctx, s.org, spec)
		if err == nil {
			return toRepository(repo), nil
		}
		s.logger.Warn("org repository create failed, falling back to user account",
			"org", s.org, "repo", name, "error", err)
	}

	repo, _, err := s.client.Repositories.Create(ctx, "", spec)
	if err != nil {
		return nil, fmt.Errorf("creating repository %s: %w", name, err)
	}
	return toRepository(repo), nil
}

// CreateFromTemplate creates a repository by instantiating a template repo
// that lives in the organization.
func (s *Service) CreateFromTemplate(ctx context.Context, template, name, description string, private bool) (*Repository, error) {
	if s.org == "" {
		return nil, fmt.Errorf("templates require an organization")
	}
	repo, _, err := s.client.Repositories.CreateFromTemplate(ctx, s.org, template, &gh.TemplateRepoRequest{
		Name:        gh.String(name),
		Owner:       gh.String(s.org),
		Description: gh.String(description),
		Private:     gh.Bool(private),
	})
	if err != nil {
		return nil, fmt.Errorf("creating repository from template %s/%s: %w", s.org, template, err)
	}
	return toRepository(repo), nil
}

// CreateFile adds a new file on the given branch. An empty branch means the
// repository default.
func (s *Service) CreateFile(ctx context.Context, fullName, path, content, message, branch string) (string, error) {
	owner, repo, err := splitFullName(fullName)
	if err != nil {
		return "", err
	}
	if message == "" {
		message = "Add " + path
	}
	opts := &gh.RepositoryContentFileOptions{
		Message: gh.String(message),
		Content: []byte(content),
	}
	if branch != "" {
		opts.Branch = gh.String(branch)
	}
	res, _, err := s.client.Repositories.CreateFile(ctx, owner, repo, path, opts)
	if err != nil {
		return "", fmt.Errorf("creating file %s in %s: %w", path, fullName, err)
	}
	return res.GetSHA(), nil
}

// UpdateFile replaces the contents of an existing file. The current blob SHA
// is looked up first, as the contents API requires it.
func (s *Service) UpdateFile(ctx context.Context, fullName, path, content, message, branch string) (string, error) {
	owner, repo, err := splitFullName(fullName)
	if err != nil {
		return "", err
	}
	sha, err := s.fileSHA(ctx, owner, repo, path, branch)
	if err != nil {
		return "", err
	}
	if message == "" {
		message = "Update " + path
	}
	opts := &gh.RepositoryContentFileOptions{
		Message: gh.String(message),
		Content: []byte(content),
		SHA:     gh.String(sha),
	}
	if branch != "" {
		opts.Branch = gh.String(branch)
	}
	res, _, err := s.client.Repositories.UpdateFile(ctx, owner, repo, path, opts)
	if err != nil {
		return "", fmt.Errorf("updating file %s in %s: %w", path, fullName, err)
	}
	return res.GetSHA(), nil
}

// UpsertFile creates the file when it does not exist and updates it when it
// does.
func (s *Service) UpsertFile(ctx context.Context, fullName, path, content, message, branch string) (string, error) {
	owner, repo, err := splitFullName(fullName)
	if err != nil {
		return "", err
	}
	_, err = s.fileSHA(ctx, owner, repo, path, branch)
	if err != nil {
		return s.CreateFile(ctx, fullName, path, content, message, branch)
	}
	return s.UpdateFile(ctx, fullName, path, content, message, branch)
}

// DeleteFile removes a file from the given branch.
func (s *Service) DeleteFile(ctx context.Context, fullName, path, message, branch string) error {
	owner, repo, err := splitFullName(fullName)
	if err != nil {
		return err
	}
	sha, err := s.fileSHA(ctx, owner, repo, path, branch)
	if err != nil {
		return err
	}
	if message == "" {
		message = "Delete " + path
	}
	opts := &gh.RepositoryContentFileOptions{
		Message: gh.String(message),
		SHA:     gh.String(sha),
	}
	if branch != "" {
		opts.Branch = gh.String(branch)
	}
	if _, _, err := s.client.Repositories.DeleteFile(ctx, owner, repo, path, opts); err != nil {
		return fmt.Errorf("deleting file %s in %s: %w", path, fullName, err)
	}
	return nil
}

// GetFile reads a file at the given branch and returns its decoded content.
func (s *Service) GetFile(ctx context.Context, fullName, path, branch string) (string, error) {
	owner, repo, err := splitFullName(fullName)
	if err != nil {
		return "", err
	}
	opts := &gh.RepositoryContentGetOptions{}
	if branch != "" {
		opts.Ref = branch
	}
	fileContent, _, _, err := s.client.Repositories.GetContents(ctx, owner, repo, path, opts)
	if err != nil {
		return "", fmt.Errorf("getting file %s in %s: %w", path, fullName, err)
	}
	if fileContent == nil {
		return "", fmt.Errorf("path %s in %s is a directory", path, fullName)
	}
	content, err := fileContent.GetContent()
	if err != nil {
		return "", fmt.Errorf("decoding file %s: %w", path, err)
	}
	return content, nil
}

// CommitFiles commits all files atomically on the given branch using the Git
// Data API: create blobs, build a tree on top of the branch tip, create the
// commit, then advance the ref.
func (s *Service) CommitFiles(ctx context.Context, fullName, branch, message string, files []FileChange) (*Commit, error) {
	owner, repo, err := splitFullName(fullName)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("at least one file is required")
	}
	if branch == "" {
		branch, err = s.defaultBranch(ctx, owner, repo)
		if err != nil {
			return nil, err
		}
	}
	if message == "" {
		message = "Add project files"
	}

	ref, _, err := s.client.Git.GetRef(ctx, owner, repo, "refs/heads/"+branch)
	if err != nil {
		return nil, fmt.Errorf("getting branch %s: %w", branch, err)
	}
	branchSHA := ref.GetObject().GetSHA()

	baseCommit, _, err := s.client.Git.GetCommit(ctx, owner, repo, branchSHA)
	if err != nil {
		return nil, fmt.Errorf("getting base commit: %w", err)
	}

	entries := make([]*gh.TreeEntry, 0, len(files))
	for _, f := range files {
		blob, _, err := s.client.Git.CreateBlob(ctx, owner, repo, &gh.Blob{
			Content:  gh.String(f.Content),
			Encoding: gh.String("utf-8"),
		})
		if err != nil {
			return nil, fmt.Errorf("creating blob for %s: %w", f.Path, err)
		}
		entries = append(entries, &gh.TreeEntry{
			Path: gh.String(f.Path),
			Mode: gh.String("100644"),
			Type: gh.String("blob"),
			SHA:  blob.SHA,
		})
	}

	tree, _, err := s.client.Git.CreateTree(ctx, owner, repo, baseCommit.GetTree().GetSHA(), entries)
	if err != nil {
		return nil, fmt.Errorf("creating tree: %w", err)
	}

	commit, _, err := s.client.Git.CreateCommit(ctx, owner, repo, &gh.Commit{
		Message: gh.String(message),
		Tree:    tree,
		Parents: []*gh.Commit{{SHA: gh.String(branchSHA)}},
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("creating commit: %w", err)
	}

	_, _, err = s.client.Git.UpdateRef(ctx, owner, repo, &gh.Reference{
		Ref:    gh.String("refs/heads/" + branch),
		Object: &gh.GitObject{SHA: commit.SHA},
	}, false)
	if err != nil {
		return nil, fmt.Errorf("updating ref: %w", err)
	}

	return &Commit{
		SHA:          commit.GetSHA(),
		URL:          fmt.Sprintf("https://github.com/%s/commit/%s", fullName, commit.GetSHA()),
		Branch:       branch,
		FilesChanged: len(files),
	}, nil
}

// CreateBranch creates a branch from a base branch. An empty base means the
// repository default.
func (s *Service) CreateBranch(ctx context.Context, fullName, branch, base string) error {
	owner, repo, err := splitFullName(fullName)
	if err != nil {
		return err
	}
	if base == "" {
		base, err = s.defaultBranch(ctx, owner, repo)
		if err != nil {
			return err
		}
	}
	baseRef, _, err := s.client.Git.GetRef(ctx, owner, repo, "refs/heads/"+base)
	if err != nil {
		return fmt.Errorf("resolving base branch %s: %w", base, err)
	}
	_, _, err = s.client.Git.CreateRef(ctx, owner, repo, &gh.Reference{
		Ref:    gh.String("refs/heads/" + branch),
		Object: &gh.GitObject{SHA: baseRef.GetObject().SHA},
	})
	if err != nil {
		return fmt.Errorf("creating branch %s: %w", branch, err)
	}
	return nil
}

// ListRepositories lists organization repositories, falling back to the
// authenticated user's repositories when no organization is configured or
// the org listing fails.
func (s *Service) ListRepositories(ctx context.Context, limit int) ([]Repository, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	if s.org != "" {
		repos, _, err := s.client.Repositories.ListByOrg(ctx, s.org, &gh.RepositoryListByOrgOptions{
			ListOptions: gh.ListOptions{PerPage: limit},
		})
		if err == nil {
			return toRepositories(repos), nil
		}
		s.logger.Warn("org repository list failed, falling back to user account",
			"org", s.org, "error", err)
	}

	repos, _, err := s.client.Repositories.ListByAuthenticatedUser(ctx, &gh.RepositoryListByAuthenticatedUserOptions{
		ListOptions: gh.ListOptions{PerPage: limit},
	})
	if err != nil {
		return nil, fmt.Errorf("listing repositories: %w", err)
	}
	return toRepositories(repos), nil
}

// Structure returns the directory tree under path, recursing into
// subdirectories.
func (s *Service) Structure(ctx context.Context, fullName, path, branch string) ([]TreeEntry, error) {
	owner, repo, err := splitFullName(fullName)
	if err != nil {
		return nil, err
	}
	return s.structure(ctx, owner, repo, path, branch)
}

func (s *Service) structure(ctx context.Context, owner, repo, path, branch string) ([]TreeEntry, error) {
	opts := &gh.RepositoryContentGetOptions{}
	if branch != "" {
		opts.Ref = branch
	}
	fileContent, dirContent, _, err := s.client.Repositories.GetContents(ctx, owner, repo, path, opts)
	if err != nil {
		return nil, fmt.Errorf("listing %s/%s path %q: %w", owner, repo, path, err)
	}
	if fileContent != nil {
		dirContent = []*gh.RepositoryContent{fileContent}
	}

	entries := make([]TreeEntry, 0, len(dirContent))
	for _, item := range dirContent {
		entry := TreeEntry{
			Name: item.GetName(),
			Path: item.GetPath(),
			Type: item.GetType(),
		}
		if item.GetType() == "file" {
			entry.Size = item.GetSize()
		}
		if item.GetType() == "dir" {
			children, err := s.structure(ctx, owner, repo, item.GetPath(), branch)
			if err != nil {
				return nil, err
			}
			entry.Children = children
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// SetupProject creates a repository for a new project. Known tech stacks map
// to template repositories in the organization; when no template exists or
// the template instantiation fails, a plain repository is created and seeded
// with a basic file structure for the stack.
func (s *Service) SetupProject(ctx context.Context, name, techStack, description string) (*Repository, error) {
	template := stackTemplates[techStack]

	if template != "" && s.org != "" {
		repo, err := s.CreateFromTemplate(ctx, template, name, description, true)
		if err == nil {
			return repo, nil
		}
		s.logger.Warn("template create failed, falling back to basic structure",
			"template", template, "repo", name, "error", err)
	}

	repo, err := s.CreateRepository(ctx, name, description, true)
	if err != nil {
		return nil, err
	}

	files := basicStructure(techStack)
	if len(files) > 0 {
		if _, err := s.CommitFiles(ctx, repo.FullName, repo.DefaultBranch, "Initial project structure", files); err != nil {
			s.logger.Warn("seeding basic structure failed", "repo", repo.FullName, "error", err)
		}
	}
	return repo, nil
}

func (s *Service) defaultBranch(ctx context.Context, owner, repo string) (string, error) {
	r, _, err := s.client.Repositories.Get(ctx, owner, repo)
	if err != nil {
		return "", fmt.Errorf("getting repository %s/%s: %w", owner, repo, err)
	}
	if r.GetDefaultBranch() == "" {
		return "main", nil
	}
	return r.GetDefaultBranch(), nil
}

func (s *Service) fileSHA(ctx context.Context, owner, repo, path, branch string) (string, error) {
	opts := &gh.RepositoryContentGetOptions{}
	if branch != "" {
		opts.Ref = branch
	}
	fileContent, _, resp, err := s.client.Repositories.GetContents(ctx, owner, repo, path, opts)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return "", fmt.Errorf("file %s not found in %s/%s: %w", path, owner, repo, err)
		}
		return "", fmt.Errorf("getting file %s in %s/%s: %w", path, owner, repo, err)
	}
	if fileContent == nil {
		return "", fmt.Errorf("path %s in %s/%s is a directory", path, owner, repo)
	}
	return fileContent.GetSHA(), nil
}

func toRepository(r *gh.Repository) *Repository {
	return &Repository{
		Name:          r.GetName(),
		FullName:      r.GetFullName(),
		URL:           r.GetHTMLURL(),
		CloneURL:      r.GetCloneURL(),
		SSHURL:        r.GetSSHURL(),
		DefaultBranch: r.GetDefaultBranch(),
		Private:       r.GetPrivate(),
	}
}

func toRepositories(repos []*gh.Repository) []Repository {
	out := make([]Repository, 0, len(repos))
	for _, r := range repos {
		out = append(out, *toRepository(r))
	}
	return out
}

func splitFullName(fullName string) (string, string, error) {
	owner, repo, ok := strings.Cut(fullName, "/")
	if !ok || owner == "" || repo == "" {
		return "", "", fmt.Errorf("invalid repository name %q, want owner/repo", fullName)
	}
	return owner, repo, nil
}
