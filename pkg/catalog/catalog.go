// Package catalog holds the library of reusable project components:
// prebuilt auth, database, API, UI, integration, and utility modules that
// the assistant can pull into a generated project.
package catalog

import (
	"sort"
	"strings"
	"sync"
)

// Category classifies a component.
type Category string

const (
	CategoryAuth        Category = "auth"
	CategoryDatabase    Category = "database"
	CategoryAPI         Category = "api"
	CategoryUI          Category = "ui"
	CategoryIntegration Category = "integration"
	CategoryUtils       Category = "utils"
	CategoryDeployment  Category = "deployment"
	CategoryTesting     Category = "testing"
)

// Categories lists all component categories.
var Categories = []Category{
	CategoryAuth,
	CategoryDatabase,
	CategoryAPI,
	CategoryUI,
	CategoryIntegration,
	CategoryUtils,
	CategoryDeployment,
	CategoryTesting,
}

// File is one file carried by a component, ready to be committed into a
// project repository.
type File struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// Component is a reusable building block.
type Component struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Category     Category `json:"category"`
	TechStack    []string `json:"tech_stack"`
	Dependencies []string `json:"dependencies"`
	Tags         []string `json:"tags"`
	Version      string   `json:"version"`
	Files        []File   `json:"files,omitempty"`
}

// Library stores components and serves scored substring search.
// Safe for concurrent use.
type Library struct {
	mu         sync.RWMutex
	components map[string]Component
}

// NewLibrary creates a library seeded with the default components.
func NewLibrary() *Library {
	l := &Library{components: make(map[string]Component)}
	for _, c := range defaultComponents() {
		l.Add(c)
	}
	return l
}

// Add inserts or replaces a component.
func (l *Library) Add(c Component) {
	if c.Version == "" {
		c.Version = "1.0.0"
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.components[c.ID] = c
}

// Get returns the component with the given ID.
func (l *Library) Get(id string) (Component, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	c, ok := l.components[id]
	return c, ok
}

// Files returns the files of the component with the given ID, or nil when
// the component does not exist.
func (l *Library) Files(id string) []File {
	c, ok := l.Get(id)
	if !ok {
		return nil
	}
	return c.Files
}

// Len returns the number of components in the library.
func (l *Library) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.components)
}

// All returns every component, ordered by ID.
func (l *Library) All() []Component {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Component, 0, len(l.components))
	for _, c := range l.components {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ListByCategory returns the components in one category, ordered by ID.
func (l *Library) ListByCategory(category Category) []Component {
	var out []Component
	for _, c := range l.All() {
		if c.Category == category {
			out = append(out, c)
		}
	}
	return out
}

// Search scores components against the query: a substring hit on the name
// counts 10, on the description 5, and on any tag 3. Category and tech
// stack act as hard filters. Results are ordered by descending score,
// capped at limit (default 10).
func (l *Library) Search(query string, category Category, techStack string, limit int) []Component {
	if limit <= 0 {
		limit = 10
	}
	queryLower := strings.ToLower(query)

	type scored struct {
		component Component
		score     int
	}

	var results []scored
	for _, comp := range l.All() {
		if category != "" && comp.Category != category {
			continue
		}
		if techStack != "" && !containsString(comp.TechStack, techStack) {
			continue
		}

		score := 0
		if strings.Contains(strings.ToLower(comp.Name), queryLower) {
			score += 10
		}
		if strings.Contains(strings.ToLower(comp.Description), queryLower) {
			score += 5
		}
		for _, tag := range comp.Tags {
			if strings.Contains(strings.ToLower(tag), queryLower) {
				score += 3
				break
			}
		}

		if score > 0 {
			results = append(results, scored{comp, score})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].score > results[j].score
	})

	if len(results) > limit {
		results = results[:limit]
	}

	out := make([]Component, 0, len(results))
	for _, r := range results {
		out = append(out, r.component)
	}
	return out
}

func containsString(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}
