package domain

import "github.com/samber/lo"

// Project binds a Bitable table to the group chats that report on it.
type Project struct {
	Name     string   `yaml:"name" validate:"required"`
	AppToken string   `yaml:"app_token" validate:"required"`
	TableID  string   `yaml:"table_id" validate:"required"`
	ChatIDs  []string `yaml:"chat_ids"`
}

// HasChat reports whether chatID is associated with the project
func (p *Project) HasChat(chatID string) bool {
	return lo.Contains(p.ChatIDs, chatID)
}

// Registry is the ordered, read-only set of configured projects.
// It is built once at start-up and never mutated afterwards.
type Registry struct {
	projects []Project
}

// NewRegistry creates a registry; declaration order is preserved
func NewRegistry(projects []Project) *Registry {
	copied := make([]Project, len(projects))
	copy(copied, projects)
	return &Registry{projects: copied}
}

// FindByChat returns the first project (in declaration order) that lists chatID.
// A chat id configured on several projects resolves to the earliest one.
func (r *Registry) FindByChat(chatID string) (*Project, bool) {
	if chatID == "" {
		return nil, false
	}
	for i := range r.projects {
		if r.projects[i].HasChat(chatID) {
			return &r.projects[i], true
		}
	}
	return nil, false
}

// Find returns the project with the given name
func (r *Registry) Find(name string) (*Project, bool) {
	for i := range r.projects {
		if r.projects[i].Name == name {
			return &r.projects[i], true
		}
	}
	return nil, false
}

// All returns every project in declaration order
func (r *Registry) All() []Project {
	out := make([]Project, len(r.projects))
	copy(out, r.projects)
	return out
}

// Len returns the number of projects
func (r *Registry) Len() int {
	return len(r.projects)
}

// ShadowedChats returns chat ids that appear in more than one project, mapped to
// the names of the projects that lose to the first declaration.
func (r *Registry) ShadowedChats() map[string][]string {
	owner := make(map[string]string)
	shadowed := make(map[string][]string)
	for _, p := range r.projects {
		for _, chatID := range lo.Uniq(p.ChatIDs) {
			if _, ok := owner[chatID]; ok {
				shadowed[chatID] = append(shadowed[chatID], p.Name)
				continue
			}
			owner[chatID] = p.Name
		}
	}
	return shadowed
}
