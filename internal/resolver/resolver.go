// Package resolver maps entity names or ids mentioned in chat to
// database ids.
package resolver

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/taskorbit/taskchat/internal/domain"
)

// listLimit bounds the candidate scan for name matching.
const listLimit = 1000

type UserReader interface {
	Get(ctx context.Context, id string) (*domain.User, error)
	List(ctx context.Context, page, limit int, search string) ([]*domain.User, int, error)
}

type TeamReader interface {
	Get(ctx context.Context, id string) (*domain.Team, error)
	List(ctx context.Context, page, limit int, search string) ([]*domain.Team, int, error)
}

type ProjectReader interface {
	Get(ctx context.Context, id string) (*domain.Project, error)
	List(ctx context.Context, page, limit int, search string) ([]*domain.Project, int, error)
}

type TaskReader interface {
	Get(ctx context.Context, id string) (*domain.Task, error)
	List(ctx context.Context, page, limit int, search string) ([]*domain.Task, int, error)
}

// Resolver resolves names or ids per entity kind. Upstream read errors
// are swallowed and reported as not found.
type Resolver struct {
	users    UserReader
	teams    TeamReader
	projects ProjectReader
	tasks    TaskReader
}

func New(users UserReader, teams TeamReader, projects ProjectReader, tasks TaskReader) *Resolver {
	return &Resolver{users: users, teams: teams, projects: projects, tasks: tasks}
}

func isUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// ResolveUser resolves with the fuzzy chain: exact, prefix, substring,
// then email local-part substring.
func (r *Resolver) ResolveUser(ctx context.Context, nameOrID string) (string, bool) {
	if isUUID(nameOrID) {
		if _, err := r.users.Get(ctx, nameOrID); err != nil {
			return "", false
		}
		return nameOrID, true
	}

	users, _, err := r.users.List(ctx, 1, listLimit, "")
	if err != nil {
		return "", false
	}

	needle := strings.ToLower(strings.TrimSpace(nameOrID))
	if needle == "" {
		return "", false
	}

	for _, u := range users {
		if strings.ToLower(u.Name) == needle {
			return u.ID, true
		}
	}
	for _, u := range users {
		if strings.HasPrefix(strings.ToLower(u.Name), needle) {
			return u.ID, true
		}
	}
	for _, u := range users {
		if strings.Contains(strings.ToLower(u.Name), needle) {
			return u.ID, true
		}
	}
	for _, u := range users {
		local := strings.ToLower(strings.SplitN(u.Email, "@", 2)[0])
		if strings.Contains(local, needle) {
			return u.ID, true
		}
	}
	return "", false
}

func (r *Resolver) ResolveTeam(ctx context.Context, nameOrID string) (string, bool) {
	if isUUID(nameOrID) {
		if _, err := r.teams.Get(ctx, nameOrID); err != nil {
			return "", false
		}
		return nameOrID, true
	}
	teams, _, err := r.teams.List(ctx, 1, listLimit, "")
	if err != nil {
		return "", false
	}
	needle := strings.ToLower(strings.TrimSpace(nameOrID))
	for _, t := range teams {
		if strings.ToLower(t.Name) == needle {
			return t.ID, true
		}
	}
	return "", false
}

func (r *Resolver) ResolveProject(ctx context.Context, nameOrID string) (string, bool) {
	if isUUID(nameOrID) {
		if _, err := r.projects.Get(ctx, nameOrID); err != nil {
			return "", false
		}
		return nameOrID, true
	}
	projects, _, err := r.projects.List(ctx, 1, listLimit, "")
	if err != nil {
		return "", false
	}
	needle := strings.ToLower(strings.TrimSpace(nameOrID))
	for _, p := range projects {
		if strings.ToLower(p.Name) == needle {
			return p.ID, true
		}
	}
	return "", false
}

func (r *Resolver) ResolveTask(ctx context.Context, nameOrID string) (string, bool) {
	if isUUID(nameOrID) {
		if _, err := r.tasks.Get(ctx, nameOrID); err != nil {
			return "", false
		}
		return nameOrID, true
	}
	tasks, _, err := r.tasks.List(ctx, 1, listLimit, "")
	if err != nil {
		return "", false
	}
	needle := strings.ToLower(strings.TrimSpace(nameOrID))
	for _, t := range tasks {
		if strings.ToLower(t.Title) == needle {
			return t.ID, true
		}
	}
	return "", false
}

// ResolveByType dispatches on entity kind.
func (r *Resolver) ResolveByType(ctx context.Context, nameOrID string, kind domain.EntityKind) (string, bool) {
	switch kind {
	case domain.KindUser:
		return r.ResolveUser(ctx, nameOrID)
	case domain.KindTeam:
		return r.ResolveTeam(ctx, nameOrID)
	case domain.KindProject:
		return r.ResolveProject(ctx, nameOrID)
	case domain.KindTask:
		return r.ResolveTask(ctx, nameOrID)
	default:
		return "", false
	}
}

// Request names one resolution to perform.
type Request struct {
	Key      string
	NameOrID string
	Kind     domain.EntityKind
}

// ResolveMultiple resolves independent requests in parallel. Unresolved
// keys are absent from the result.
func (r *Resolver) ResolveMultiple(ctx context.Context, reqs []Request) map[string]string {
	var mu sync.Mutex
	out := map[string]string{}

	var wg sync.WaitGroup
	for _, req := range reqs {
		wg.Add(1)
		go func(req Request) {
			defer wg.Done()
			if id, ok := r.ResolveByType(ctx, req.NameOrID, req.Kind); ok {
				mu.Lock()
				out[req.Key] = id
				mu.Unlock()
			}
		}(req)
	}
	wg.Wait()
	return out
}
