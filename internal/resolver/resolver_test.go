package resolver

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskorbit/taskchat/internal/domain"
)

type fakeUsers struct {
	users []*domain.User
	err   error
}

func (f *fakeUsers) Get(ctx context.Context, id string) (*domain.User, error) {
	for _, u := range f.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (f *fakeUsers) List(ctx context.Context, page, limit int, search string) ([]*domain.User, int, error) {
	if f.err != nil {
		return nil, 0, f.err
	}
	return f.users, len(f.users), nil
}

type fakeTasks struct {
	tasks []*domain.Task
}

func (f *fakeTasks) Get(ctx context.Context, id string) (*domain.Task, error) {
	for _, t := range f.tasks {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, domain.ErrTaskNotFound
}

func (f *fakeTasks) List(ctx context.Context, page, limit int, search string) ([]*domain.Task, int, error) {
	return f.tasks, len(f.tasks), nil
}

type fakeTeams struct{ teams []*domain.Team }

func (f *fakeTeams) Get(ctx context.Context, id string) (*domain.Team, error) {
	for _, t := range f.teams {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, domain.ErrTeamNotFound
}

func (f *fakeTeams) List(ctx context.Context, page, limit int, search string) ([]*domain.Team, int, error) {
	return f.teams, len(f.teams), nil
}

type fakeProjects struct{ projects []*domain.Project }

func (f *fakeProjects) Get(ctx context.Context, id string) (*domain.Project, error) {
	for _, p := range f.projects {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, domain.ErrProjectNotFound
}

func (f *fakeProjects) List(ctx context.Context, page, limit int, search string) ([]*domain.Project, int, error) {
	return f.projects, len(f.projects), nil
}

func newTestResolver() (*Resolver, *fakeUsers) {
	users := &fakeUsers{users: []*domain.User{
		{ID: "U1", Name: "Youssef Mohamed", Email: "youssef.m@example.com"},
		{ID: "U2", Name: "Sara Ali", Email: "sara@example.com"},
	}}
	teams := &fakeTeams{teams: []*domain.Team{{ID: "T1", Name: "Backend Team"}}}
	projects := &fakeProjects{projects: []*domain.Project{{ID: "P1", Name: "Infra"}}}
	tasks := &fakeTasks{tasks: []*domain.Task{{ID: "K1", Title: "Database Optimization"}}}
	return New(users, teams, projects, tasks), users
}

func TestResolveUser_FuzzyChain(t *testing.T) {
	r, _ := newTestResolver()
	ctx := context.Background()

	// Exact.
	id, ok := r.ResolveUser(ctx, "youssef mohamed")
	require.True(t, ok)
	assert.Equal(t, "U1", id)

	// Prefix.
	id, ok = r.ResolveUser(ctx, "Youssef")
	require.True(t, ok)
	assert.Equal(t, "U1", id)

	// Substring.
	id, ok = r.ResolveUser(ctx, "ohame")
	require.True(t, ok)
	assert.Equal(t, "U1", id)

	// Email local part.
	id, ok = r.ResolveUser(ctx, "youssef.m")
	require.True(t, ok)
	assert.Equal(t, "U1", id)

	_, ok = r.ResolveUser(ctx, "nobody")
	assert.False(t, ok)
}

func TestResolve_UUIDVerifiesExistence(t *testing.T) {
	users := &fakeUsers{users: []*domain.User{{ID: uuid.NewString(), Name: "A", Email: "a@x.io"}}}
	r := New(users, &fakeTeams{}, &fakeProjects{}, &fakeTasks{})
	ctx := context.Background()

	id, ok := r.ResolveUser(ctx, users.users[0].ID)
	require.True(t, ok)
	assert.Equal(t, users.users[0].ID, id)

	_, ok = r.ResolveUser(ctx, uuid.NewString())
	assert.False(t, ok)
}

func TestResolve_StrictKindsExactOnly(t *testing.T) {
	r, _ := newTestResolver()
	ctx := context.Background()

	id, ok := r.ResolveTask(ctx, "database optimization")
	require.True(t, ok)
	assert.Equal(t, "K1", id)

	// No fuzzy matching outside users.
	_, ok = r.ResolveTask(ctx, "Database")
	assert.False(t, ok)

	id, ok = r.ResolveTeam(ctx, "backend team")
	require.True(t, ok)
	assert.Equal(t, "T1", id)

	id, ok = r.ResolveProject(ctx, "Infra")
	require.True(t, ok)
	assert.Equal(t, "P1", id)
}

func TestResolve_UpstreamErrorIsNotFound(t *testing.T) {
	users := &fakeUsers{err: errors.New("db down")}
	r := New(users, &fakeTeams{}, &fakeProjects{}, &fakeTasks{})

	_, ok := r.ResolveUser(context.Background(), "Youssef")
	assert.False(t, ok)
}

func TestResolveMultiple(t *testing.T) {
	r, _ := newTestResolver()

	got := r.ResolveMultiple(context.Background(), []Request{
		{Key: "assignedTo", NameOrID: "Youssef", Kind: domain.KindUser},
		{Key: "teamId", NameOrID: "Backend Team", Kind: domain.KindTeam},
		{Key: "projectId", NameOrID: "missing", Kind: domain.KindProject},
	})

	assert.Equal(t, "U1", got["assignedTo"])
	assert.Equal(t, "T1", got["teamId"])
	_, present := got["projectId"]
	assert.False(t, present)
}
