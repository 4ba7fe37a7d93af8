//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskorbit/taskchat/internal/domain"
	"github.com/taskorbit/taskchat/internal/testutil"
)

func newFixturePool(t *testing.T) (*pgxpool.Pool, context.Context) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	t.Cleanup(func() { pc.Terminate(ctx) })

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	t.Cleanup(pool.Close)
	return pool, ctx
}

func makeUser(name, email string) *domain.User {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: "x",
		Role:         domain.RoleMember,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestUserRepository_CRUD(t *testing.T) {
	pool, ctx := newFixturePool(t)
	users := NewUserRepository(pool)

	u := makeUser("Sara", "sara@example.com")
	require.NoError(t, users.Create(ctx, u))

	got, err := users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "Sara", got.Name)

	taken, err := users.EmailTaken(ctx, "SARA@example.com", uuid.NewString())
	require.NoError(t, err)
	assert.True(t, taken)

	taken, err = users.EmailTaken(ctx, "sara@example.com", u.ID)
	require.NoError(t, err)
	assert.False(t, taken)

	u.Name = "Sara M"
	u.UpdatedAt = time.Now().UTC()
	require.NoError(t, users.Update(ctx, u))

	got, err = users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "Sara M", got.Name)

	require.NoError(t, users.Delete(ctx, u.ID))
	_, err = users.GetByID(ctx, u.ID)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
	assert.ErrorIs(t, users.Delete(ctx, u.ID), domain.ErrUserNotFound)
}

func TestTaskRepository_RelationsChain(t *testing.T) {
	pool, ctx := newFixturePool(t)
	users := NewUserRepository(pool)
	teams := NewTeamRepository(pool)
	projects := NewProjectRepository(pool)
	tasks := NewTaskRepository(pool)

	now := time.Now().UTC().Truncate(time.Microsecond)

	owner := makeUser("Dana", "dana@example.com")
	require.NoError(t, users.Create(ctx, owner))

	project := &domain.Project{ID: uuid.NewString(), Name: "Atlas", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, projects.Create(ctx, project))

	team := &domain.Team{
		ID: uuid.NewString(), Name: "Core", OwnerID: owner.ID,
		ProjectID: &project.ID, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, teams.Create(ctx, team))

	owner.TeamID = &team.ID
	owner.UpdatedAt = now
	require.NoError(t, users.Update(ctx, owner))

	deadline := now.Add(48 * time.Hour)
	task := &domain.Task{
		ID: uuid.NewString(), Title: "Ship it", Status: domain.TaskStatusInProgress,
		AssignedTo: &owner.ID, Deadline: &deadline, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, tasks.Create(ctx, task))

	got, err := tasks.GetByIDWithRelations(ctx, task.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Assignee)
	assert.Equal(t, "Dana", got.Assignee.Name)
	require.NotNil(t, got.Assignee.Team)
	assert.Equal(t, "Core", got.Assignee.Team.Name)
	require.NotNil(t, got.Assignee.Team.Project)
	assert.Equal(t, "Atlas", got.Assignee.Team.Project.Name)

	gotTeam, err := teams.GetByIDWithRelations(ctx, team.ID)
	require.NoError(t, err)
	require.NotNil(t, gotTeam.Owner)
	assert.Equal(t, "Dana", gotTeam.Owner.Name)
	require.Len(t, gotTeam.Members, 1)

	gotUser, err := users.GetByIDWithRelations(ctx, owner.ID)
	require.NoError(t, err)
	require.NotNil(t, gotUser.Team)
	require.Len(t, gotUser.Tasks, 1)
	assert.Equal(t, "Ship it", gotUser.Tasks[0].Title)

	gotProject, err := projects.GetByIDWithRelations(ctx, project.ID)
	require.NoError(t, err)
	require.Len(t, gotProject.Teams, 1)
	assert.Len(t, gotProject.Teams[0].Members, 1)
}

func TestList_SearchAndPagination(t *testing.T) {
	pool, ctx := newFixturePool(t)
	tasks := NewTaskRepository(pool)

	now := time.Now().UTC()
	for _, title := range []string{"Fix login", "Fix logout", "Write docs"} {
		require.NoError(t, tasks.Create(ctx, &domain.Task{
			ID: uuid.NewString(), Title: title, Status: domain.TaskStatusTodo,
			CreatedAt: now, UpdatedAt: now,
		}))
	}

	items, total, err := tasks.List(ctx, 1, 10, "fix")
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, items, 2)

	items, total, err = tasks.List(ctx, 2, 2, "")
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, items, 1)
}

func TestStatsRepository_Counts(t *testing.T) {
	pool, ctx := newFixturePool(t)
	users := NewUserRepository(pool)
	tasks := NewTaskRepository(pool)
	stats := NewStatsRepository(pool)

	now := time.Now().UTC()
	require.NoError(t, users.Create(ctx, makeUser("A", "a@example.com")))

	past := now.Add(-24 * time.Hour)
	require.NoError(t, tasks.Create(ctx, &domain.Task{
		ID: uuid.NewString(), Title: "late", Status: domain.TaskStatusTodo,
		Deadline: &past, CreatedAt: now, UpdatedAt: now,
	}))
	require.NoError(t, tasks.Create(ctx, &domain.Task{
		ID: uuid.NewString(), Title: "done late", Status: domain.TaskStatusDone,
		Deadline: &past, CreatedAt: now, UpdatedAt: now,
	}))

	c, err := stats.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Users)
	assert.Equal(t, 2, c.Tasks)
	assert.Equal(t, 1, c.TasksTodo)
	assert.Equal(t, 1, c.TasksDone)
	assert.Equal(t, 1, c.TasksOverdue)
}
