package entity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskorbit/taskchat/internal/domain"
)

type fakeUserRepo struct {
	users map[string]*domain.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[string]*domain.User{}}
}

func (r *fakeUserRepo) Create(ctx context.Context, u *domain.User) error {
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) GetByIDWithRelations(ctx context.Context, id string) (*domain.User, error) {
	return r.GetByID(ctx, id)
}

func (r *fakeUserRepo) Update(ctx context.Context, u *domain.User) error {
	if _, ok := r.users[u.ID]; !ok {
		return domain.ErrUserNotFound
	}
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *fakeUserRepo) Delete(ctx context.Context, id string) error {
	if _, ok := r.users[id]; !ok {
		return domain.ErrUserNotFound
	}
	delete(r.users, id)
	return nil
}

func (r *fakeUserRepo) List(ctx context.Context, page, limit int, search string) ([]*domain.User, int, error) {
	var out []*domain.User
	for _, u := range r.users {
		out = append(out, u)
	}
	return out, len(out), nil
}

func (r *fakeUserRepo) EmailTaken(ctx context.Context, email, excludeID string) (bool, error) {
	for id, u := range r.users {
		if u.Email == email && id != excludeID {
			return true, nil
		}
	}
	return false, nil
}

type recordingIndex struct {
	reindexed []string
	removed   []string
}

func (r *recordingIndex) Reindex(ctx context.Context, kind domain.EntityKind, id string) error {
	r.reindexed = append(r.reindexed, string(kind)+":"+id)
	return nil
}

func (r *recordingIndex) Remove(ctx context.Context, kind domain.EntityKind, id string) error {
	r.removed = append(r.removed, string(kind)+":"+id)
	return nil
}

func TestUserService_CreateHashesAndReindexes(t *testing.T) {
	repo := newFakeUserRepo()
	index := &recordingIndex{}
	svc := NewUserService(repo, index)
	ctx := context.Background()

	u, err := svc.Create(ctx, CreateUserInput{
		Name: "Sara", Email: "sara@example.com", Password: "secret1",
	})

	require.NoError(t, err)
	assert.Equal(t, domain.RoleMember, u.Role)
	assert.NotEqual(t, "secret1", u.PasswordHash)
	assert.NoError(t, CheckPassword(u.PasswordHash, "secret1"))
	require.Len(t, index.reindexed, 1)
	assert.Equal(t, "user:"+u.ID, index.reindexed[0])
}

func TestUserService_CreateValidation(t *testing.T) {
	svc := NewUserService(newFakeUserRepo(), nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateUserInput{Name: "X", Email: "not-an-email", Password: "secret1"})
	assert.Equal(t, domain.CodeValidation, domain.CodeOf(err))

	_, err = svc.Create(ctx, CreateUserInput{Name: "X", Email: "x@example.com", Password: "short"})
	assert.Equal(t, domain.CodeValidation, domain.CodeOf(err))

	_, err = svc.Create(ctx, CreateUserInput{Name: "X", Email: "x@example.com", Password: "secret1", Role: "owner"})
	assert.ErrorIs(t, err, domain.ErrInvalidRole)
}

func TestUserService_EmailConflict(t *testing.T) {
	repo := newFakeUserRepo()
	svc := NewUserService(repo, nil)
	ctx := context.Background()

	first, err := svc.Create(ctx, CreateUserInput{Name: "A", Email: "a@example.com", Password: "secret1"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, CreateUserInput{Name: "B", Email: "a@example.com", Password: "secret1"})
	assert.ErrorIs(t, err, domain.ErrEmailTaken)
	assert.Equal(t, domain.CodeConflict, domain.CodeOf(err))

	// Updating a user to its own email is not a conflict.
	email := "a@example.com"
	_, err = svc.Update(ctx, first.ID, UpdateUserInput{Email: &email})
	assert.NoError(t, err)
}

func TestUserService_DeleteRemovesFromIndex(t *testing.T) {
	repo := newFakeUserRepo()
	index := &recordingIndex{}
	svc := NewUserService(repo, index)
	ctx := context.Background()

	u, err := svc.Create(ctx, CreateUserInput{Name: "A", Email: "a@example.com", Password: "secret1"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, u.ID))
	require.Len(t, index.removed, 1)
	assert.Equal(t, "user:"+u.ID, index.removed[0])

	assert.ErrorIs(t, svc.Delete(ctx, u.ID), domain.ErrUserNotFound)
}

type fakeTaskRepo struct {
	tasks map[string]*domain.Task
}

func newFakeTaskRepo() *fakeTaskRepo {
	return &fakeTaskRepo{tasks: map[string]*domain.Task{}}
}

func (r *fakeTaskRepo) Create(ctx context.Context, t *domain.Task) error {
	cp := *t
	r.tasks[t.ID] = &cp
	return nil
}

func (r *fakeTaskRepo) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	t, ok := r.tasks[id]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *fakeTaskRepo) GetByIDWithRelations(ctx context.Context, id string) (*domain.Task, error) {
	return r.GetByID(ctx, id)
}

func (r *fakeTaskRepo) Update(ctx context.Context, t *domain.Task) error {
	if _, ok := r.tasks[t.ID]; !ok {
		return domain.ErrTaskNotFound
	}
	cp := *t
	r.tasks[t.ID] = &cp
	return nil
}

func (r *fakeTaskRepo) Delete(ctx context.Context, id string) error {
	if _, ok := r.tasks[id]; !ok {
		return domain.ErrTaskNotFound
	}
	delete(r.tasks, id)
	return nil
}

func (r *fakeTaskRepo) List(ctx context.Context, page, limit int, search string) ([]*domain.Task, int, error) {
	return nil, 0, nil
}

func TestTaskService_StatusNormalization(t *testing.T) {
	users := newFakeUserRepo()
	svc := NewTaskService(newFakeTaskRepo(), users, nil)
	ctx := context.Background()

	task, err := svc.Create(ctx, CreateTaskInput{Title: "t", Status: "In Progress"})
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusInProgress, task.Status)

	task, err = svc.Create(ctx, CreateTaskInput{Title: "t2", Status: "completed"})
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusDone, task.Status)

	task, err = svc.Create(ctx, CreateTaskInput{Title: "t3"})
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusTodo, task.Status)

	_, err = svc.Create(ctx, CreateTaskInput{Title: "t4", Status: "blocked"})
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)
}

func TestTaskService_AssigneeMustExist(t *testing.T) {
	users := newFakeUserRepo()
	svc := NewTaskService(newFakeTaskRepo(), users, nil)
	ctx := context.Background()

	missing := "nope"
	_, err := svc.Create(ctx, CreateTaskInput{Title: "t", AssignedTo: &missing})
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	require.NoError(t, users.Create(ctx, &domain.User{ID: "u1", Email: "u@example.com"}))
	id := "u1"
	task, err := svc.Create(ctx, CreateTaskInput{Title: "t", AssignedTo: &id})
	require.NoError(t, err)
	assert.Equal(t, "u1", *task.AssignedTo)
}
