package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskorbit/taskchat/internal/api/handlers"
	"github.com/taskorbit/taskchat/internal/domain"
	"github.com/taskorbit/taskchat/internal/entity"
	"github.com/taskorbit/taskchat/internal/pipeline"
)

type stubPipeline struct{}

func (stubPipeline) Process(ctx context.Context, req pipeline.Request) pipeline.Response {
	return pipeline.Response{Answer: "ok", SessionID: "s1"}
}

func (stubPipeline) ProcessStream(ctx context.Context, req pipeline.Request, emit func(pipeline.StreamEvent)) {
	emit(pipeline.StreamEvent{Type: pipeline.EventStart, SessionID: "s1"})
	emit(pipeline.StreamEvent{Type: pipeline.EventComplete, Response: &pipeline.Response{Answer: "ok"}})
}

type stubTasks struct{}

func (stubTasks) Create(ctx context.Context, in entity.CreateTaskInput) (*domain.Task, error) {
	return &domain.Task{ID: "K1", Title: in.Title}, nil
}
func (stubTasks) Get(ctx context.Context, id string) (*domain.Task, error) {
	return nil, domain.ErrTaskNotFound
}
func (stubTasks) Update(ctx context.Context, id string, in entity.UpdateTaskInput) (*domain.Task, error) {
	return nil, domain.ErrTaskNotFound
}
func (stubTasks) Delete(ctx context.Context, id string) error { return domain.ErrTaskNotFound }
func (stubTasks) List(ctx context.Context, page, limit int, search string) ([]*domain.Task, int, error) {
	return nil, 0, nil
}

type stubUsers struct{}

func (stubUsers) Create(ctx context.Context, in entity.CreateUserInput) (*domain.User, error) {
	return nil, domain.ErrEmailTaken
}
func (stubUsers) Get(ctx context.Context, id string) (*domain.User, error) {
	return nil, domain.ErrUserNotFound
}
func (stubUsers) Update(ctx context.Context, id string, in entity.UpdateUserInput) (*domain.User, error) {
	return nil, domain.ErrUserNotFound
}
func (stubUsers) Delete(ctx context.Context, id string) error { return nil }
func (stubUsers) List(ctx context.Context, page, limit int, search string) ([]*domain.User, int, error) {
	return nil, 0, nil
}

type stubTeams struct{}

func (stubTeams) Create(ctx context.Context, in entity.CreateTeamInput) (*domain.Team, error) {
	return &domain.Team{ID: "T1", Name: in.Name}, nil
}
func (stubTeams) Get(ctx context.Context, id string) (*domain.Team, error) {
	return nil, domain.ErrTeamNotFound
}
func (stubTeams) Update(ctx context.Context, id string, in entity.UpdateTeamInput) (*domain.Team, error) {
	return nil, domain.ErrTeamNotFound
}
func (stubTeams) Delete(ctx context.Context, id string) error { return nil }
func (stubTeams) List(ctx context.Context, page, limit int, search string) ([]*domain.Team, int, error) {
	return nil, 0, nil
}

type stubProjects struct{}

func (stubProjects) Create(ctx context.Context, in entity.CreateProjectInput) (*domain.Project, error) {
	return &domain.Project{ID: "P1", Name: in.Name}, nil
}
func (stubProjects) Get(ctx context.Context, id string) (*domain.Project, error) {
	return nil, domain.ErrProjectNotFound
}
func (stubProjects) Update(ctx context.Context, id string, in entity.UpdateProjectInput) (*domain.Project, error) {
	return nil, domain.ErrProjectNotFound
}
func (stubProjects) Delete(ctx context.Context, id string) error { return nil }
func (stubProjects) List(ctx context.Context, page, limit int, search string) ([]*domain.Project, int, error) {
	return nil, 0, nil
}

func newTestRouter() http.Handler {
	return NewRouter(RouterConfig{
		ChatHandler:    handlers.NewChatHandler(stubPipeline{}, nil),
		TaskHandler:    handlers.NewTaskHandler(stubTasks{}),
		UserHandler:    handlers.NewUserHandler(stubUsers{}),
		TeamHandler:    handlers.NewTeamHandler(stubTeams{}),
		ProjectHandler: handlers.NewProjectHandler(stubProjects{}),
	})
}

func TestRouter_Health(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_ChatRoutes(t *testing.T) {
	r := newTestRouter()

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/task-manager/chat", strings.NewReader(`{"query": "hi"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"answer":"ok"`)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/task-manager/chat-stream?query=hi", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
}

func TestRouter_EntityErrorMapping(t *testing.T) {
	r := newTestRouter()

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tasks/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(`{"name": "A", "email": "a@x.io", "password": "secret1"}`)))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRouter_BodyLimit(t *testing.T) {
	r := newTestRouter()

	req := httptest.NewRequest(http.MethodPost, "/task-manager/chat", strings.NewReader("{}"))
	req.ContentLength = 10 * 1024 * 1024
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}
