package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/taskorbit/taskchat/internal/api"
	"github.com/taskorbit/taskchat/internal/domain"
	"github.com/taskorbit/taskchat/internal/entity"
	"github.com/taskorbit/taskchat/internal/pagination"
)

type TaskServiceInterface interface {
	Create(ctx context.Context, in entity.CreateTaskInput) (*domain.Task, error)
	Get(ctx context.Context, id string) (*domain.Task, error)
	Update(ctx context.Context, id string, in entity.UpdateTaskInput) (*domain.Task, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, page, limit int, search string) ([]*domain.Task, int, error)
}

type TaskHandler struct {
	svc TaskServiceInterface
}

func NewTaskHandler(svc TaskServiceInterface) *TaskHandler {
	return &TaskHandler{svc: svc}
}

func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in entity.CreateTaskInput
	if !decodeBody(w, r, &in) {
		return
	}
	task, err := h.svc.Create(r.Context(), in)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusCreated, task)
}

func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	task, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, task)
}

func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	page, limit, search := listParams(r)
	tasks, total, err := h.svc.List(r.Context(), page, limit, search)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, pagination.NewResult(tasks, total, page, limit))
}

func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	var in entity.UpdateTaskInput
	if !decodeBody(w, r, &in) {
		return
	}
	task, err := h.svc.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, task)
}

func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		api.HandleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
