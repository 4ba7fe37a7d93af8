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

type ProjectServiceInterface interface {
	Create(ctx context.Context, in entity.CreateProjectInput) (*domain.Project, error)
	Get(ctx context.Context, id string) (*domain.Project, error)
	Update(ctx context.Context, id string, in entity.UpdateProjectInput) (*domain.Project, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, page, limit int, search string) ([]*domain.Project, int, error)
}

type ProjectHandler struct {
	svc ProjectServiceInterface
}

func NewProjectHandler(svc ProjectServiceInterface) *ProjectHandler {
	return &ProjectHandler{svc: svc}
}

func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in entity.CreateProjectInput
	if !decodeBody(w, r, &in) {
		return
	}
	project, err := h.svc.Create(r.Context(), in)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusCreated, project)
}

func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	project, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, project)
}

func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	page, limit, search := listParams(r)
	projects, total, err := h.svc.List(r.Context(), page, limit, search)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, pagination.NewResult(projects, total, page, limit))
}

func (h *ProjectHandler) Update(w http.ResponseWriter, r *http.Request) {
	var in entity.UpdateProjectInput
	if !decodeBody(w, r, &in) {
		return
	}
	project, err := h.svc.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, project)
}

func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		api.HandleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
