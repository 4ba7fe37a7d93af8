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

type TeamServiceInterface interface {
	Create(ctx context.Context, in entity.CreateTeamInput) (*domain.Team, error)
	Get(ctx context.Context, id string) (*domain.Team, error)
	Update(ctx context.Context, id string, in entity.UpdateTeamInput) (*domain.Team, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, page, limit int, search string) ([]*domain.Team, int, error)
}

type TeamHandler struct {
	svc TeamServiceInterface
}

func NewTeamHandler(svc TeamServiceInterface) *TeamHandler {
	return &TeamHandler{svc: svc}
}

func (h *TeamHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in entity.CreateTeamInput
	if !decodeBody(w, r, &in) {
		return
	}
	team, err := h.svc.Create(r.Context(), in)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusCreated, team)
}

func (h *TeamHandler) Get(w http.ResponseWriter, r *http.Request) {
	team, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, team)
}

func (h *TeamHandler) List(w http.ResponseWriter, r *http.Request) {
	page, limit, search := listParams(r)
	teams, total, err := h.svc.List(r.Context(), page, limit, search)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, pagination.NewResult(teams, total, page, limit))
}

func (h *TeamHandler) Update(w http.ResponseWriter, r *http.Request) {
	var in entity.UpdateTeamInput
	if !decodeBody(w, r, &in) {
		return
	}
	team, err := h.svc.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, team)
}

func (h *TeamHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		api.HandleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
