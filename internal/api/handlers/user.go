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

type UserServiceInterface interface {
	Create(ctx context.Context, in entity.CreateUserInput) (*domain.User, error)
	Get(ctx context.Context, id string) (*domain.User, error)
	Update(ctx context.Context, id string, in entity.UpdateUserInput) (*domain.User, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, page, limit int, search string) ([]*domain.User, int, error)
}

type UserHandler struct {
	svc UserServiceInterface
}

func NewUserHandler(svc UserServiceInterface) *UserHandler {
	return &UserHandler{svc: svc}
}

func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in entity.CreateUserInput
	if !decodeBody(w, r, &in) {
		return
	}
	user, err := h.svc.Create(r.Context(), in)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusCreated, user)
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, user)
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	page, limit, search := listParams(r)
	users, total, err := h.svc.List(r.Context(), page, limit, search)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, pagination.NewResult(users, total, page, limit))
}

func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	var in entity.UpdateUserInput
	if !decodeBody(w, r, &in) {
		return
	}
	user, err := h.svc.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, user)
}

func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		api.HandleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
