// Package server assembles the HTTP router.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/taskorbit/taskchat/internal/api"
	"github.com/taskorbit/taskchat/internal/api/handlers"
	"github.com/taskorbit/taskchat/internal/api/middleware"
	"github.com/taskorbit/taskchat/internal/metrics"
)

type RouterConfig struct {
	ChatHandler    *handlers.ChatHandler
	TaskHandler    *handlers.TaskHandler
	UserHandler    *handlers.UserHandler
	TeamHandler    *handlers.TeamHandler
	ProjectHandler *handlers.ProjectHandler
	Metrics        *metrics.Metrics
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 1 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	if cfg.Metrics != nil {
		r.Use(middleware.Metrics(cfg.Metrics))
	}
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/task-manager", func(r chi.Router) {
		r.Post("/chat", cfg.ChatHandler.Chat)
		r.Get("/chat-stream", cfg.ChatHandler.ChatStream)
	})

	r.Route("/tasks", func(r chi.Router) {
		r.Post("/", cfg.TaskHandler.Create)
		r.Get("/", cfg.TaskHandler.List)
		r.Get("/{id}", cfg.TaskHandler.Get)
		r.Put("/{id}", cfg.TaskHandler.Update)
		r.Delete("/{id}", cfg.TaskHandler.Delete)
	})

	r.Route("/users", func(r chi.Router) {
		r.Post("/", cfg.UserHandler.Create)
		r.Get("/", cfg.UserHandler.List)
		r.Get("/{id}", cfg.UserHandler.Get)
		r.Put("/{id}", cfg.UserHandler.Update)
		r.Delete("/{id}", cfg.UserHandler.Delete)
	})

	r.Route("/teams", func(r chi.Router) {
		r.Post("/", cfg.TeamHandler.Create)
		r.Get("/", cfg.TeamHandler.List)
		r.Get("/{id}", cfg.TeamHandler.Get)
		r.Put("/{id}", cfg.TeamHandler.Update)
		r.Delete("/{id}", cfg.TeamHandler.Delete)
	})

	r.Route("/projects", func(r chi.Router) {
		r.Post("/", cfg.ProjectHandler.Create)
		r.Get("/", cfg.ProjectHandler.List)
		r.Get("/{id}", cfg.ProjectHandler.Get)
		r.Put("/{id}", cfg.ProjectHandler.Update)
		r.Delete("/{id}", cfg.ProjectHandler.Delete)
	})

	return r
}
