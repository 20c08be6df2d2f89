package main

import (
	"log/slog"
	"net/http"

	"github.com/animegen/animegen-api/internal/api"
	apiMiddleware "github.com/animegen/animegen-api/internal/api/middleware"
	"github.com/animegen/animegen-api/internal/config"
	"github.com/animegen/animegen-api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// newRouter creates and configures the application router with all
// routes and middleware.
func newRouter(cfg *config.Config, taskService service.TaskService, modelService service.ModelService) http.Handler {
	r := chi.NewRouter()

	// Apply standard middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware)

	authMiddleware := apiMiddleware.NewAuthMiddleware(cfg.Auth.APIToken)

	taskHandler := api.NewTaskHandler(taskService)
	modelHandler := api.NewModelHandler(modelService)

	// Register routes
	r.Route("/api", func(r chi.Router) {
		r.Use(authMiddleware.Authenticate)

		// Task endpoints
		r.Post("/task/image", taskHandler.CreateImageTask)
		r.Post("/task/image2image", taskHandler.CreateImageToImageTask)
		r.Post("/task/video", taskHandler.CreateVideoTask)
		r.Get("/task/{id}", taskHandler.GetTask)

		// Model catalog
		r.Get("/models", modelHandler.ListModels)
	})

	// Health check endpoint (public)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			slog.Error("failed to write health check response", "error", err)
		}
	})

	return r
}
