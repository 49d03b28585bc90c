package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/fableworks/storyforge/internal/api"
	apiMiddleware "github.com/fableworks/storyforge/internal/api/middleware"
	"github.com/fableworks/storyforge/internal/metrics"
)

// setupRouter creates and configures the application router with all routes
// and middleware. Handlers are built from the application's dependencies.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	// Apply standard middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.Trace) // trace IDs tie error responses to log entries

	storyHandler := api.NewStoryHandler(
		app.sessions,
		app.scripter,
		app.factory,
		app.runner,
		app.hub,
		app.logger,
	)

	// Register routes
	r.Route("/api", func(r chi.Router) {
		r.Post("/stories", storyHandler.CreateStory)

		r.Route("/stories/{id}", func(r chi.Router) {
			r.Get("/", storyHandler.GetStory)
			r.Post("/start", storyHandler.StartStory)
			r.Get("/events", storyHandler.StreamEvents)
		})
	})

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, err := w.Write([]byte("OK"))
		if err != nil {
			app.logger.Error("Failed to write health check response", "error", err)
		}
	})

	// Prometheus exposition for the collectors registered at startup
	r.Method(http.MethodGet, "/metrics", metrics.Handler(app.registry))

	return r
}
