package api

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tubescribe/backend/internal/api/handlers"
	"github.com/tubescribe/backend/internal/api/middleware"
	"github.com/tubescribe/backend/internal/config"
)

func NewRouter(runner handlers.Runner, cfg *config.Config) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger)
	r.Use(cors.Handler(middleware.CORSHandler(cfg.CORSOrigins)))

	transcribeHandler := handlers.NewTranscribeHandler(runner)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", transcribeHandler.Health)

		r.Group(func(r chi.Router) {
			r.Use(middleware.MaxBodySize(cfg.MaxBodySize))
			r.Post("/transcribe", transcribeHandler.Transcribe)
		})
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
