package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(s.httpMetrics)

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/api/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/stats", s.handleStats)

		r.Route("/websites", func(r chi.Router) {
			r.Post("/", s.handleCreateWebsite)
			r.Get("/", s.handleListWebsites)

			r.Route("/{websiteID}", func(r chi.Router) {
				r.Get("/", s.handleGetWebsite)
				r.Put("/", s.handleUpdateWebsite)
				r.Delete("/", s.handleDeleteWebsite)
				r.Post("/checks", s.handleTriggerCheck)
				r.Get("/checks/latest", s.handleLatestCheck)
				r.Get("/history", s.handleListHistory)
			})
		})
	})

	return r
}
