package dashboard

import (
	"net/http"

	"github.com/ethpandaops/llmsentinel/pkg/metrics"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// buildRouter constructs the chi router with all routes and middleware.
func (s *server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chimw.Recoverer)
	r.Use(s.requestLogger)
	r.Use(s.corsMiddleware())

	// Health bypasses auth and the refresh limit.
	r.Get("/api/v1/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		if s.cfg.RateLimit.Enabled {
			r.Use(s.refreshLimitMiddleware(s.cfg.RateLimit.RefreshesPerMinute))
		}

		if s.cfg.Auth.Basic.Enabled {
			r.Use(s.requireBasicAuth)
		}

		r.Get("/", s.handleIndex)
		r.Handle("/metrics", metrics.Handler())

		r.Route("/api/v1", func(r chi.Router) {
			r.Get("/evaluations", s.handleEvaluations)
			r.Get("/aggregates", s.handleAggregates)
			r.Get("/trend", s.handleTrend)
		})
	})

	return r
}

// corsMiddleware returns a CORS handler configured from the dashboard config.
func (s *server) corsMiddleware() func(http.Handler) http.Handler {
	opts := cors.Options{
		AllowedMethods: []string{"GET", "HEAD", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         300,
	}

	origins := s.cfg.CORSOrigins

	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		opts.AllowOriginFunc = func(_ *http.Request, _ string) bool {
			return true
		}
	} else {
		opts.AllowedOrigins = origins
	}

	return cors.Handler(opts)
}
