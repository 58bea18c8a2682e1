// Package main provides the API router setup.
package main

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/palasgaonkar-vishal/el-scooter-chat-assist-sub000/cmd/faq-engine-api/handlers"
	"github.com/palasgaonkar-vishal/el-scooter-chat-assist-sub000/cmd/faq-engine-api/middleware"
	"github.com/palasgaonkar-vishal/el-scooter-chat-assist-sub000/internal/api/rpc"
	"github.com/palasgaonkar-vishal/el-scooter-chat-assist-sub000/internal/observability"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Services holds the wired engine components served by the router.
type Services struct {
	Searcher    handlers.Searcher
	Feedback    handlers.Feedback
	Assistant   handlers.Asker
	Escalations handlers.Escalations
	MatchRPC    *rpc.MatchService
	DB          Pinger
	Metrics     prometheus.Gatherer
}

// AppConfig holds router configuration.
type AppConfig struct {
	RequestTimeout time.Duration
	AllowedOrigins []string
	SearchLimit    int
}

// DefaultAppConfig returns default configuration values.
func DefaultAppConfig() *AppConfig {
	return &AppConfig{
		RequestTimeout: 30 * time.Second,
		AllowedOrigins: []string{"*"},
		SearchLimit:    10,
	}
}

// NewRouter creates the main API router with all routes configured.
func NewRouter(logger *observability.Logger, svc *Services, cfg *AppConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.User())
	r.Use(middleware.RequestLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(chimiddleware.Timeout(cfg.RequestTimeout))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"healthy","service":"faq-engine"}`))
	})

	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if svc.DB != nil {
			if err := svc.DB.PingContext(r.Context()); err != nil {
				logger.WithContext(r.Context()).Warn().Err(err).Msg("Readiness check failed")
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte(`{"status":"unavailable"}`))
				return
			}
		}
		w.Write([]byte(`{"status":"ready"}`))
	})

	if svc.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(svc.Metrics, promhttp.HandlerOpts{}))
	}

	if svc.MatchRPC != nil {
		path, handler := svc.MatchRPC.Handler()
		r.Mount(path, handler)
	}

	faqHandler := handlers.NewFAQHandler(logger, svc.Searcher, svc.Feedback, cfg.SearchLimit)
	assistHandler := handlers.NewAssistHandler(logger, svc.Assistant)
	escalationHandler := handlers.NewEscalationHandler(logger, svc.Escalations)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/faqs", func(r chi.Router) {
			r.Post("/search", faqHandler.Search)
			r.Route("/{faqId}", func(r chi.Router) {
				r.Post("/view", faqHandler.View)
				r.Post("/rating", faqHandler.Rate)
				r.Get("/stats", faqHandler.Stats)
			})
		})

		r.Route("/assist", func(r chi.Router) {
			r.Post("/ask", assistHandler.Ask)
		})

		r.Route("/escalations", func(r chi.Router) {
			r.Get("/", escalationHandler.List)
			r.Get("/{escalationId}", escalationHandler.Get)
			r.Patch("/{escalationId}", escalationHandler.Update)
		})
	})

	return r
}
