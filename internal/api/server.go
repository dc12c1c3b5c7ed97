package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/autobit/compute/internal/api/handler"
	mw "github.com/autobit/compute/internal/api/middleware"
	"github.com/autobit/compute/internal/config"
	"github.com/autobit/compute/internal/core"
	"github.com/autobit/compute/internal/runtime"
)

type Server struct {
	router   chi.Router
	logger   zerolog.Logger
	services *core.Services
	pool     *pgxpool.Pool
	rt       runtime.Runtime
	cfg      *config.Config
}

func NewServer(logger zerolog.Logger, pool *pgxpool.Pool, rt runtime.Runtime, pub core.EventPublisher, cfg *config.Config) *Server {
	services := core.NewServices(pool, rt, pub, cfg, logger)

	s := &Server{
		router:   chi.NewRouter(),
		logger:   logger,
		services: services,
		pool:     pool,
		rt:       rt,
		cfg:      cfg,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(mw.RequestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(mw.Metrics)
}

func (s *Server) setupRoutes() {
	// Prometheus metrics endpoint
	s.router.Handle("/metrics", promhttp.Handler())

	// Health check endpoints
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Get("/readyz", s.handleReadyz)

	s.router.Route("/v1", func(r chi.Router) {
		r.Use(mw.Auth)

		// Servers
		server := handler.NewServer(s.services.Server)
		r.Get("/servers", server.List)
		r.Post("/servers", server.Create)
		r.Get("/servers/{id}", server.Get)
		r.Patch("/servers/{id}", server.Update)
		r.Delete("/servers/{id}", server.Delete)
		r.Post("/servers/{id}/start", server.Start)
		r.Post("/servers/{id}/stop", server.Stop)

		// Usage
		usage := handler.NewUsage(s.services.Server, s.services.Usage)
		r.Get("/servers/{id}/usage", usage.Query)

		// Billing
		billing := handler.NewBilling(s.services.Billing)
		r.Get("/billing/rates", billing.Rates)
		r.Get("/invoices", billing.List)
		r.Post("/invoices", billing.Generate)
		r.Get("/invoices/{id}", billing.Get)
		r.Post("/invoices/{id}/pay", billing.Pay)
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := map[string]string{}
	healthy := true

	if err := s.pool.Ping(ctx); err != nil {
		checks["db"] = err.Error()
		healthy = false
	} else {
		checks["db"] = "ok"
	}

	// The runtime mode is informational: a mock runtime still serves traffic.
	checks["runtime_mode"] = s.rt.Mode()

	w.Header().Set("Content-Type", "application/json")
	if healthy {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(checks)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
