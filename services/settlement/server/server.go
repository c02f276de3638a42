package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

// Config captures the dependencies required to construct the ops server.
type Config struct {
	DB *gorm.DB
}

// Server is the operational HTTP surface. It carries no end-user routes;
// claims and balances are read through the on-chain verifier and the
// published weekly artifacts.
type Server struct {
	db     *gorm.DB
	router http.Handler
}

// New constructs the ops router.
func New(cfg Config) *Server {
	srv := &Server{db: cfg.DB}
	srv.router = srv.buildRouter()
	return srv
}

// Handler exposes the configured HTTP router.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", s.health)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	payload := map[string]string{"status": "ok"}
	if s.db != nil {
		if sqlDB, err := s.db.DB(); err != nil {
			status = http.StatusServiceUnavailable
			payload = map[string]string{"status": "degraded", "database": err.Error()}
		} else if err := sqlDB.PingContext(ctx); err != nil {
			status = http.StatusServiceUnavailable
			payload = map[string]string{"status": "degraded", "database": err.Error()}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
