package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/quillcms/quill/internal/api/handler"
	mw "github.com/quillcms/quill/internal/api/middleware"
	"github.com/quillcms/quill/internal/core"
	"github.com/quillcms/quill/internal/storage"
)

type Server struct {
	router  chi.Router
	logger  zerolog.Logger
	pool    *pgxpool.Pool
	backups *core.BackupService
	driver  storage.Driver
}

func NewServer(logger zerolog.Logger, pool *pgxpool.Pool, backups *core.BackupService, driver storage.Driver) *Server {
	s := &Server{
		router:  chi.NewRouter(),
		logger:  logger,
		pool:    pool,
		backups: backups,
		driver:  driver,
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
	s.router.Handle("/metrics", promhttp.Handler())
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Get("/readyz", s.handleReadyz)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(mw.Auth(s.pool))
		r.Use(mw.RequireScope("all"))

		backup := handler.NewBackup(s.backups, s.driver, s.logger)
		r.Get("/backups", backup.List)
		r.Post("/backups", backup.Create)
		r.Post("/backups/import", backup.Import)
		r.Post("/backups/restore", backup.Restore)
		r.Get("/backups/download/{id}", backup.Download)
		r.Get("/backups/{id}", backup.Get)
		r.Delete("/backups/{id}", backup.Delete)
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if err := s.pool.Ping(r.Context()); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"status": "database unavailable"})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
