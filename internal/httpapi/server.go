// Package httpapi is the machine-facing surface: a read-mostly status
// API over the store plus idempotent target registration. Rendering is
// left to whatever consumes the JSON.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/PascalHesselink/PassieUptimeRobot/internal/repo"
	"github.com/PascalHesselink/PassieUptimeRobot/internal/scheduler"
)

type Server struct {
	Logger   *zap.Logger
	Store    repo.Store
	Defaults scheduler.Defaults
}

func NewServer(l *zap.Logger, store repo.Store, defaults scheduler.Defaults) *Server {
	return &Server{Logger: l, Store: store, Defaults: defaults}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.AllowAll().Handler)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/api/targets", s.handleOverview)
	r.Post("/api/targets", s.handleAddTarget)
	r.Get("/api/targets/{id}/history", s.handleHistory)
	r.Get("/api/notifications", s.handleNotifications)

	return r
}
