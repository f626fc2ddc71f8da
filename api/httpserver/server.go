// Package httpserver exposes the registry service as a JSON API.
package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	jsoniter "github.com/json-iterator/go"

	"tiergc/service"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Server is the tiergc HTTP API server.
type Server struct {
	svc     *service.RegistryService
	router  chi.Router
	version string
	started time.Time
}

// New creates a Server over svc.
func New(svc *service.RegistryService, version string) *Server {
	s := &Server{
		svc:     svc,
		version: version,
		started: time.Now(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/stats", s.handleStats)
		r.Get("/generations/{gen}", s.handleGeneration)

		r.Post("/objects", s.handleCreate)
		r.Get("/objects/{handle}", s.handleDescribe)
		r.Post("/objects/{handle}/addref", s.handleAddRef)
		r.Post("/objects/{handle}/release", s.handleRelease)
		r.Post("/objects/{handle}/remove", s.handleRemove)

		r.Post("/collect", s.handleCollect)
		r.Post("/cleanup", s.handleCleanup)
		r.Get("/collections", s.handleCollections)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	verifyErr := ""
	if err := s.svc.Verify(); err != nil {
		verifyErr = err.Error()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"version":    s.version,
		"uptime":     time.Since(s.started).Seconds(),
		"consistent": verifyErr == "",
		"error":      verifyErr,
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
