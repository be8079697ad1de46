package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter constructs the chi router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.loggingMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/gate", func(r chi.Router) {
			r.Get("/status", s.handleStatus)
			r.Post("/command", s.handleCommand)
			r.Get("/operations", s.handleOperations)
		})
	})

	// Real-time control channel.
	path := s.wsCfg.Path
	if path == "" {
		path = "/ws"
	}
	r.Get(path, s.handleWebSocket)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "resource not found")
	})

	return r
}
