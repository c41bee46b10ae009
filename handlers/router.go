package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

// NewRouter wires the status API. events, when set, serves the live
// websocket feed at /api/events.
func NewRouter(status *StatusHandler, events http.HandlerFunc, allowedOrigins []string, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := chi.NewRouter()

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	})

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(corsHandler.Handler)

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(30 * time.Second))
			r.Get("/locations/{code}/uploads", status.ListUploads)
			r.Route("/runs", func(r chi.Router) {
				r.Get("/latest", status.LatestRun)
				r.Get("/{run_id}", status.GetRun)
			})
			r.Get("/checkpoint", status.GetCheckpoint)
		})
		if events != nil {
			r.Get("/events", events)
		}
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		WriteAPIError(w, http.StatusNotFound, codeNotFound, "No such endpoint: "+r.URL.Path)
	})
	return r
}
