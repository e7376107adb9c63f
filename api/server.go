/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging through zerolog
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for the timesheet frontend

ROUTE GROUPS:
  /api/schedules/*      Work schedules and fortnight totals
  /api/users/*          Profiles, entries, day outcomes, TOIL balance
  /api/toil/*           Threshold administration
  /api/scenarios/*      Demo scenarios (reset the database)
  /healthz              Liveness and database check

SECURITY NOTE:
  No authentication middleware. The host application is expected to sit in
  front of this service.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(requestLogger(h.Log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", h.Health)

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Schedule routes
		r.Route("/schedules", func(r chi.Router) {
			r.Get("/", h.ListSchedules)
			r.Post("/", h.CreateSchedule)
			r.Get("/{id}", h.GetSchedule)
			r.Get("/{id}/fortnight", h.GetFortnight)
			r.Get("/{id}/days/{date}", h.GetScheduleDay)
		})

		// User routes
		r.Route("/users/{id}", func(r chi.Router) {
			r.Get("/profile", h.GetProfile)
			r.Put("/profile", h.PutProfile)
			r.Get("/entries", h.ListEntries)
			r.Post("/entries", h.CreateEntry)
			r.Delete("/entries/{entryID}", h.DeleteEntry)
			r.Get("/days/{date}", h.GetDay)
			r.Put("/days/{date}/status", h.PutDayStatus)
			r.Get("/toil", h.GetToil)
		})

		// TOIL administration
		r.Route("/toil/thresholds", func(r chi.Router) {
			r.Get("/", h.GetThresholds)
			r.Put("/", h.PutThresholds)
			r.Post("/reset", h.ResetThresholds)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	return r
}

// requestLogger logs one line per request with its status and latency.
func requestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				log.Info().
					Str("request_id", middleware.GetReqID(r.Context())).
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Int("status", ww.Status()).
					Int("bytes", ww.BytesWritten()).
					Dur("latency", time.Since(start)).
					Msg("request")
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
