package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SetupRoutes configures the router for the query surface.
func SetupRoutes(h *Handlers, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", sessionHeader},
		ExposedHeaders:   []string{sessionHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", h.HealthCheck)

	r.Route("/api", func(r chi.Router) {
		r.Post("/uploads/{kind}", h.Upload)
		r.Post("/reset", h.Reset)
		r.Get("/state", h.State)

		r.Route("/metrics", func(r chi.Router) {
			r.Get("/timeseries", h.TimeSeries)
			r.Get("/summary", h.Summary)
			r.Get("/change", h.Change)
			r.Get("/day-of-week", h.DayOfWeek)
			r.Get("/hour-of-day", h.HourOfDay)
		})

		r.Route("/flows", func(r chi.Router) {
			r.Get("/", h.Flows)
			r.Get("/{name}/sequence", h.FlowSequence)
		})
	})

	return r
}
