package handler

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// NewRouter assembles the full HTTP surface: public catalog reads,
// authenticated registration routes, and admin-only management routes.
func NewRouter(events *EventHandler, registrations *RegistrationHandler, auth *Auth, log *slog.Logger) chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(AccessLog(log))
	r.Use(CORS)

	r.Get("/health", HealthCheck)

	r.Route("/api", func(r chi.Router) {
		r.Route("/events", func(r chi.Router) {
			r.Get("/", events.List)
			r.Get("/upcoming", events.ListUpcoming)
			r.Get("/{id}", events.Get)

			r.Group(func(r chi.Router) {
				r.Use(auth.Authenticate)
				r.Post("/{id}/register", registrations.Register)
			})

			r.Group(func(r chi.Router) {
				r.Use(auth.Authenticate, auth.RequireAdmin)
				r.Post("/", events.Create)
				r.Put("/{id}", events.Update)
				r.Delete("/{id}", events.Delete)
				r.Post("/{id}/register-user", registrations.RegisterUser)
				r.Post("/{id}/register-by-email", registrations.RegisterUserByEmail)
				r.Get("/{id}/registrations", registrations.ListByEvent)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.Authenticate)
			r.Get("/my-events", registrations.MyEvents)
			r.Delete("/registrations/{id}", registrations.Cancel)
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.Authenticate, auth.RequireAdmin)
			r.Post("/registrations/{id}/attendance", registrations.MarkAttendance)
			r.Delete("/admin/registrations/{id}", registrations.CancelByAdmin)
		})
	})

	return r
}
