package web

import (
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/kozaktomas/face-attendance/internal/web/handlers"
)

const apiTimeout = 30 * time.Second

func (s *Server) setupRoutes() {
	membersHandler := handlers.NewMembersHandler(s.deps.Members, s.log)
	galleryHandler := handlers.NewGalleryHandler(s.deps.Gallery, s.deps.Tolerance, s.log)
	camerasHandler := handlers.NewCamerasHandler(s.deps.Sessions)
	eventsHandler := handlers.NewEventsHandler(s.deps.Events)

	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		// Long-lived stream; kept outside the request timeout.
		r.Get("/events", eventsHandler.Stream)

		r.Group(func(r chi.Router) {
			r.Use(chiMiddleware.Timeout(apiTimeout))

			r.Get("/members", membersHandler.List)
			r.Post("/members", membersHandler.Enroll)
			r.Get("/members/{key}", membersHandler.Get)

			r.Get("/gallery", galleryHandler.Get)
			r.Post("/gallery/reload", galleryHandler.Reload)
			r.Get("/gallery/conflicts", galleryHandler.Conflicts)

			r.Get("/cameras", camerasHandler.List)
			r.Get("/cameras/{name}/status", camerasHandler.Status)
		})
	})

	s.router.Get("/video/{name}", camerasHandler.Video)
	s.router.Get("/webcam/{name}", camerasHandler.Raw)
}
