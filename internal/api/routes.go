package api

import (
	"github.com/go-chi/chi/v5"
)

// setupAPIRoutes sets up API v1 routes
func (s *RESTServer) setupAPIRoutes(r chi.Router) {
	// Health check
	r.Get("/health", s.HandleHealth)

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)

		// Router actions
		r.Route("/router", func(r chi.Router) {
			r.Post("/", s.HandleRouterAction)
			r.Get("/system", s.HandleGetSystem)
			r.Get("/interfaces", s.HandleGetInterfaces)
			r.Get("/sessions", s.HandleGetSessions)
			r.Get("/traffic", s.HandleGetTraffic)
			r.Post("/test", s.HandleTestConnection)

			r.Get("/settings", s.HandleGetSettings)
			r.With(s.adminOnly).Put("/settings", s.HandleSaveSettings)
		})

		// Secrets
		r.Route("/secrets", func(r chi.Router) {
			r.Get("/", s.HandleListSecrets)
			r.Post("/", s.HandleCreateSecret)
			r.Post("/import", s.HandleImportSecrets)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.HandleGetSecret)
				r.Put("/", s.HandleUpdateSecret)
				r.Delete("/", s.HandleDeleteSecret)
				r.Post("/sync", s.HandleSyncSecret)
				r.Post("/toggle", s.HandleToggleSecret)
			})
		})

		// Packages
		r.Route("/packages", func(r chi.Router) {
			r.Get("/", s.HandleListPackages)
			r.Post("/", s.HandleCreatePackage)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.HandleGetPackage)
				r.Put("/", s.HandleUpdatePackage)
				r.Delete("/", s.HandleDeletePackage)
				r.Post("/sync", s.HandleSyncPackage)
			})
		})
	})
}
