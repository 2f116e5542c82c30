package api

import (
	"github.com/go-chi/chi/v5"
)

// setupAPIRoutes sets up API v1 routes
func (s *RESTServer) setupAPIRoutes(r chi.Router) {
	// Health check
	r.Get("/health", s.HandleHealth)
	r.Get("/", s.HandleRoot)

	// Auth routes (public)
	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", s.HandleLogin)
		r.Post("/refresh", s.HandleRefresh)
	})

	// Captive portal routes (public, used by customers behind the router)
	r.Route("/portal", func(r chi.Router) {
		r.Get("/plans", s.HandlePortalPlans)
		r.Get("/config", s.HandlePortalConfig)
		r.Post("/payments", s.HandlePortalInitiatePayment)
		r.Get("/payments/{reference}", s.HandlePortalPaymentStatus)
		r.Post("/callback/mtn", s.HandleMTNCallback)
		r.Post("/vouchers/validate", s.HandleValidateVoucher)
	})

	// Protected routes
	r.Group(func(r chi.Router) {
		// Users
		r.Route("/users", func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Get("/", s.HandleListUsers)
			r.Post("/", s.HandleCreateUser)
			r.Get("/me", s.HandleGetCurrentUser)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.HandleGetUser)
				r.Put("/", s.HandleUpdateUser)
				r.Delete("/", s.HandleDeleteUser)
			})
		})

		// Zones
		r.Route("/zones", func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Get("/", s.HandleListZones)
			r.Post("/", s.HandleCreateZone)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.HandleGetZone)
				r.Put("/", s.HandleUpdateZone)
				r.Delete("/", s.HandleDeleteZone)
				r.Post("/test", s.HandleTestZone)
				r.Get("/active-users", s.HandleZoneActiveUsers)
				r.Post("/disconnect", s.HandleZoneDisconnect)
			})
		})

		// Vouchers
		r.Route("/vouchers", func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Get("/", s.HandleListVouchers)
			r.Post("/generate", s.HandleGenerateVouchers)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.HandleGetVoucher)
				r.Delete("/", s.HandleDeleteVoucher)
			})
		})

		// Payments
		r.Route("/payments", func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Get("/", s.HandleListPayments)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.HandleGetPayment)
				r.Post("/retry-provision", s.HandleRetryProvision)
				r.Post("/confirm-cash", s.HandleConfirmCash)
			})
		})

		// Portal configuration
		r.Route("/portal-config", func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Get("/", s.HandleGetPortalConfig)
			r.Put("/", s.HandleSavePortalConfig)
		})

		// Events
		r.Route("/events", func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Get("/", s.HandleListEvents)
		})
	})
}
