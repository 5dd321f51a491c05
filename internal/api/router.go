/**
 * @description
 * This file sets up the HTTP router for the subscription service using the
 * go-chi/chi router. It applies logging, recovery, security header and CORS
 * middleware, and maps the public, authenticated and admin routes to their
 * handlers.
 */
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/seacatering/subscription-service/internal/security"
)

// NewRouter creates a new Chi router and registers the service routes.
func NewRouter(h *Handler, auth *Authenticator, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Setup middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(security.Headers)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", CSRFHeader},
		ExposedHeaders:   []string{CSRFHeader, "Retry-After", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any major browsers
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Subscription service is healthy"))
	})

	// Public routes
	r.Get("/plans", h.handleListPlans)
	r.Post("/quote", h.handleQuote)
	r.Get("/testimonials", h.handleListApprovedTestimonials)
	if h.auth != nil {
		r.Post("/auth/signup", h.handleSignUp)
		r.Post("/auth/signin", h.handleSignIn)
	}

	// Protected routes that require a bearer token
	r.Group(func(r chi.Router) {
		r.Use(h.Authenticate(auth))

		r.Get("/csrf-token", h.handleIssueCSRFToken)
		r.Get("/subscriptions", h.handleListSubscriptions)
		r.Get("/subscriptions/{id}", h.handleGetSubscription)
		r.Get("/testimonials/mine", h.handleListMyTestimonials)

		r.Group(func(r chi.Router) {
			r.Use(h.RequireCSRF)

			r.Post("/subscriptions", h.handleCreateSubscription)
			r.Post("/subscriptions/{id}/pause", h.handlePause)
			r.Post("/subscriptions/{id}/resume", h.transitionHandler(h.subscriptions.Resume))
			r.Post("/subscriptions/{id}/cancel", h.transitionHandler(h.subscriptions.Cancel))
			r.Post("/subscriptions/{id}/reactivate", h.transitionHandler(h.subscriptions.Reactivate))
			r.Patch("/subscriptions/{id}/status", h.handleUpdateStatus)
			r.Post("/testimonials", h.handleSubmitTestimonial)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(h.RequireAdmin)

			r.Get("/metrics", h.handleMetrics)
			r.Get("/metrics.csv", h.handleMetricsCSV)
			r.Get("/testimonials", h.handleListAllTestimonials)
			r.With(h.RequireCSRF).Post("/testimonials/{id}/approve", h.handleApproveTestimonial)
		})
	})

	return r
}
