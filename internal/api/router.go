/**
 * @description
 * This file sets up the HTTP router for the booking web service. It defines the
 * API endpoints, associates them with their handlers, and applies middleware for
 * request ids, logging, CORS and bearer authentication.
 *
 * @dependencies
 * - github.com/go-chi/chi/v5: routing and standard middleware.
 * - github.com/go-chi/cors: CORS for the browser UI.
 * - github.com/prometheus/client_golang: the /metrics endpoint.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/skyconnect/booking-web/internal/logging"
	"github.com/skyconnect/booking-web/internal/session"
)

// Routes creates the router for the booking web service.
func Routes(h *Handlers, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(logging.RequestEntry)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/cancellation-policy", h.CancellationPolicyHandler)
	r.Post("/auth/login", h.LoginHandler)

	r.Group(func(r chi.Router) {
		r.Use(session.Middleware(h.now))

		r.Post("/cancellations/{bookingId}", h.OpenCancellationHandler)
		r.Get("/cancellations/{bookingId}/history", h.CancellationHistoryHandler)

		r.Get("/cancellation-views/{viewId}", h.GetViewHandler)
		r.Delete("/cancellation-views/{viewId}", h.CloseViewHandler)
		r.Post("/cancellation-views/{viewId}/otp", h.RequestOTPHandler)
		r.Post("/cancellation-views/{viewId}/verify", h.VerifyOTPHandler)
	})

	return r
}
