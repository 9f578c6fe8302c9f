package middleware

import (
	"net/http"

	"github.com/go-chi/cors"

	"github.com/agrimarket/agrimarket-backend/pkg/config"
)

// CORS opens the API to the configured storefront origins. Clients send bearer
// tokens, not cookies, so credentials stay disabled.
func CORS(cfg config.CORSConfig) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", idempotencyHeader, requestIDHeader},
		ExposedHeaders: []string{requestIDHeader, replayedHeader, "Retry-After"},
		MaxAge:         int(cfg.MaxAge.Seconds()),
	})
}
