package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"worknest/internal/config"
)

// CORS lets the configured admin origins call the job API. With no origins
// configured it passes requests through untouched.
func CORS(cfg config.Config) func(http.Handler) http.Handler {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost},
		AllowedHeaders:   []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders:   []string{middleware.RequestIDHeader, "WWW-Authenticate"},
		AllowCredentials: cfg.CORSAllowCredentials,
		MaxAge:           int(cfg.CORSMaxAge / time.Second),
	})
}
