package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

// EchoRequestID copies the id assigned by middleware.RequestID onto the
// response, so an operator can quote it when a job call fails.
func EchoRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			w.Header().Set(middleware.RequestIDHeader, id)
		}
		next.ServeHTTP(w, r)
	})
}
