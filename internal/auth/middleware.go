package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"worknest/internal/logger"
)

type ctxKey struct{}

// OperatorFromContext returns the operator set by RequireAuth.
func OperatorFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ctxKey{}).(string)
	return v, ok && v != ""
}

// RequireAuth admits requests carrying a valid operator token as
// "Authorization: Bearer <jwt>". Rejections answer 401 with a
// WWW-Authenticate challenge; a token that fails verification is logged.
func RequireAuth(jwtSvc *JWT, log *slog.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				challenge(w, `Bearer realm="worknest"`)
				return
			}

			operator, err := jwtSvc.Verify(token)
			if err != nil {
				log.WarnContext(r.Context(), "rejected operator token",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("remote_addr", r.RemoteAddr),
					logger.Error(err))
				challenge(w, `Bearer realm="worknest", error="invalid_token"`)
				return
			}

			ctx := context.WithValue(r.Context(), ctxKey{}, operator)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken accepts the scheme in any case, as RFC 7235 allows.
func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func challenge(w http.ResponseWriter, value string) {
	w.Header().Set("WWW-Authenticate", value)
	http.Error(w, "unauthorized", http.StatusUnauthorized)
}
