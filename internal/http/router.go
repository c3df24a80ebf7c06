package http

import (
	"log/slog"
	"net/http"

	"worknest/internal/auth"
	"worknest/internal/config"
	"worknest/internal/http/handler"
	mw "worknest/internal/http/middleware"
	"worknest/internal/jobs"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

func NewRouter(cfg config.Config, engine *jobs.Engine, jobTypes []jobs.Type, jwtSvc *auth.JWT, log *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(mw.EchoRequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(mw.CORS(cfg))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	jh := &handler.JobHandler{Engine: engine, Logger: log}
	me := &handler.MeHandler{JobTypes: jobTypes}

	requireAuth := auth.RequireAuth(jwtSvc, log)

	r.With(requireAuth).Get("/me", me.Me)

	r.Route("/jobs", func(r chi.Router) {
		r.Use(requireAuth)

		r.Post("/", jh.Schedule)
		r.Get("/", jh.List)

		r.Post("/retry-failed", jh.RetryFailed)
		r.Post("/cleanup", jh.Cleanup)

		r.Get("/{id}", jh.Get)
		r.Post("/{id}/execute", jh.Execute)
		r.Post("/{id}/retry", jh.Retry)
	})

	return r
}
