package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"posegen/internal/http/handlers"
	"posegen/internal/infra"
	"posegen/internal/middleware"
)

// RouterOptions configures the middleware stack.
type RouterOptions struct {
	Logger          *infra.Logger
	AllowedOrigins  []string
	RateLimitPerMin int
}

func NewRouter(app *handlers.App, opts RouterOptions) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	submitLimit := middleware.RateLimit(opts.RateLimitPerMin, time.Minute)

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(*logger),
		middleware.CORS(opts.AllowedOrigins),
	)

	// Health
	r.Get("/v1/healthz", app.Health)

	r.Route("/v1/sessions", func(r chi.Router) {
		r.Post("/", app.CreateSession)
		r.Route("/{session_id}", func(r chi.Router) {
			r.Get("/", app.GetSession)
			r.Delete("/", app.DeleteSession)
			r.Get("/stream", app.Stream)
			r.Route("/generations", func(r chi.Router) {
				r.With(submitLimit).Post("/", app.SubmitGeneration)
				r.Get("/", app.ListGenerations)
				r.Get("/{prediction_id}", app.GetGeneration)
				r.Get("/{prediction_id}/zip", app.GenerationZip)
			})
		})
	})

	// Flat routes for browser clients. The session rides in X-Session-ID or the
	// cookie set by /generate.
	r.With(submitLimit).Post("/generate", app.Generate)
	r.Get("/status/{id}", app.Status)

	return r
}
