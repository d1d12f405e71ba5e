package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"bibble/internal/http/handlers"
	"bibble/internal/middleware"
)

// Options configures the cross-cutting middleware.
type Options struct {
	RateLimitPerMinute int
	CORSOrigins        []string
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		chimw.RealIP,
		middleware.RequestID(app.Logger),
		middleware.Logger(app.Logger),
		chimw.Recoverer,
		middleware.CORS(opts.CORSOrigins),
	)

	r.Get("/v1/healthz", app.Health)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(opts.RateLimitPerMinute, time.Minute))
		r.Post("/v1/videos", app.VideosGenerate)
		r.Post("/v1/images/edits", app.ImagesEdit)
	})

	r.Get("/v1/jobs/{id}", app.JobStatus)
	r.Get("/v1/artifacts/{name}", app.ArtifactDownload)

	return r
}
