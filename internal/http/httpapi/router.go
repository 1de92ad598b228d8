package httpapi

import (
	stdhttp "net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"stylebench/internal/http/handlers"
	mw "stylebench/internal/middleware"
)

func NewRouter(app *handlers.App) stdhttp.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		mw.Logger(app.Logger),
		mw.CORS(app.Config.CORSOrigins),
	)

	// Health
	r.Get("/v1/healthz", app.Health)

	r.Route("/v1/jobs", func(r chi.Router) {
		r.With(mw.RateLimit(app.Config.RateLimitPerMin, time.Minute)).Post("/", app.StartJob)
		r.Get("/", app.ListJobs)
		r.Get("/{job_id}", app.JobStatus)
		r.Post("/{job_id}/cancel", app.CancelJob)
		r.Get("/{job_id}/events", app.JobEvents)
		r.Get("/{job_id}/ws", app.JobSocket)
	})

	r.Route("/v1/suites", func(r chi.Router) {
		r.Get("/", app.ListSuites)
		r.Get("/{suite_id}", app.GetSuite)
	})
	r.Get("/v1/styles", app.ListStyles)

	r.Route("/v1/results", func(r chi.Router) {
		r.Get("/{result_id}", app.GetResultBundle)
		r.Get("/{result_id}/images/{item_id}", app.GetResultImage)
		r.Get("/{result_id}/download", app.DownloadResultZip)
	})

	return r
}
