package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"imagejobs/internal/http/handlers"
	"imagejobs/internal/infra"
	"imagejobs/internal/middleware"
)

// Options configures the router beyond the handler set.
type Options struct {
	Logger              infra.Logger
	JWTSecret           string
	CORSAllowedOrigins  []string
	SubmitRatePerMinute int
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
	// StaticDir is served under /static when set (filesystem artifact store).
	StaticDir string
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(opts.Logger),
		middleware.CORS(opts.CORSAllowedOrigins),
	)

	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/openapi.json", app.OpenAPIJSON)
	r.Get("/v1/docs", app.OpenAPIDocs)

	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}
	if opts.StaticDir != "" {
		r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(opts.StaticDir))))
	}

	r.Route("/v1/images", func(r chi.Router) {
		r.Use(middleware.AuthJWT(opts.JWTSecret))
		r.Get("/", app.ImagesList)
		r.Get("/stats", app.StatsSummary)
		r.Get("/{id}", app.ImagesGet)
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(opts.SubmitRatePerMinute, time.Minute))
			r.Post("/generate", app.ImagesGenerate)
			r.Post("/edit", app.ImagesEdit)
		})
	})

	return r
}
