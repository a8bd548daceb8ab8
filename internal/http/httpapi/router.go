package httpapi

import (
	stdhttp "net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"server/internal/http/handlers"
	"server/internal/middleware"
)

// RouterOptions carries the cross-cutting pieces the router wires in front
// of the handlers.
type RouterOptions struct {
	CORSOrigins   []string
	CountryLookup middleware.CountryLookup
}

// NewRouter assembles the service's HTTP surface: the trigger endpoint and a
// liveness probe.
func NewRouter(app *handlers.App, opts RouterOptions) stdhttp.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.AccessLog(app.Logger, opts.CountryLookup))
	if len(opts.CORSOrigins) > 0 {
		r.Use(middleware.CORS(opts.CORSOrigins))
	}

	r.Get("/health", app.Health)
	r.Post("/api/generate-video", app.GenerateVideo)

	return r
}
