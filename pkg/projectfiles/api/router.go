package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/tendant/project-files/pkg/projectfiles"
)

// Options configures the API router
type Options struct {
	Service       *projectfiles.Service
	Authenticator Authenticator
	Logger        *slog.Logger
	Development   bool
}

// Routes returns the /api/v1 router. Every route requires an identity.
func Routes(opts Options) chi.Router {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	auth := opts.Authenticator
	if auth == nil {
		auth = NewHeaderAuthenticator("")
	}
	rs := Responder{Development: opts.Development, Logger: logger}

	projects := NewProjectsHandler(opts.Service, rs)
	files := NewFilesHandler(opts.Service, rs)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(logger))
	r.Use(Metrics)
	r.Use(middleware.Recoverer)
	r.Use(RequireIdentity(auth, rs))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		rs.Fail(w, r, CodeNotFound, "Route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		rs.Fail(w, r, CodeNotFound, "Route not found", nil)
	})

	projectRoutes := projects.Routes()
	projectRoutes.Mount("/{projectID}/files", files.Routes())
	r.Mount("/projects", projectRoutes)
	return r
}
