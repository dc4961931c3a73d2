package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/Two-Jay/email-auto-sender/internal/store"
	"github.com/Two-Jay/email-auto-sender/internal/upload"
)

// Deps are the collaborators the router wires into its handlers.
type Deps struct {
	Store       *store.Store
	Uploads     *upload.Service
	Sender      Sender
	CORSOrigins []string
}

// NewRouter builds the HTTP routing table: /health, the /api groups, and
// static serving of the upload directory under /uploads/.
func NewRouter(deps Deps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	origins := deps.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		NewEmailAPI(deps.Sender, deps.Uploads).RegisterRoutes(r)
		NewRecipientsAPI(deps.Store).RegisterRoutes(r)
		NewTemplatesAPI(deps.Store).RegisterRoutes(r)
		NewUploadsAPI(deps.Uploads, deps.Store).RegisterRoutes(r)
	})

	// Uploaded images must be reachable over HTTP so template authors can
	// reference them before they are inlined at send time.
	r.Get("/uploads/*", func(w http.ResponseWriter, req *http.Request) {
		// Path() reduces the name to its base, so traversal segments in the
		// URL cannot escape the upload directory.
		http.ServeFile(w, req, deps.Uploads.Path(chi.URLParam(req, "*")))
	})

	return r
}
