package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/arond1/jotter/internal/notebookservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *notebookservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Route("/notebooks", func(r chi.Router) {
		r.Get("/", h.ListNotebooks)
		r.Post("/", h.CreateNotebook)

		r.Route("/{name}", func(r chi.Router) {
			r.Get("/", h.GetNotebook)
			r.Get("/verify", h.Verify)

			r.Post("/notes", h.CreateNote)
			r.Get("/notes/*", h.GetNote)
			r.Put("/notes/*", h.UpdateNote)
			r.Patch("/notes/*", h.RenameNote)
			r.Delete("/notes/*", h.DeleteNote)

			r.Post("/dirs", h.CreateDirectory)
			r.Delete("/dirs/*", h.DeleteDirectory)
		})
	})

	r.Get("/search", h.Search)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
