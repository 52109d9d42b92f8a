// Package router registers the REST surface of spec §6 onto a chi.Mux,
// grouping routes by entity the way the teacher's router.Register groups
// them by business domain, with the same middleware-chain wrapping idiom.
package router

import (
	"log"
	"net/http"

	"vectordb/internal/handler"
	"vectordb/internal/middleware"

	"github.com/go-chi/chi/v5"
)

// New builds the full chi.Mux for app: security headers, CORS, request IDs,
// and access logging wrap every route, mirroring the teacher's secureAPI
// chain (askflow/internal/router).
func New(app *handler.App) *chi.Mux {
	r := chi.NewRouter()

	secure := middleware.Chain(
		middleware.SecurityHeaders(),
		middleware.APIVersion("1.0"),
		middleware.CORS(),
		middleware.RequestID(),
		middleware.Logging(log.Printf),
	)
	use := func(h http.HandlerFunc) http.HandlerFunc { return secure(h) }

	r.Get("/health", use(healthHandler))

	r.Route("/api/libraries", func(r chi.Router) {
		r.Post("/", use(app.CreateLibrary))
		r.Get("/", use(app.ListLibraries))
		r.Get("/{id}", use(app.GetLibrary))
		r.Patch("/{id}", use(app.PatchLibrary))
		r.Delete("/{id}", use(app.DeleteLibrary))
		r.Post("/{id}/index", use(app.StartIndex))
		r.Get("/{id}/index/status", use(app.IndexStatus))
		r.Post("/{id}/search", use(app.Search))
		r.Post("/{id}/documents", use(app.CreateDocument))
		r.Get("/{id}/documents", use(app.ListDocuments))
	})

	r.Route("/api/documents", func(r chi.Router) {
		r.Get("/{id}", use(app.GetDocument))
		r.Patch("/{id}", use(app.PatchDocument))
		r.Delete("/{id}", use(app.DeleteDocument))
		r.Post("/{id}/chunks", use(app.CreateChunk))
	})

	r.Route("/api/chunks", func(r chi.Router) {
		r.Post("/batch", use(app.CreateChunksBatch))
		r.Get("/{id}", use(app.GetChunk))
		r.Patch("/{id}", use(app.PatchChunk))
		r.Delete("/{id}", use(app.DeleteChunk))
	})

	return r
}

// healthHandler handles GET /health (spec §6).
func healthHandler(w http.ResponseWriter, r *http.Request) {
	handler.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
