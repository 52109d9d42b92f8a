// Package handler implements the REST facade (spec §6): thin adapters that
// decode requests, call into the store/lifecycle/embedding components, and
// translate apperr.Kind into HTTP responses. It generalizes the teacher's
// App-facade pattern (one struct binding every backend dependency, injected
// into each handler) to this system's components.
package handler

import (
	"vectordb/internal/config"
	"vectordb/internal/embedding"
	"vectordb/internal/lifecycle"
	"vectordb/internal/persistence"
	"vectordb/internal/store"

	"github.com/google/uuid"
)

// App is the facade binding every backend dependency a handler might need.
type App struct {
	Store     *store.Store
	Lifecycle *lifecycle.Manager
	Embedder  embedding.Client
	Sink      *persistence.Sink
	Config    config.Config
}

// NewApp creates an App with all dependencies injected.
func NewApp(st *store.Store, lm *lifecycle.Manager, embedder embedding.Client, sink *persistence.Sink, cfg config.Config) *App {
	return &App{
		Store:     st,
		Lifecycle: lm,
		Embedder:  embedder,
		Sink:      sink,
		Config:    cfg,
	}
}

// saveLibraryAsync persists the library's current state best-effort,
// without blocking the HTTP response on disk I/O (spec §5 suspension
// points, §7 "logged but not surfaced" policy).
func (a *App) saveLibraryAsync(libraryID uuid.UUID) {
	go a.Sink.Save(a.Store, libraryID)
}
