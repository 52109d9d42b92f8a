package handler

import (
	"context"
	"net/http"

	"vectordb/internal/apperr"
	"vectordb/internal/embedding"
	"vectordb/internal/index"
	"vectordb/internal/model"

	"github.com/go-chi/chi/v5"
)

type createLibraryRequest struct {
	Name     string         `json:"name"`
	Metadata model.Metadata `json:"metadata"`
}

type patchLibraryRequest struct {
	Name     *string        `json:"name"`
	Metadata model.Metadata `json:"metadata"`
}

// CreateLibrary handles POST /api/libraries.
func (a *App) CreateLibrary(w http.ResponseWriter, r *http.Request) {
	var req createLibraryRequest
	if err := ReadJSONBody(r, &req); err != nil {
		WriteAppError(w, err)
		return
	}
	if req.Name == "" {
		WriteAppError(w, apperr.New(apperr.Validation, "name is required"))
		return
	}
	lib := a.Store.CreateLibrary(req.Name, req.Metadata)
	a.saveLibraryAsync(lib.ID)
	WriteJSON(w, http.StatusCreated, lib)
}

// ListLibraries handles GET /api/libraries.
func (a *App) ListLibraries(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, a.Store.ListLibraries())
}

// GetLibrary handles GET /api/libraries/{id}.
func (a *App) GetLibrary(w http.ResponseWriter, r *http.Request) {
	id, err := ParseUUIDParam(chi.URLParam(r, "id"))
	if err != nil {
		WriteAppError(w, err)
		return
	}
	lib, err := a.Store.GetLibrary(id)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, lib)
}

// PatchLibrary handles PATCH /api/libraries/{id}.
func (a *App) PatchLibrary(w http.ResponseWriter, r *http.Request) {
	id, err := ParseUUIDParam(chi.URLParam(r, "id"))
	if err != nil {
		WriteAppError(w, err)
		return
	}
	var req patchLibraryRequest
	if err := ReadJSONBody(r, &req); err != nil {
		WriteAppError(w, err)
		return
	}
	lib, err := a.Store.PatchLibrary(id, req.Name, req.Metadata)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	a.saveLibraryAsync(id)
	WriteJSON(w, http.StatusOK, lib)
}

// DeleteLibrary handles DELETE /api/libraries/{id}.
func (a *App) DeleteLibrary(w http.ResponseWriter, r *http.Request) {
	id, err := ParseUUIDParam(chi.URLParam(r, "id"))
	if err != nil {
		WriteAppError(w, err)
		return
	}
	if err := a.Store.DeleteLibrary(id); err != nil {
		WriteAppError(w, err)
		return
	}
	a.Sink.Delete(id)
	w.WriteHeader(http.StatusNoContent)
}

type startIndexRequest struct {
	IndexerType string `json:"indexer_type"`
	LeafSize    int    `json:"leaf_size"`
}

// StartIndex handles POST /api/libraries/{id}/index.
func (a *App) StartIndex(w http.ResponseWriter, r *http.Request) {
	id, err := ParseUUIDParam(chi.URLParam(r, "id"))
	if err != nil {
		WriteAppError(w, err)
		return
	}
	var req startIndexRequest
	if err := ReadJSONBody(r, &req); err != nil {
		WriteAppError(w, err)
		return
	}
	kind := model.IndexKindExhaustive
	if req.IndexerType != "" {
		kind, err = index.ParseKind(req.IndexerType)
		if err != nil {
			WriteAppError(w, err)
			return
		}
	}
	leafSize := req.LeafSize
	if leafSize <= 0 {
		leafSize = a.Config.DefaultLeafSize
	}

	// The legality check (library exists, not already building) runs
	// synchronously so the response reflects the real outcome (spec §6:
	// 409 AlreadyIndexing). The build itself runs off the request path on a
	// context rooted in context.Background(), not r.Context() — the request
	// context is cancelled the moment this handler returns, which would
	// otherwise abort every real build's embedding calls immediately.
	err = a.Lifecycle.StartIndexAsync(context.Background(), id, kind, leafSize, func(err error) {
		if err != nil {
			a.saveLibraryAsync(id)
		}
	})
	if err != nil {
		WriteAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusAccepted, a.Lifecycle.Status(id))
}

// IndexStatus handles GET /api/libraries/{id}/index/status.
func (a *App) IndexStatus(w http.ResponseWriter, r *http.Request) {
	id, err := ParseUUIDParam(chi.URLParam(r, "id"))
	if err != nil {
		WriteAppError(w, err)
		return
	}
	if _, err := a.Store.GetLibrary(id); err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, a.Lifecycle.Status(id))
}

type searchRequest struct {
	QueryText string `json:"query_text"`
	TopK      int    `json:"top_k"`
}

type searchResult struct {
	ChunkID    string         `json:"chunk_id"`
	DocumentID string         `json:"document_id"`
	Score      float32        `json:"score"`
	Text       string         `json:"text"`
	Metadata   model.Metadata `json:"metadata,omitempty"`
}

// Search handles POST /api/libraries/{id}/search.
func (a *App) Search(w http.ResponseWriter, r *http.Request) {
	id, err := ParseUUIDParam(chi.URLParam(r, "id"))
	if err != nil {
		WriteAppError(w, err)
		return
	}
	var req searchRequest
	if err := ReadJSONBody(r, &req); err != nil {
		WriteAppError(w, err)
		return
	}
	if req.QueryText == "" {
		WriteAppError(w, apperr.New(apperr.Validation, "query_text is required"))
		return
	}
	topK := req.TopK
	if topK <= 0 {
		topK = 5
	}

	idx, err := a.Lifecycle.Indexer(id)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	count, err := a.Store.LibraryChunkCount(id)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	if idx.Stats().VectorCount != count {
		WriteAppError(w, apperr.New(apperr.NotIndexed, "library %s index is out of sync with its current chunk count", id))
		return
	}

	vecs, err := a.Embedder.EmbedBatch(r.Context(), []string{req.QueryText}, embedding.RoleQuery)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	hits, err := idx.Search(vecs[0], topK)
	if err != nil {
		WriteAppError(w, err)
		return
	}

	out := make([]searchResult, 0, len(hits))
	for _, hit := range hits {
		chunk, err := a.Store.GetChunk(hit.ID)
		if err != nil {
			continue // chunk was deleted after indexing but before this search returned
		}
		out = append(out, searchResult{
			ChunkID:    chunk.ID.String(),
			DocumentID: chunk.DocumentID.String(),
			Score:      hit.Score,
			Text:       chunk.Text,
			Metadata:   chunk.Metadata,
		})
	}
	WriteJSON(w, http.StatusOK, out)
}
