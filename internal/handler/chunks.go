package handler

import (
	"net/http"

	"vectordb/internal/apperr"
	"vectordb/internal/model"
	"vectordb/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type createChunkRequest struct {
	Text     string         `json:"text"`
	Metadata model.Metadata `json:"metadata"`
}

type patchChunkRequest struct {
	Text     *string        `json:"text"`
	Metadata model.Metadata `json:"metadata"`
}

// CreateChunk handles POST /api/documents/{id}/chunks.
func (a *App) CreateChunk(w http.ResponseWriter, r *http.Request) {
	documentID, err := ParseUUIDParam(chi.URLParam(r, "id"))
	if err != nil {
		WriteAppError(w, err)
		return
	}
	var req createChunkRequest
	if err := ReadJSONBody(r, &req); err != nil {
		WriteAppError(w, err)
		return
	}
	if req.Text == "" {
		WriteAppError(w, apperr.New(apperr.Validation, "text is required"))
		return
	}
	chunk, err := a.Store.CreateChunk(documentID, req.Text, req.Metadata)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	if doc, err := a.Store.GetDocument(documentID); err == nil {
		a.saveLibraryAsync(doc.LibraryID)
	}
	WriteJSON(w, http.StatusCreated, chunk)
}

// GetChunk handles GET /api/chunks/{id}.
func (a *App) GetChunk(w http.ResponseWriter, r *http.Request) {
	id, err := ParseUUIDParam(chi.URLParam(r, "id"))
	if err != nil {
		WriteAppError(w, err)
		return
	}
	chunk, err := a.Store.GetChunk(id)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, chunk)
}

// PatchChunk handles PATCH /api/chunks/{id}.
func (a *App) PatchChunk(w http.ResponseWriter, r *http.Request) {
	id, err := ParseUUIDParam(chi.URLParam(r, "id"))
	if err != nil {
		WriteAppError(w, err)
		return
	}
	var req patchChunkRequest
	if err := ReadJSONBody(r, &req); err != nil {
		WriteAppError(w, err)
		return
	}
	chunk, err := a.Store.PatchChunk(id, req.Text, req.Metadata)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	if doc, err := a.Store.GetDocument(chunk.DocumentID); err == nil {
		a.saveLibraryAsync(doc.LibraryID)
	}
	WriteJSON(w, http.StatusOK, chunk)
}

// DeleteChunk handles DELETE /api/chunks/{id}.
func (a *App) DeleteChunk(w http.ResponseWriter, r *http.Request) {
	id, err := ParseUUIDParam(chi.URLParam(r, "id"))
	if err != nil {
		WriteAppError(w, err)
		return
	}
	chunk, err := a.Store.GetChunk(id)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	doc, docErr := a.Store.GetDocument(chunk.DocumentID)
	if err := a.Store.DeleteChunk(id); err != nil {
		WriteAppError(w, err)
		return
	}
	if docErr == nil {
		a.saveLibraryAsync(doc.LibraryID)
	}
	w.WriteHeader(http.StatusNoContent)
}

type batchChunkItem struct {
	DocumentID uuid.UUID      `json:"document_id"`
	Text       string         `json:"text"`
	Metadata   model.Metadata `json:"metadata"`
}

type createChunksBatchRequest struct {
	Chunks []batchChunkItem `json:"chunks"`
}

// CreateChunksBatch handles POST /api/chunks/batch.
func (a *App) CreateChunksBatch(w http.ResponseWriter, r *http.Request) {
	var req createChunksBatchRequest
	if err := ReadJSONBody(r, &req); err != nil {
		WriteAppError(w, err)
		return
	}
	if len(req.Chunks) == 0 {
		WriteAppError(w, apperr.New(apperr.Validation, "chunks must be non-empty"))
		return
	}

	items := make([]store.ChunkInput, len(req.Chunks))
	affectedDocs := make(map[uuid.UUID]bool, len(req.Chunks))
	for i, c := range req.Chunks {
		if c.Text == "" {
			WriteAppError(w, apperr.New(apperr.Validation, "chunk %d: text is required", i))
			return
		}
		items[i] = store.ChunkInput{DocumentID: c.DocumentID, Text: c.Text, Metadata: c.Metadata}
		affectedDocs[c.DocumentID] = true
	}

	chunks, err := a.Store.CreateChunksBatch(items)
	if err != nil {
		WriteAppError(w, err)
		return
	}

	affectedLibs := make(map[uuid.UUID]bool, len(affectedDocs))
	for docID := range affectedDocs {
		if doc, err := a.Store.GetDocument(docID); err == nil {
			affectedLibs[doc.LibraryID] = true
		}
	}
	for libID := range affectedLibs {
		a.saveLibraryAsync(libID)
	}

	WriteJSON(w, http.StatusCreated, chunks)
}
