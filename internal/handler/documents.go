package handler

import (
	"net/http"

	"vectordb/internal/apperr"
	"vectordb/internal/model"

	"github.com/go-chi/chi/v5"
)

type createDocumentRequest struct {
	Name     string         `json:"name"`
	Metadata model.Metadata `json:"metadata"`
}

type patchDocumentRequest struct {
	Name     *string        `json:"name"`
	Metadata model.Metadata `json:"metadata"`
}

// CreateDocument handles POST /api/libraries/{id}/documents.
func (a *App) CreateDocument(w http.ResponseWriter, r *http.Request) {
	libraryID, err := ParseUUIDParam(chi.URLParam(r, "id"))
	if err != nil {
		WriteAppError(w, err)
		return
	}
	var req createDocumentRequest
	if err := ReadJSONBody(r, &req); err != nil {
		WriteAppError(w, err)
		return
	}
	if req.Name == "" {
		WriteAppError(w, apperr.New(apperr.Validation, "name is required"))
		return
	}
	doc, err := a.Store.CreateDocument(libraryID, req.Name, req.Metadata)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	a.saveLibraryAsync(libraryID)
	WriteJSON(w, http.StatusCreated, doc)
}

// ListDocuments handles GET /api/libraries/{id}/documents.
func (a *App) ListDocuments(w http.ResponseWriter, r *http.Request) {
	libraryID, err := ParseUUIDParam(chi.URLParam(r, "id"))
	if err != nil {
		WriteAppError(w, err)
		return
	}
	docs, err := a.Store.ListDocuments(libraryID)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, docs)
}

// GetDocument handles GET /api/documents/{id}.
func (a *App) GetDocument(w http.ResponseWriter, r *http.Request) {
	id, err := ParseUUIDParam(chi.URLParam(r, "id"))
	if err != nil {
		WriteAppError(w, err)
		return
	}
	doc, err := a.Store.GetDocument(id)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, doc)
}

// PatchDocument handles PATCH /api/documents/{id}.
func (a *App) PatchDocument(w http.ResponseWriter, r *http.Request) {
	id, err := ParseUUIDParam(chi.URLParam(r, "id"))
	if err != nil {
		WriteAppError(w, err)
		return
	}
	var req patchDocumentRequest
	if err := ReadJSONBody(r, &req); err != nil {
		WriteAppError(w, err)
		return
	}
	doc, err := a.Store.PatchDocument(id, req.Name, req.Metadata)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	a.saveLibraryAsync(doc.LibraryID)
	WriteJSON(w, http.StatusOK, doc)
}

// DeleteDocument handles DELETE /api/documents/{id}.
func (a *App) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	id, err := ParseUUIDParam(chi.URLParam(r, "id"))
	if err != nil {
		WriteAppError(w, err)
		return
	}
	doc, err := a.Store.GetDocument(id)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	if err := a.Store.DeleteDocument(id); err != nil {
		WriteAppError(w, err)
		return
	}
	a.saveLibraryAsync(doc.LibraryID)
	w.WriteHeader(http.StatusNoContent)
}
