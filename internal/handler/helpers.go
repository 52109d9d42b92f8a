package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"vectordb/internal/apperr"

	"github.com/google/uuid"
)

// WriteJSON encodes data as JSON and writes it to the response with the
// given status code.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// errorBody is the REST error shape of spec §6: {error: <kind>, message: <human>}.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WriteError writes a plain-message JSON error response.
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, errorBody{Error: string(apperr.Internal), Message: message})
}

// WriteAppError maps err to its HTTP status and apperr.Kind (spec §6/§7)
// and writes the standard error body.
func WriteAppError(w http.ResponseWriter, err error) {
	WriteJSON(w, apperr.HTTPStatus(err), errorBody{
		Error:   string(apperr.KindOf(err)),
		Message: err.Error(),
	})
}

// ReadJSONBody decodes the request body as JSON into v, limiting body size
// to 1MB and rejecting trailing data.
func ReadJSONBody(r *http.Request, v interface{}) error {
	ct := r.Header.Get("Content-Type")
	if ct != "" && !strings.HasPrefix(ct, "application/json") {
		return apperr.New(apperr.Validation, "expected Content-Type application/json")
	}
	defer r.Body.Close()
	limited := io.LimitReader(r.Body, 1<<20)
	decoder := json.NewDecoder(limited)
	if err := decoder.Decode(v); err != nil {
		return apperr.Wrap(apperr.Validation, err, "invalid request body: %v", err)
	}
	if decoder.More() {
		return apperr.New(apperr.Validation, "unexpected trailing data in request body")
	}
	return nil
}

// ParseUUIDParam parses a path parameter as a uuid.UUID, returning a
// Validation error on failure.
func ParseUUIDParam(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperr.New(apperr.Validation, "invalid id %q: %v", raw, err)
	}
	return id, nil
}
