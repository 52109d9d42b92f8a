// Package apperr defines the machine-readable error kinds surfaced at the API
// boundary (spec §7) as a typed error, generalizing the teacher's single
// ForbiddenError pattern (askflow/internal/handler) to the full error-kind set.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is a machine-readable error tag (spec §7).
type Kind string

const (
	NotFound             Kind = "NotFound"
	Validation           Kind = "Validation"
	DimMismatch          Kind = "DimMismatch"
	BadVector            Kind = "BadVector"
	NotIndexed           Kind = "NotIndexed"
	AlreadyIndexing      Kind = "AlreadyIndexing"
	Superseded           Kind = "Superseded"
	InvalidState         Kind = "InvalidState"
	EmbeddingUnavailable Kind = "EmbeddingUnavailable"
	EmbeddingAuth        Kind = "EmbeddingAuth"
	EmbeddingProtocol    Kind = "EmbeddingProtocol"
	Persistence          Kind = "Persistence"
	Internal             Kind = "Internal"
)

// statusByKind maps each Kind to the HTTP status it maps to (spec §6).
var statusByKind = map[Kind]int{
	NotFound:             http.StatusNotFound,
	Validation:           http.StatusBadRequest,
	DimMismatch:          http.StatusBadRequest,
	BadVector:            http.StatusBadRequest,
	NotIndexed:           http.StatusConflict,
	AlreadyIndexing:      http.StatusConflict,
	Superseded:           http.StatusConflict,
	InvalidState:         http.StatusConflict,
	EmbeddingUnavailable: http.StatusBadGateway,
	EmbeddingAuth:        http.StatusBadGateway,
	EmbeddingProtocol:    http.StatusBadGateway,
	Persistence:          http.StatusInternalServerError,
	Internal:             http.StatusInternalServerError,
}

// Error is the typed error value carried across component boundaries and
// type-switched on at the HTTP layer.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// New builds an Error with the given kind and formatted message.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error that preserves cause for errors.Is/As chains.
func Wrap(kind Kind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), cause: cause}
}

// KindOf extracts the Kind from err, defaulting to Internal for untyped
// errors so callers always get a sensible HTTP mapping.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// HTTPStatus maps err to the status code it should produce at the API
// boundary (spec §6/§7).
func HTTPStatus(err error) int {
	if status, ok := statusByKind[KindOf(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}
