// Package middleware provides the HTTP middleware chain wrapped around
// every route: security headers, CORS, request IDs, and access logging,
// generalizing the teacher's SecurityHeaders/Chain pattern to the chi
// router used here.
package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Middleware wraps an http.HandlerFunc with additional behavior.
type Middleware func(http.HandlerFunc) http.HandlerFunc

// Chain composes middlewares so the first one listed runs outermost.
func Chain(mws ...Middleware) Middleware {
	return func(final http.HandlerFunc) http.HandlerFunc {
		h := final
		for i := len(mws) - 1; i >= 0; i-- {
			h = mws[i](h)
		}
		return h
	}
}

// SecurityHeaders sets the OWASP-recommended response headers.
func SecurityHeaders() Middleware {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Set("Content-Security-Policy", "default-src 'none'")
			h.Set("Cache-Control", "no-store")
			next(w, r)
		}
	}
}

// APIVersion sets the advisory X-API-Version header (spec §6). Versioning
// itself is out of scope; this header is informational only.
func APIVersion(version string) Middleware {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-API-Version", version)
			next(w, r)
		}
	}
}

// CORS allows cross-origin requests from any origin, reflecting the
// request's own Origin header. There is no authentication surface here
// (spec explicit Non-goal), so a permissive policy carries no session risk.
func CORS() Middleware {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				origin = "*"
			}
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-API-Version")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next(w, r)
		}
	}
}

type requestIDKey struct{}

// RequestID assigns a unique id to every request, echoed in the response
// header and retrievable downstream via RequestIDFromContext.
func RequestID() Middleware {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			id := uuid.New().String()
			w.Header().Set("X-Request-ID", id)
			ctx := context.WithValue(r.Context(), requestIDKey{}, id)
			next(w, r.WithContext(ctx))
		}
	}
}

// RequestIDFromContext returns the id RequestID assigned to this request,
// or "" if the middleware was not applied.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// Logging logs method, path, status, and latency for every request.
func Logging(logf func(format string, args ...interface{})) Middleware {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next(sw, r)
			logf("%s %s %d %s", r.Method, r.URL.Path, sw.status, time.Since(start))
		}
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
