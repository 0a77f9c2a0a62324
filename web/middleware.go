package web

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/stencilcms/stencil/adapters/metrics"
	"github.com/stencilcms/stencil/domain/access"
	"github.com/stencilcms/stencil/domain/user"
	"github.com/stencilcms/stencil/pkg/jsonapi"
)

// authenticate resolves a principal from a Bearer session token or an
// API key header. Scopes are resolved fresh on every request so role
// and scope changes take effect immediately.
func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := h.resolveUser(w, r)
		if !ok {
			return
		}

		scopes, err := h.users.EffectiveScopes(r.Context(), u)
		if err != nil {
			h.respondError(w, r, err)
			return
		}

		p := access.Principal{UserID: u.ID, Email: u.Email, Scopes: scopes}
		next.ServeHTTP(w, r.WithContext(withPrincipal(r.Context(), p)))
	})
}

func (h *Handler) resolveUser(w http.ResponseWriter, r *http.Request) (user.User, bool) {
	if auth := r.Header.Get("Authorization"); auth != "" {
		token, found := strings.CutPrefix(auth, "Bearer ")
		if !found {
			h.authFailure(w, "malformed_header")
			return user.User{}, false
		}
		u, err := h.users.VerifyToken(r.Context(), token)
		if err != nil {
			h.authFailure(w, "invalid_token")
			return user.User{}, false
		}
		return u, true
	}

	if key := r.Header.Get(h.apiKeyHeader); key != "" {
		u, err := h.users.AuthenticateAPIKey(r.Context(), key)
		if err != nil {
			h.authFailure(w, "invalid_api_key")
			return user.User{}, false
		}
		return u, true
	}

	h.authFailure(w, "missing_credentials")
	return user.User{}, false
}

func (h *Handler) authFailure(w http.ResponseWriter, reason string) {
	if h.metrics != nil {
		h.metrics.AuthFailures.WithLabelValues(reason).Inc()
	}
	jsonapi.WriteUnauthorized(w, "Authentication required")
}

// requireScope authorizes the request against a scope. Peeked arguments
// named in opts are read from the matched URL parameters and the query
// string, so a narrowed scope like "internal:document:read:<schemaId>"
// grants access to that schema only.
func (h *Handler) requireScope(scope string, opts access.Options) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := principalFrom(r.Context())
			if !ok {
				jsonapi.WriteUnauthorized(w, "Authentication required")
				return
			}

			args := make(access.Args, len(opts.FieldsOrArgsToPeek))
			for _, name := range opts.FieldsOrArgsToPeek {
				if v := chi.URLParam(r, name); v != "" {
					args[name] = v
				} else if v := r.URL.Query().Get(name); v != "" {
					args[name] = v
				}
			}

			if !access.Authorized(p, scope, opts, args) {
				jsonapi.WriteError(w, jsonapi.ErrInsufficientScope(scope))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// requireScopeValue is the content-router variant: the schema is fixed
// at route build time, so the peeked argument value is supplied
// directly instead of being read from the request.
func (h *Handler) requireScopeValue(scope string, args access.Args, next http.HandlerFunc) http.HandlerFunc {
	opts := access.Options{DeriveAlternativeScopes: true, FieldsOrArgsToPeek: argNames(args)}
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := principalFrom(r.Context())
		if !ok {
			jsonapi.WriteUnauthorized(w, "Authentication required")
			return
		}
		if !access.Authorized(p, scope, opts, args) {
			jsonapi.WriteError(w, jsonapi.ErrInsufficientScope(scope))
			return
		}
		next(w, r)
	}
}

func argNames(args access.Args) []string {
	names := make([]string, 0, len(args))
	for name := range args {
		names = append(names, name)
	}
	return names
}

func (h *Handler) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		h.metrics.RequestsInFlight.Inc()
		defer h.metrics.RequestsInFlight.Dec()

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		status := strconv.Itoa(sw.status)
		path := metrics.NormalizePath(routePattern(r))
		h.metrics.RequestsTotal.WithLabelValues(r.Method, path, status).Inc()
		h.metrics.RequestDuration.WithLabelValues(r.Method, path, status).
			Observe(time.Since(start).Seconds())
	})
}

// routePattern returns the chi route pattern when available, keeping
// document IDs out of the metric labels.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
