// Package web provides the HTTP surface: the static admin API under
// /api/v1 and the dynamic content API under /content, which is
// rebuilt whenever the schema catalog changes.
package web

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/stencilcms/stencil/adapters/metrics"
	"github.com/stencilcms/stencil/app"
	"github.com/stencilcms/stencil/core/events"
	"github.com/stencilcms/stencil/pkg/jsonapi"
)

// Handler provides the HTTP endpoints.
type Handler struct {
	schemas   *app.SchemaService
	fields    *app.FieldService
	documents *app.DocumentService
	users     *app.UserService
	webhooks  *app.WebhookService

	content *contentRouter

	apiKeyHeader   string
	defaultPerPage int
	maxPerPage     int
	metrics        *metrics.Collector
	metricsPath    string
	logger         zerolog.Logger
	startTime      time.Time
}

// Deps contains dependencies for the web handler.
type Deps struct {
	Schemas   *app.SchemaService
	Fields    *app.FieldService
	Documents *app.DocumentService
	Users     *app.UserService
	Webhooks  *app.WebhookService
	Bus       *events.Bus

	APIKeyHeader   string // header carrying an API key (default: X-API-Key)
	DefaultPerPage int    // page size when the request names none (default: 20)
	MaxPerPage     int    // upper bound on requested page sizes (default: 100)
	Metrics        *metrics.Collector
	MetricsPath    string
	Logger         zerolog.Logger
}

// NewHandler creates the handler and builds the initial content router.
// It subscribes to the reload event so schema and field mutations
// rebuild the content API before the next request is served.
func NewHandler(deps Deps) (*Handler, error) {
	h := &Handler{
		schemas:        deps.Schemas,
		fields:         deps.Fields,
		documents:      deps.Documents,
		users:          deps.Users,
		webhooks:       deps.Webhooks,
		apiKeyHeader:   deps.APIKeyHeader,
		defaultPerPage: deps.DefaultPerPage,
		maxPerPage:     deps.MaxPerPage,
		metrics:        deps.Metrics,
		metricsPath:    deps.MetricsPath,
		logger:         deps.Logger,
		startTime:      time.Now(),
	}
	if h.apiKeyHeader == "" {
		h.apiKeyHeader = "X-API-Key"
	}
	if h.defaultPerPage <= 0 {
		h.defaultPerPage = 20
	}
	if h.maxPerPage <= 0 {
		h.maxPerPage = 100
	}
	if h.metricsPath == "" {
		h.metricsPath = "/metrics"
	}

	h.content = newContentRouter(h)
	if err := h.content.Rebuild(context.Background()); err != nil {
		return nil, err
	}

	if deps.Bus != nil {
		deps.Bus.Subscribe(events.Reload, func(ctx context.Context, _ events.Event) error {
			return h.content.Rebuild(ctx)
		})
	}

	return h, nil
}

// Router returns the full HTTP router.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()

	if h.metrics != nil {
		r.Use(h.metricsMiddleware)
	}

	r.Get("/healthz", h.Health)
	if h.metrics != nil {
		r.Handle(h.metricsPath, h.metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/login", h.Login)

		r.Group(func(r chi.Router) {
			r.Use(h.authenticate)

			h.schemaRoutes(r)
			h.documentRoutes(r)
			h.userRoutes(r)
			h.webhookRoutes(r)
		})
	})

	r.Route("/content", func(r chi.Router) {
		r.Use(h.authenticate)
		r.Handle("/*", http.StripPrefix("/content", h.content))
	})

	return r
}

// Health reports liveness and uptime.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	jsonapi.WriteMeta(w, http.StatusOK, jsonapi.Meta{
		"status": "ok",
		"uptime": time.Since(h.startTime).Round(time.Second).String(),
	})
}
