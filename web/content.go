package web

import (
	"context"
	"net/http"
	"sync/atomic"

	"github.com/go-chi/chi/v5"

	"github.com/stencilcms/stencil/app"
	"github.com/stencilcms/stencil/domain/access"
	"github.com/stencilcms/stencil/domain/document"
	"github.com/stencilcms/stencil/domain/schema"
	"github.com/stencilcms/stencil/pkg/jsonapi"
	"github.com/stencilcms/stencil/ports"
)

// contentRouter serves the dynamic content API. The route table is
// derived from the schema catalog and swapped atomically on rebuild, so
// in-flight requests keep the router they started with.
type contentRouter struct {
	h       *Handler
	current atomic.Pointer[chi.Mux]
}

func newContentRouter(h *Handler) *contentRouter {
	return &contentRouter{h: h}
}

func (c *contentRouter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	router := c.current.Load()
	if router == nil {
		jsonapi.WriteError(w, jsonapi.ErrInternal("Content API unavailable"))
		return
	}
	router.ServeHTTP(w, r)
}

// Rebuild lists every schema and constructs a fresh route table. On
// error the previous table stays in service.
func (c *contentRouter) Rebuild(ctx context.Context) error {
	var all []schema.Schema
	for page := 1; ; page++ {
		schemas, pg, err := c.h.schemas.List(ctx, page, 100)
		if err != nil {
			if c.h.metrics != nil {
				c.h.metrics.ContentReloadErrors.Inc()
			}
			return err
		}
		all = append(all, schemas...)
		if !pg.HasNextPage() {
			break
		}
	}

	router := chi.NewRouter()
	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		jsonapi.WriteNotFound(w, "schema")
	})
	for _, sc := range all {
		c.mount(router, sc)
	}
	c.current.Store(router)

	if c.h.metrics != nil {
		c.h.metrics.ContentReloads.Inc()
		c.h.metrics.ContentSchemasActive.Set(float64(len(all)))
	}
	c.h.logger.Info().Int("schemas", len(all)).Msg("content router rebuilt")
	return nil
}

// mount registers the routes for one schema. The schema ID is fixed
// here, so guards receive it as a literal argument rather than peeking
// at the request.
func (c *contentRouter) mount(router chi.Router, sc schema.Schema) {
	h := c.h
	args := access.Args{"schemaId": sc.ID}

	router.Route("/"+sc.Name, func(r chi.Router) {
		r.Get("/", h.requireScopeValue("internal:document:read", args, c.list(sc)))
		r.Post("/", h.requireScopeValue("internal:document:create", args, c.create(sc)))

		r.Route("/{documentId}", func(r chi.Router) {
			r.Get("/", h.requireScopeValue("internal:document:read", args, c.get(sc)))
			r.Patch("/", h.requireScopeValue("internal:document:update", args, c.update(sc)))
			r.Delete("/", h.requireScopeValue("internal:document:delete", args, c.remove(sc)))
		})
	})
}

func (c *contentRouter) list(sc schema.Schema) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, perPage := c.h.pageParams(r)

		filters, err := parseFilters(r.URL.Query())
		if err != nil {
			jsonapi.WriteBadRequest(w, err.Error())
			return
		}

		docs, pg, err := c.h.documents.Find(r.Context(), ports.DocumentQuery{
			SchemaID: sc.ID,
			Filters:  filters,
			Page:     page,
			PerPage:  perPage,
		})
		if err != nil {
			c.h.respondError(w, r, err)
			return
		}

		resources := make([]jsonapi.Resource, 0, len(docs))
		for _, d := range docs {
			resources = append(resources, documentResource(d))
		}
		jsonapi.WriteCollection(w, http.StatusOK, resources, pageOf(pg, "/content/"+sc.Name))
	}
}

func (c *contentRouter) create(sc schema.Schema) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var data document.Data
		if !decodeBody(w, r, &data) {
			return
		}

		p, _ := principalFrom(r.Context())
		d, err := c.h.documents.Create(r.Context(), p.UserID, sc.ID, data)
		if err != nil {
			c.h.respondError(w, r, err)
			return
		}
		jsonapi.WriteCreated(w, documentResource(d), "/content/"+sc.Name+"/"+d.ID)
	}
}

func (c *contentRouter) get(sc schema.Schema) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, err := c.h.documents.Get(r.Context(), chi.URLParam(r, "documentId"))
		if err != nil {
			c.h.respondError(w, r, err)
			return
		}
		if d.SchemaID != sc.ID {
			jsonapi.WriteError(w, jsonapi.ErrDocumentSchemaMismatch(d.ID))
			return
		}
		jsonapi.WriteResource(w, http.StatusOK, documentResource(d))
	}
}

func (c *contentRouter) update(sc schema.Schema) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var data document.Data
		if !decodeBody(w, r, &data) {
			return
		}

		id := chi.URLParam(r, "documentId")
		existing, err := c.h.documents.Get(r.Context(), id)
		if err != nil {
			c.h.respondError(w, r, err)
			return
		}
		if existing.SchemaID != sc.ID {
			jsonapi.WriteError(w, jsonapi.ErrDocumentSchemaMismatch(existing.ID))
			return
		}

		p, _ := principalFrom(r.Context())
		d, err := c.h.documents.Update(r.Context(), p.UserID, id, data, app.UpdateOptions{})
		if err != nil {
			c.h.respondError(w, r, err)
			return
		}
		jsonapi.WriteResource(w, http.StatusOK, documentResource(d))
	}
}

func (c *contentRouter) remove(sc schema.Schema) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "documentId")
		existing, err := c.h.documents.Get(r.Context(), id)
		if err != nil {
			c.h.respondError(w, r, err)
			return
		}
		if existing.SchemaID != sc.ID {
			jsonapi.WriteError(w, jsonapi.ErrDocumentSchemaMismatch(existing.ID))
			return
		}

		p, _ := principalFrom(r.Context())
		removed, err := c.h.documents.Remove(r.Context(), p.UserID, id)
		if err != nil {
			c.h.respondError(w, r, err)
			return
		}
		if !removed {
			jsonapi.WriteNotFound(w, "document")
			return
		}
		jsonapi.WriteNoContent(w)
	}
}
