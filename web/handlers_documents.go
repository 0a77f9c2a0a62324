package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/stencilcms/stencil/app"
	"github.com/stencilcms/stencil/domain/access"
	"github.com/stencilcms/stencil/domain/document"
	"github.com/stencilcms/stencil/domain/schema"
	"github.com/stencilcms/stencil/pkg/jsonapi"
	"github.com/stencilcms/stencil/ports"
)

func (h *Handler) documentRoutes(r chi.Router) {
	r.Route("/documents/{documentId}", func(r chi.Router) {
		r.With(h.requireScope("internal:document:read", access.Options{})).Get("/", h.DocumentGet)
		r.With(h.requireScope("internal:document:update", access.Options{})).Patch("/", h.DocumentUpdate)
		r.With(h.requireScope("internal:document:delete", access.Options{})).Delete("/", h.DocumentRemove)
		r.With(h.requireScope("internal:document:read", access.Options{})).Get("/revisions", h.DocumentRevisions)
	})

	r.With(h.requireScope("internal:document:read", peekSchema)).Get("/search", h.DocumentSearch)
}

func (h *Handler) DocumentList(w http.ResponseWriter, r *http.Request) {
	schemaID := chi.URLParam(r, "schemaId")
	page, perPage := h.pageParams(r)

	filters, err := parseFilters(r.URL.Query())
	if err != nil {
		jsonapi.WriteBadRequest(w, err.Error())
		return
	}

	docs, pg, err := h.documents.Find(r.Context(), ports.DocumentQuery{
		SchemaID: schemaID,
		Filters:  filters,
		Page:     page,
		PerPage:  perPage,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	resources := make([]jsonapi.Resource, 0, len(docs))
	for _, d := range docs {
		resources = append(resources, documentResource(d))
	}
	jsonapi.WriteCollection(w, http.StatusOK, resources,
		pageOf(pg, "/api/v1/schemas/"+schemaID+"/documents"))
}

func (h *Handler) DocumentCreate(w http.ResponseWriter, r *http.Request) {
	var data document.Data
	if !decodeBody(w, r, &data) {
		return
	}

	p, _ := principalFrom(r.Context())
	d, err := h.documents.Create(r.Context(), p.UserID, chi.URLParam(r, "schemaId"), data)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	jsonapi.WriteCreated(w, documentResource(d), "/api/v1/documents/"+d.ID)
}

func (h *Handler) DocumentGet(w http.ResponseWriter, r *http.Request) {
	d, err := h.documents.Get(r.Context(), chi.URLParam(r, "documentId"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	jsonapi.WriteResource(w, http.StatusOK, documentResource(d))
}

func (h *Handler) DocumentUpdate(w http.ResponseWriter, r *http.Request) {
	var data document.Data
	if !decodeBody(w, r, &data) {
		return
	}

	p, _ := principalFrom(r.Context())
	d, err := h.documents.Update(r.Context(), p.UserID, chi.URLParam(r, "documentId"), data, app.UpdateOptions{})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	jsonapi.WriteResource(w, http.StatusOK, documentResource(d))
}

func (h *Handler) DocumentRemove(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())
	removed, err := h.documents.Remove(r.Context(), p.UserID, chi.URLParam(r, "documentId"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if !removed {
		jsonapi.WriteNotFound(w, "document")
		return
	}
	jsonapi.WriteNoContent(w)
}

func (h *Handler) DocumentRevisions(w http.ResponseWriter, r *http.Request) {
	revs, err := h.documents.Revisions(r.Context(), chi.URLParam(r, "documentId"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	resources := make([]jsonapi.Resource, 0, len(revs))
	for _, rev := range revs {
		resources = append(resources, revisionResource(rev))
	}
	jsonapi.WriteCollection(w, http.StatusOK, resources, nil)
}

func (h *Handler) DocumentSearch(w http.ResponseWriter, r *http.Request) {
	term := r.URL.Query().Get("q")
	schemaID := r.URL.Query().Get("schemaId")
	page, perPage := h.pageParams(r)

	docs, pg, err := h.documents.Search(r.Context(), term, schemaID, page, perPage)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	resources := make([]jsonapi.Resource, 0, len(docs))
	for _, d := range docs {
		resources = append(resources, documentResource(d))
	}
	jsonapi.WriteCollection(w, http.StatusOK, resources, pageOf(pg, "/api/v1/search"))
}

// parseFilters extracts equality filters of the form
// filter[<field>]=<value>. Field names are validated up front; the
// storage layer splices them into JSON paths. The value is taken as a
// raw JSON literal when it parses as one (true, 42, "x"); anything
// else is treated as a plain string.
func parseFilters(query url.Values) ([]ports.DocumentFilter, error) {
	var filters []ports.DocumentFilter
	for key, values := range query {
		if !strings.HasPrefix(key, "filter[") || !strings.HasSuffix(key, "]") || len(values) == 0 {
			continue
		}
		field := key[len("filter[") : len(key)-1]
		if field == "" {
			continue
		}
		if ok, msg := schema.ValidateFieldName(field); !ok {
			return nil, fmt.Errorf("filter[%s]: %s", field, msg)
		}
		filters = append(filters, ports.DocumentFilter{
			Field: field,
			Value: filterValue(values[0]),
		})
	}
	return filters, nil
}

func filterValue(raw string) json.RawMessage {
	if json.Valid([]byte(raw)) {
		return json.RawMessage(raw)
	}
	quoted, _ := json.Marshal(raw)
	return quoted
}

func documentResource(d document.Document) jsonapi.Resource {
	return jsonapi.NewResource("document", d.ID).
		Attr("data", d.Data).
		Attr("userId", d.UserID).
		Attr("createdAt", d.CreatedAt).
		Attr("updatedAt", d.UpdatedAt).
		BelongsTo("schema", "schema", d.SchemaID).
		Build()
}

func revisionResource(rev document.Revision) jsonapi.Resource {
	return jsonapi.NewResource("document-revision", rev.ID).
		Attr("data", rev.Data).
		Attr("userId", rev.UserID).
		Attr("createdAt", rev.CreatedAt).
		BelongsTo("document", "document", rev.DocumentID).
		BelongsTo("schema", "schema", rev.SchemaID).
		Build()
}
