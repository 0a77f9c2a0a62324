package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stencilcms/stencil/app"
	"github.com/stencilcms/stencil/domain/access"
	"github.com/stencilcms/stencil/domain/document"
	"github.com/stencilcms/stencil/domain/schema"
	"github.com/stencilcms/stencil/pkg/jsonapi"
)

// peekSchema lets a scope narrowed to one schema (for example
// "internal:document:read:<schemaId>") satisfy the guard.
var peekSchema = access.Options{
	DeriveAlternativeScopes: true,
	FieldsOrArgsToPeek:      []string{"schemaId"},
}

func (h *Handler) schemaRoutes(r chi.Router) {
	r.Route("/schemas", func(r chi.Router) {
		r.With(h.requireScope("internal:schema:read", access.Options{})).Get("/", h.SchemaList)
		r.With(h.requireScope("internal:schema:create", access.Options{})).Post("/", h.SchemaCreate)

		r.Route("/{schemaId}", func(r chi.Router) {
			r.With(h.requireScope("internal:schema:read", peekSchema)).Get("/", h.SchemaGet)
			r.With(h.requireScope("internal:schema:update", peekSchema)).Patch("/", h.SchemaUpdate)
			r.With(h.requireScope("internal:schema:delete", access.Options{})).Delete("/", h.SchemaRemove)
			r.With(h.requireScope("internal:schema:read", peekSchema)).Get("/revisions", h.SchemaRevisions)

			r.With(h.requireScope("internal:schema:read", peekSchema)).Get("/shape", h.SchemaShape)

			r.With(h.requireScope("internal:field:read", peekSchema)).Get("/fields", h.FieldList)
			r.With(h.requireScope("internal:field:create", peekSchema)).Post("/fields", h.FieldCreate)

			r.With(h.requireScope("internal:document:read", peekSchema)).Get("/documents", h.DocumentList)
			r.With(h.requireScope("internal:document:create", peekSchema)).Post("/documents", h.DocumentCreate)
		})
	})

	r.Route("/fields/{fieldId}", func(r chi.Router) {
		r.With(h.requireScope("internal:field:read", access.Options{})).Get("/", h.FieldGet)
		r.With(h.requireScope("internal:field:update", access.Options{})).Patch("/", h.FieldUpdate)
		r.With(h.requireScope("internal:field:delete", access.Options{})).Delete("/", h.FieldRemove)
	})
}

func (h *Handler) SchemaList(w http.ResponseWriter, r *http.Request) {
	page, perPage := h.pageParams(r)

	schemas, pg, err := h.schemas.List(r.Context(), page, perPage)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	resources := make([]jsonapi.Resource, 0, len(schemas))
	for _, sc := range schemas {
		resources = append(resources, schemaResource(sc))
	}
	jsonapi.WriteCollection(w, http.StatusOK, resources, pageOf(pg, "/api/v1/schemas"))
}

func (h *Handler) SchemaCreate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name     string          `json:"name"`
		Title    string          `json:"title"`
		Settings schema.Settings `json:"settings"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	p, _ := principalFrom(r.Context())
	sc, err := h.schemas.Create(r.Context(), p.UserID, app.CreateSchemaInput{
		Name:     body.Name,
		Title:    body.Title,
		Settings: body.Settings,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	jsonapi.WriteCreated(w, schemaResource(sc), "/api/v1/schemas/"+sc.ID)
}

func (h *Handler) SchemaGet(w http.ResponseWriter, r *http.Request) {
	sc, err := h.schemas.Get(r.Context(), chi.URLParam(r, "schemaId"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	jsonapi.WriteResource(w, http.StatusOK, schemaResource(sc))
}

func (h *Handler) SchemaUpdate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name     *string          `json:"name"`
		Title    *string          `json:"title"`
		Settings *schema.Settings `json:"settings"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	p, _ := principalFrom(r.Context())
	sc, err := h.schemas.Update(r.Context(), p.UserID, chi.URLParam(r, "schemaId"), app.UpdateSchemaInput{
		Name:     body.Name,
		Title:    body.Title,
		Settings: body.Settings,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	jsonapi.WriteResource(w, http.StatusOK, schemaResource(sc))
}

func (h *Handler) SchemaRemove(w http.ResponseWriter, r *http.Request) {
	cascade := r.URL.Query().Get("cascade") == "true"

	p, _ := principalFrom(r.Context())
	removed, err := h.schemas.Remove(r.Context(), p.UserID, chi.URLParam(r, "schemaId"), cascade)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if !removed {
		jsonapi.WriteNotFound(w, "schema")
		return
	}
	jsonapi.WriteNoContent(w)
}

func (h *Handler) SchemaRevisions(w http.ResponseWriter, r *http.Request) {
	revs, err := h.schemas.Revisions(r.Context(), chi.URLParam(r, "schemaId"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	resources := make([]jsonapi.Resource, 0, len(revs))
	for _, rev := range revs {
		resources = append(resources, schemaRevisionResource(rev))
	}
	jsonapi.WriteCollection(w, http.StatusOK, resources, nil)
}

// SchemaShape reports the composed document input/output/filter shapes
// of a schema, for API clients that generate typed bindings.
func (h *Handler) SchemaShape(w http.ResponseWriter, r *http.Request) {
	schemaID := chi.URLParam(r, "schemaId")
	shape, err := h.fields.Shapes(r.Context(), schemaID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	res := jsonapi.NewResource("document-shape", schemaID).
		Attr("input", shape.Input).
		Attr("output", shape.Output).
		Attr("where", shape.Where).
		BelongsTo("schema", "schema", schemaID).
		Build()
	jsonapi.WriteResource(w, http.StatusOK, res)
}

func (h *Handler) FieldList(w http.ResponseWriter, r *http.Request) {
	fieldDefs, err := h.fields.ListBySchema(r.Context(), chi.URLParam(r, "schemaId"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	resources := make([]jsonapi.Resource, 0, len(fieldDefs))
	for _, f := range fieldDefs {
		resources = append(resources, fieldResource(f))
	}
	jsonapi.WriteCollection(w, http.StatusOK, resources, nil)
}

func (h *Handler) FieldCreate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name        string          `json:"name"`
		Title       string          `json:"title"`
		Description string          `json:"description"`
		Type        string          `json:"type"`
		Settings    schema.Settings `json:"settings"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	p, _ := principalFrom(r.Context())
	f, err := h.fields.Create(r.Context(), p.UserID, chi.URLParam(r, "schemaId"), app.FieldInput{
		Name:        body.Name,
		Title:       body.Title,
		Description: body.Description,
		Type:        body.Type,
		Settings:    body.Settings,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	jsonapi.WriteCreated(w, fieldResource(f), "/api/v1/fields/"+f.ID)
}

func (h *Handler) FieldGet(w http.ResponseWriter, r *http.Request) {
	f, err := h.fields.Get(r.Context(), chi.URLParam(r, "fieldId"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	jsonapi.WriteResource(w, http.StatusOK, fieldResource(f))
}

func (h *Handler) FieldUpdate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name        *string          `json:"name"`
		Title       *string          `json:"title"`
		Description *string          `json:"description"`
		Type        *string          `json:"type"`
		Settings    *schema.Settings `json:"settings"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	p, _ := principalFrom(r.Context())
	f, err := h.fields.Update(r.Context(), p.UserID, chi.URLParam(r, "fieldId"), schema.FieldUpdate{
		Name:        body.Name,
		Title:       body.Title,
		Description: body.Description,
		Type:        body.Type,
		Settings:    body.Settings,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	jsonapi.WriteResource(w, http.StatusOK, fieldResource(f))
}

func (h *Handler) FieldRemove(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())
	removed, err := h.fields.Remove(r.Context(), p.UserID, chi.URLParam(r, "fieldId"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if !removed {
		jsonapi.WriteNotFound(w, "field")
		return
	}
	jsonapi.WriteNoContent(w)
}

func schemaResource(sc schema.Schema) jsonapi.Resource {
	b := jsonapi.NewResource("schema", sc.ID).
		Attr("name", sc.Name).
		Attr("title", sc.Title).
		Attr("createdAt", sc.CreatedAt).
		Attr("updatedAt", sc.UpdatedAt)
	if len(sc.Settings) > 0 {
		b.Attr("settings", sc.Settings)
	}
	if len(sc.Fields) > 0 {
		ids := make([]string, 0, len(sc.Fields))
		for _, f := range sc.Fields {
			ids = append(ids, f.ID)
		}
		b.HasManyIDs("fields", "field", ids)
	}
	return b.Build()
}

func fieldResource(f schema.Field) jsonapi.Resource {
	b := jsonapi.NewResource("field", f.ID).
		Attr("name", f.Name).
		Attr("title", f.Title).
		Attr("type", f.Type).
		Attr("createdAt", f.CreatedAt).
		Attr("updatedAt", f.UpdatedAt).
		BelongsTo("schema", "schema", f.SchemaID)
	if f.Description != "" {
		b.Attr("description", f.Description)
	}
	if len(f.Settings) > 0 {
		b.Attr("settings", f.Settings)
	}
	return b.Build()
}

func schemaRevisionResource(rev document.SchemaRevision) jsonapi.Resource {
	return jsonapi.NewResource("schema-revision", rev.ID).
		Attr("definition", rev.Data).
		Attr("userId", rev.UserID).
		Attr("createdAt", rev.CreatedAt).
		BelongsTo("schema", "schema", rev.SchemaID).
		Build()
}
