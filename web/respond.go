package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"

	"github.com/stencilcms/stencil/app"
	"github.com/stencilcms/stencil/domain/document"
	"github.com/stencilcms/stencil/pkg/jsonapi"
)

// respondError maps application errors onto the HTTP error taxonomy:
// validation 400, not-found 404, conflict 409, bad credentials 401,
// everything else a logged 500 with a generic body.
func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *app.ValidationError
	switch {
	case errors.As(err, &ve):
		jsonapi.WriteError(w, validationErrors(ve)...)
	case errors.Is(err, app.ErrNotFound):
		jsonapi.WriteError(w, jsonapi.ErrNotFound("resource"))
	case errors.Is(err, app.ErrConflict):
		jsonapi.WriteError(w, jsonapi.ErrConflict(err.Error()))
	case errors.Is(err, app.ErrInvalidCredentials):
		jsonapi.WriteError(w, jsonapi.ErrUnauthorized("Invalid credentials"))
	default:
		h.logger.Error().
			Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("request failed")
		jsonapi.WriteError(w, jsonapi.ErrInternal(""))
	}
}

// validationErrors renders one error object per offending field, in
// stable field order.
func validationErrors(ve *app.ValidationError) []jsonapi.Error {
	fields := make([]string, 0, len(ve.Errors))
	for f := range ve.Errors {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	errs := make([]jsonapi.Error, 0, len(fields))
	for _, f := range fields {
		errs = append(errs, jsonapi.NewError(http.StatusBadRequest, "validation_error", "Validation Failed").
			Detail(ve.Errors[f]).
			Pointer("/data/attributes/"+f).
			Build())
	}
	return errs
}

// decodeBody decodes a JSON request body into dst, rejecting unknown
// top-level members so client typos surface as 400s.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		jsonapi.WriteBadRequest(w, "Malformed request body: "+err.Error())
		return false
	}
	return true
}

// pageOf converts store pagination into the response envelope.
func pageOf(page document.Page, baseURL string) *jsonapi.Pagination {
	return jsonapi.NewPagination(int64(page.TotalItems), page.CurrentPage, page.PerPage, baseURL)
}

// pageParams reads pagination from the query string, applying the
// configured default and ceiling.
func (h *Handler) pageParams(r *http.Request) (page, perPage int) {
	page, perPage = jsonapi.ParsePaginationParams(r.URL.Query(), h.defaultPerPage)
	if perPage > h.maxPerPage {
		perPage = h.maxPerPage
	}
	return page, perPage
}
