package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stencilcms/stencil/app"
	"github.com/stencilcms/stencil/domain/access"
	"github.com/stencilcms/stencil/domain/webhook"
	"github.com/stencilcms/stencil/pkg/jsonapi"
)

func (h *Handler) webhookRoutes(r chi.Router) {
	r.Route("/webhooks", func(r chi.Router) {
		r.With(h.requireScope("internal:webhook:read", access.Options{})).Get("/", h.WebhookList)
		r.With(h.requireScope("internal:webhook:create", access.Options{})).Post("/", h.WebhookCreate)

		r.Route("/{webhookId}", func(r chi.Router) {
			r.With(h.requireScope("internal:webhook:read", access.Options{})).Get("/", h.WebhookGet)
			r.With(h.requireScope("internal:webhook:update", access.Options{})).Patch("/", h.WebhookUpdate)
			r.With(h.requireScope("internal:webhook:delete", access.Options{})).Delete("/", h.WebhookRemove)
			r.With(h.requireScope("internal:webhook:update", access.Options{})).Post("/test", h.WebhookTest)
			r.With(h.requireScope("internal:webhook_call:read", access.Options{})).Get("/calls", h.WebhookCallList)
		})
	})

	r.Route("/webhook-calls", func(r chi.Router) {
		r.With(h.requireScope("internal:webhook_call:read", access.Options{})).Get("/", h.WebhookCallList)

		r.Route("/{callId}", func(r chi.Router) {
			r.With(h.requireScope("internal:webhook_call:read", access.Options{})).Get("/", h.WebhookCallGet)
			r.With(h.requireScope("internal:webhook_call:delete", access.Options{})).Delete("/", h.WebhookCallRemove)
		})
	})
}

func (h *Handler) WebhookList(w http.ResponseWriter, r *http.Request) {
	hooks, err := h.webhooks.List(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	resources := make([]jsonapi.Resource, 0, len(hooks))
	for _, wh := range hooks {
		resources = append(resources, webhookResource(wh))
	}
	jsonapi.WriteCollection(w, http.StatusOK, resources, nil)
}

func (h *Handler) WebhookCreate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name      string              `json:"name"`
		URL       string              `json:"url"`
		Method    string              `json:"method"`
		Events    []webhook.EventType `json:"events"`
		SchemaIDs []string            `json:"schemaIds"`
		Enabled   bool                `json:"enabled"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	wh, err := h.webhooks.Create(r.Context(), app.CreateWebhookInput{
		Name:      body.Name,
		URL:       body.URL,
		Method:    body.Method,
		Events:    body.Events,
		SchemaIDs: body.SchemaIDs,
		Enabled:   body.Enabled,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	jsonapi.WriteCreated(w, webhookResource(wh), "/api/v1/webhooks/"+wh.ID)
}

func (h *Handler) WebhookGet(w http.ResponseWriter, r *http.Request) {
	wh, err := h.webhooks.Get(r.Context(), chi.URLParam(r, "webhookId"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	jsonapi.WriteResource(w, http.StatusOK, webhookResource(wh))
}

func (h *Handler) WebhookUpdate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name      *string              `json:"name"`
		URL       *string              `json:"url"`
		Method    *string              `json:"method"`
		Events    *[]webhook.EventType `json:"events"`
		SchemaIDs *[]string            `json:"schemaIds"`
		Enabled   *bool                `json:"enabled"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	wh, err := h.webhooks.Update(r.Context(), chi.URLParam(r, "webhookId"), app.UpdateWebhookInput{
		Name:      body.Name,
		URL:       body.URL,
		Method:    body.Method,
		Events:    body.Events,
		SchemaIDs: body.SchemaIDs,
		Enabled:   body.Enabled,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	jsonapi.WriteResource(w, http.StatusOK, webhookResource(wh))
}

func (h *Handler) WebhookRemove(w http.ResponseWriter, r *http.Request) {
	removed, err := h.webhooks.Remove(r.Context(), chi.URLParam(r, "webhookId"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if !removed {
		jsonapi.WriteNotFound(w, "webhook")
		return
	}
	jsonapi.WriteNoContent(w)
}

// WebhookTest fires a synchronous test event and returns the recorded
// call, so the admin can see status and response body immediately.
func (h *Handler) WebhookTest(w http.ResponseWriter, r *http.Request) {
	call, err := h.webhooks.Test(r.Context(), chi.URLParam(r, "webhookId"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	jsonapi.WriteResource(w, http.StatusOK, callResource(call))
}

func (h *Handler) WebhookCallList(w http.ResponseWriter, r *http.Request) {
	page, perPage := h.pageParams(r)

	// Empty webhookId (the /webhook-calls mount) lists the whole log.
	webhookID := chi.URLParam(r, "webhookId")
	calls, pg, err := h.webhooks.ListCalls(r.Context(), webhookID, page, perPage)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	resources := make([]jsonapi.Resource, 0, len(calls))
	for _, call := range calls {
		resources = append(resources, callResource(call))
	}
	path := "/api/v1/webhook-calls"
	if webhookID != "" {
		path = "/api/v1/webhooks/" + webhookID + "/calls"
	}
	jsonapi.WriteCollection(w, http.StatusOK, resources, pageOf(pg, path))
}

func (h *Handler) WebhookCallGet(w http.ResponseWriter, r *http.Request) {
	call, err := h.webhooks.GetCall(r.Context(), chi.URLParam(r, "callId"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	jsonapi.WriteResource(w, http.StatusOK, callResource(call))
}

func (h *Handler) WebhookCallRemove(w http.ResponseWriter, r *http.Request) {
	removed, err := h.webhooks.RemoveCall(r.Context(), chi.URLParam(r, "callId"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if !removed {
		jsonapi.WriteNotFound(w, "webhook call")
		return
	}
	jsonapi.WriteNoContent(w)
}

func webhookResource(wh webhook.Webhook) jsonapi.Resource {
	b := jsonapi.NewResource("webhook", wh.ID).
		Attr("name", wh.Name).
		Attr("url", wh.URL).
		Attr("method", wh.Method).
		Attr("secret", wh.Secret).
		Attr("events", wh.Events).
		Attr("enabled", wh.Enabled).
		Attr("createdAt", wh.CreatedAt).
		Attr("updatedAt", wh.UpdatedAt)
	if len(wh.SchemaIDs) > 0 {
		b.Attr("schemaIds", wh.SchemaIDs)
	}
	return b.Build()
}

func callResource(call webhook.Call) jsonapi.Resource {
	return jsonapi.NewResource("webhook-call", call.ID).
		Attr("eventType", call.EventType).
		Attr("request", call.Request).
		Attr("response", call.Response).
		Attr("status", call.Status).
		Attr("success", call.Success).
		Attr("executedAt", call.ExecutedAt).
		BelongsTo("webhook", "webhook", call.WebhookID).
		Build()
}
