package app

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/stencilcms/stencil/domain/document"
	"github.com/stencilcms/stencil/domain/webhook"
	"github.com/stencilcms/stencil/ports"
)

// WebhookService manages webhook configurations and fans content-change
// events out to their endpoints. Dispatch runs in goroutines off the
// mutation path; every attempt appends exactly one Call to the audit
// log, success or failure.
type WebhookService struct {
	webhooks ports.WebhookStore
	calls    ports.WebhookCallStore
	clock    ports.Clock
	idgen    ports.IDGenerator
	logger   zerolog.Logger
	client   *http.Client

	timeout     time.Duration
	maxResponse int64
	observe     func(outcome string)

	shutdownCtx context.Context
	shutdownFn  context.CancelFunc
}

// WebhookOptions tunes delivery behavior. Zero values fall back to
// defaults.
type WebhookOptions struct {
	Timeout         time.Duration // per-delivery timeout
	MaxResponseSize int64         // bytes of response body kept in the audit log
	Observe         func(outcome string)
}

// NewWebhookService creates a webhook service with default delivery
// options.
func NewWebhookService(
	webhooks ports.WebhookStore,
	calls ports.WebhookCallStore,
	clock ports.Clock,
	idgen ports.IDGenerator,
	logger zerolog.Logger,
) *WebhookService {
	return NewWebhookServiceWithOptions(webhooks, calls, clock, idgen, logger, WebhookOptions{})
}

// NewWebhookServiceWithOptions creates a webhook service.
func NewWebhookServiceWithOptions(
	webhooks ports.WebhookStore,
	calls ports.WebhookCallStore,
	clock ports.Clock,
	idgen ports.IDGenerator,
	logger zerolog.Logger,
	opts WebhookOptions,
) *WebhookService {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxResponseSize <= 0 {
		opts.MaxResponseSize = 4096
	}
	shutdownCtx, shutdownFn := context.WithCancel(context.Background())
	return &WebhookService{
		webhooks:    webhooks,
		calls:       calls,
		clock:       clock,
		idgen:       idgen,
		logger:      logger,
		client:      &http.Client{Timeout: opts.Timeout},
		timeout:     opts.Timeout,
		maxResponse: opts.MaxResponseSize,
		observe:     opts.Observe,
		shutdownCtx: shutdownCtx,
		shutdownFn:  shutdownFn,
	}
}

// Notify implements Notifier. It dispatches without surfacing errors;
// failed fan-out is logged and audited, never propagated to the
// mutation that caused it.
func (s *WebhookService) Notify(ctx context.Context, event webhook.Event) {
	if err := s.Dispatch(ctx, event); err != nil {
		s.logger.Error().Err(err).Str("event_type", string(event.Type)).Msg("webhook dispatch failed")
	}
}

// Dispatch fans an event out to all matching enabled webhooks.
func (s *WebhookService) Dispatch(ctx context.Context, event webhook.Event) error {
	enabled, err := s.webhooks.ListEnabled(ctx)
	if err != nil {
		return wrapStoreErr("list enabled webhooks", err)
	}

	matching := webhook.FilterForEvent(enabled, event)
	if len(matching) == 0 {
		s.logger.Debug().Str("event_type", string(event.Type)).Msg("no webhooks match event")
		return nil
	}

	payload, err := webhook.SerializePayload(webhook.BuildPayload(event))
	if err != nil {
		return wrapStoreErr("serialize payload", err)
	}

	for _, wh := range matching {
		// Delivery continues even if the originating request is
		// cancelled; the mutation already committed.
		sendCtx, cancel := context.WithTimeout(s.shutdownCtx, s.timeout)
		go func(wh webhook.Webhook) {
			defer cancel()
			s.send(sendCtx, wh, event, payload)
		}(wh)
	}

	s.logger.Info().
		Str("event_type", string(event.Type)).
		Str("event_id", event.ID).
		Int("webhook_count", len(matching)).
		Msg("webhook event dispatched")
	return nil
}

// send performs one delivery attempt and appends its audit record.
func (s *WebhookService) send(ctx context.Context, wh webhook.Webhook, event webhook.Event, payload []byte) {
	method := wh.Method
	if method == "" {
		method = http.MethodPost
	}

	status := 0
	responseBody := ""

	req, err := http.NewRequestWithContext(ctx, method, wh.URL, bytes.NewReader(payload))
	if err != nil {
		responseBody = err.Error()
	} else {
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", "Stencil-Webhook/1.0")
		req.Header.Set("X-Webhook-ID", wh.ID)
		req.Header.Set("X-Event-ID", event.ID)
		req.Header.Set("X-Event-Type", string(event.Type))
		req.Header.Set("X-Webhook-Signature", webhook.SignPayload(payload, wh.Secret))

		resp, err := s.client.Do(req)
		if err != nil {
			responseBody = err.Error()
		} else {
			status = resp.StatusCode
			var buf bytes.Buffer
			buf.ReadFrom(http.MaxBytesReader(nil, resp.Body, s.maxResponse))
			resp.Body.Close()
			responseBody = buf.String()
		}
	}

	call := webhook.NewCall(s.idgen.New(), wh, event, string(payload), status, responseBody, s.clock.Now().UTC())
	if err := s.calls.Create(context.WithoutCancel(ctx), call); err != nil {
		s.logger.Error().Err(err).Str("webhook_id", wh.ID).Msg("failed to record webhook call")
	}

	if s.observe != nil {
		if call.Success {
			s.observe("success")
		} else {
			s.observe("failure")
		}
	}

	if call.Success {
		s.logger.Debug().
			Str("webhook_id", wh.ID).
			Int("status", status).
			Msg("webhook delivered")
	} else {
		s.logger.Warn().
			Str("webhook_id", wh.ID).
			Str("url", wh.URL).
			Int("status", status).
			Msg("webhook delivery failed")
	}
}

// Test sends a test event to one webhook synchronously and returns the
// recorded call.
func (s *WebhookService) Test(ctx context.Context, webhookID string) (webhook.Call, error) {
	wh, err := s.webhooks.Get(ctx, webhookID)
	if err != nil {
		return webhook.Call{}, err
	}

	event := webhook.Event{
		ID:        webhook.GenerateEventID(),
		Type:      webhook.EventTest,
		Timestamp: s.clock.Now().UTC(),
		Data:      map[string]any{"message": "test event", "webhookId": webhookID},
	}
	payload, err := webhook.SerializePayload(webhook.BuildPayload(event))
	if err != nil {
		return webhook.Call{}, wrapStoreErr("serialize payload", err)
	}

	s.send(ctx, wh, event, payload)

	calls, _, err := s.calls.List(ctx, webhookID, 1, 1)
	if err != nil || len(calls) == 0 {
		return webhook.Call{}, wrapStoreErr("load test call", err)
	}
	return calls[0], nil
}

// Shutdown cancels in-flight deliveries.
func (s *WebhookService) Shutdown() {
	s.shutdownFn()
}

// CreateWebhookInput describes a new webhook.
type CreateWebhookInput struct {
	Name      string
	URL       string
	Method    string
	Events    []webhook.EventType
	SchemaIDs []string
	Enabled   bool
}

// Get retrieves a webhook by ID.
func (s *WebhookService) Get(ctx context.Context, id string) (webhook.Webhook, error) {
	return s.webhooks.Get(ctx, id)
}

// List returns all webhooks.
func (s *WebhookService) List(ctx context.Context) ([]webhook.Webhook, error) {
	return s.webhooks.List(ctx)
}

// Create stores a new webhook. A signing secret is generated when none
// is supplied.
func (s *WebhookService) Create(ctx context.Context, in CreateWebhookInput) (webhook.Webhook, error) {
	if in.Name == "" {
		return webhook.Webhook{}, NewValidationError("name", "Name is required")
	}
	if ok, msg := webhook.ValidateURL(in.URL); !ok {
		return webhook.Webhook{}, NewValidationError("url", msg)
	}
	if ok, msg := webhook.ValidateEvents(in.Events); !ok {
		return webhook.Webhook{}, NewValidationError("events", msg)
	}

	method := in.Method
	if method == "" {
		method = http.MethodPost
	}

	now := s.clock.Now().UTC()
	wh := webhook.Webhook{
		ID:        s.idgen.New(),
		Name:      in.Name,
		URL:       in.URL,
		Method:    method,
		Secret:    webhook.GenerateSecret(),
		Events:    in.Events,
		SchemaIDs: in.SchemaIDs,
		Enabled:   in.Enabled,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.webhooks.Create(ctx, wh); err != nil {
		return webhook.Webhook{}, wrapStoreErr("create webhook", err)
	}
	s.logger.Info().Str("webhook_id", wh.ID).Str("url", wh.URL).Msg("webhook created")
	return wh, nil
}

// UpdateWebhookInput is a partial webhook update.
type UpdateWebhookInput struct {
	Name      *string
	URL       *string
	Method    *string
	Events    *[]webhook.EventType
	SchemaIDs *[]string
	Enabled   *bool
}

// Update modifies an existing webhook.
func (s *WebhookService) Update(ctx context.Context, id string, in UpdateWebhookInput) (webhook.Webhook, error) {
	wh, err := s.webhooks.Get(ctx, id)
	if err != nil {
		return webhook.Webhook{}, err
	}

	if in.Name != nil {
		if *in.Name == "" {
			return webhook.Webhook{}, NewValidationError("name", "Name is required")
		}
		wh.Name = *in.Name
	}
	if in.URL != nil {
		if ok, msg := webhook.ValidateURL(*in.URL); !ok {
			return webhook.Webhook{}, NewValidationError("url", msg)
		}
		wh.URL = *in.URL
	}
	if in.Method != nil {
		wh.Method = *in.Method
	}
	if in.Events != nil {
		if ok, msg := webhook.ValidateEvents(*in.Events); !ok {
			return webhook.Webhook{}, NewValidationError("events", msg)
		}
		wh.Events = *in.Events
	}
	if in.SchemaIDs != nil {
		wh.SchemaIDs = *in.SchemaIDs
	}
	if in.Enabled != nil {
		wh.Enabled = *in.Enabled
	}

	wh.UpdatedAt = s.clock.Now().UTC()
	if err := s.webhooks.Update(ctx, wh); err != nil {
		return webhook.Webhook{}, wrapStoreErr("update webhook", err)
	}
	return wh, nil
}

// Remove deletes a webhook. Returns false when it does not exist.
func (s *WebhookService) Remove(ctx context.Context, id string) (bool, error) {
	err := s.webhooks.Delete(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, wrapStoreErr("delete webhook", err)
	}
	s.logger.Info().Str("webhook_id", id).Msg("webhook removed")
	return true, nil
}

// GetCall retrieves one audit record.
func (s *WebhookService) GetCall(ctx context.Context, id string) (webhook.Call, error) {
	return s.calls.Get(ctx, id)
}

// ListCalls returns audit records, most recent first. An empty
// webhookID lists the whole log.
func (s *WebhookService) ListCalls(ctx context.Context, webhookID string, page, perPage int) ([]webhook.Call, document.Page, error) {
	page, perPage = document.NormalizePage(page, perPage)
	calls, total, err := s.calls.List(ctx, webhookID, page, perPage)
	if err != nil {
		return nil, document.Page{}, wrapStoreErr("list webhook calls", err)
	}
	return calls, document.Page{TotalItems: total, CurrentPage: page, PerPage: perPage}, nil
}

// RemoveCall deletes one audit record. Returns false when it does not
// exist.
func (s *WebhookService) RemoveCall(ctx context.Context, id string) (bool, error) {
	err := s.calls.Delete(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, wrapStoreErr("delete webhook call", err)
	}
	return true, nil
}
