package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/stencilcms/stencil/domain/webhook"
	"github.com/stencilcms/stencil/ports"
)

// WebhookStore implements ports.WebhookStore with SQLite.
type WebhookStore struct {
	db *DB
}

// NewWebhookStore creates a SQLite-backed webhook store.
func NewWebhookStore(db *DB) *WebhookStore {
	return &WebhookStore{db: db}
}

const webhookColumns = "id, name, url, method, secret, events, schema_ids, enabled, created_at, updated_at"

// Get retrieves a webhook by ID.
func (s *WebhookStore) Get(ctx context.Context, id string) (webhook.Webhook, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+webhookColumns+` FROM webhooks WHERE id = ?
	`, id)

	w, err := scanWebhook(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return webhook.Webhook{}, ErrNotFound
		}
		return webhook.Webhook{}, fmt.Errorf("get webhook: %w", err)
	}
	return w, nil
}

// List returns all webhooks ordered by name.
func (s *WebhookStore) List(ctx context.Context) ([]webhook.Webhook, error) {
	return s.list(ctx, false)
}

// ListEnabled returns only enabled webhooks.
func (s *WebhookStore) ListEnabled(ctx context.Context) ([]webhook.Webhook, error) {
	return s.list(ctx, true)
}

func (s *WebhookStore) list(ctx context.Context, enabledOnly bool) ([]webhook.Webhook, error) {
	query := "SELECT " + webhookColumns + " FROM webhooks"
	if enabledOnly {
		query += " WHERE enabled = 1"
	}
	query += " ORDER BY name, id"

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list webhooks: %w", err)
	}
	defer rows.Close()

	var webhooks []webhook.Webhook
	for rows.Next() {
		w, err := scanWebhook(rows)
		if err != nil {
			return nil, fmt.Errorf("scan webhook: %w", err)
		}
		webhooks = append(webhooks, w)
	}
	return webhooks, rows.Err()
}

// Create stores a new webhook.
func (s *WebhookStore) Create(ctx context.Context, w webhook.Webhook) error {
	events, schemaIDs, err := encodeWebhookLists(w)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO webhooks (id, name, url, method, secret, events, schema_ids, enabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, w.ID, w.Name, w.URL, w.Method, w.Secret, events, schemaIDs, w.Enabled, w.CreatedAt, w.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create webhook: %w", err)
	}
	return nil
}

// Update modifies an existing webhook.
func (s *WebhookStore) Update(ctx context.Context, w webhook.Webhook) error {
	events, schemaIDs, err := encodeWebhookLists(w)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE webhooks
		SET name = ?, url = ?, method = ?, secret = ?, events = ?, schema_ids = ?, enabled = ?, updated_at = ?
		WHERE id = ?
	`, w.Name, w.URL, w.Method, w.Secret, events, schemaIDs, w.Enabled, w.UpdatedAt, w.ID)
	if err != nil {
		return fmt.Errorf("update webhook: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a webhook.
func (s *WebhookStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM webhooks WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func encodeWebhookLists(w webhook.Webhook) (events, schemaIDs string, err error) {
	typeNames := make([]string, len(w.Events))
	for i, e := range w.Events {
		typeNames[i] = string(e)
	}
	if events, err = encodeStrings(typeNames); err != nil {
		return "", "", fmt.Errorf("encode webhook events: %w", err)
	}
	if schemaIDs, err = encodeStrings(w.SchemaIDs); err != nil {
		return "", "", fmt.Errorf("encode webhook schema ids: %w", err)
	}
	return events, schemaIDs, nil
}

func scanWebhook(row rowScanner) (webhook.Webhook, error) {
	var w webhook.Webhook
	var events, schemaIDs string
	err := row.Scan(&w.ID, &w.Name, &w.URL, &w.Method, &w.Secret,
		&events, &schemaIDs, &w.Enabled, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return webhook.Webhook{}, err
	}

	var typeNames []string
	if err := json.Unmarshal([]byte(events), &typeNames); err != nil {
		return webhook.Webhook{}, fmt.Errorf("decode webhook events: %w", err)
	}
	for _, t := range typeNames {
		w.Events = append(w.Events, webhook.EventType(t))
	}

	if w.SchemaIDs, err = decodeStrings(schemaIDs); err != nil {
		return webhook.Webhook{}, fmt.Errorf("decode webhook schema ids: %w", err)
	}
	return w, nil
}

// Ensure interface compliance.
var _ ports.WebhookStore = (*WebhookStore)(nil)
