package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/stencilcms/stencil/domain/document"
	"github.com/stencilcms/stencil/domain/webhook"
	"github.com/stencilcms/stencil/ports"
)

// WebhookCallStore implements ports.WebhookCallStore with SQLite. The
// call log is append-only; the only delete is explicit admin cleanup.
type WebhookCallStore struct {
	db *DB
}

// NewWebhookCallStore creates a SQLite-backed webhook call store.
func NewWebhookCallStore(db *DB) *WebhookCallStore {
	return &WebhookCallStore{db: db}
}

const callColumns = "id, webhook_id, event_type, request, response, status, success, executed_at"

// Create appends a call record.
func (s *WebhookCallStore) Create(ctx context.Context, c webhook.Call) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO webhook_calls (id, webhook_id, event_type, request, response, status, success, executed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.WebhookID, string(c.EventType), c.Request, c.Response, c.Status, c.Success, c.ExecutedAt)
	if err != nil {
		return fmt.Errorf("create webhook call: %w", err)
	}
	return nil
}

// Get retrieves a call by ID.
func (s *WebhookCallStore) Get(ctx context.Context, id string) (webhook.Call, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+callColumns+` FROM webhook_calls WHERE id = ?
	`, id)

	c, err := scanCall(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return webhook.Call{}, ErrNotFound
		}
		return webhook.Call{}, fmt.Errorf("get webhook call: %w", err)
	}
	return c, nil
}

// List returns calls for a webhook, most recent first, plus a total.
// An empty webhookID lists calls across all webhooks.
func (s *WebhookCallStore) List(ctx context.Context, webhookID string, page, perPage int) ([]webhook.Call, int, error) {
	page, perPage = document.NormalizePage(page, perPage)

	where := "WHERE webhook_id = ?"
	args := []any{webhookID}
	if webhookID == "" {
		where = ""
		args = nil
	}

	var total int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM webhook_calls "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count webhook calls: %w", err)
	}

	p := document.Page{TotalItems: total, CurrentPage: page, PerPage: perPage}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+callColumns+` FROM webhook_calls `+where+`
		ORDER BY executed_at DESC, id LIMIT ? OFFSET ?
	`, append(args, perPage, p.Offset())...)
	if err != nil {
		return nil, 0, fmt.Errorf("list webhook calls: %w", err)
	}
	defer rows.Close()

	var calls []webhook.Call
	for rows.Next() {
		c, err := scanCall(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan webhook call: %w", err)
		}
		calls = append(calls, c)
	}
	return calls, total, rows.Err()
}

// Delete removes a call record. Admin cleanup only.
func (s *WebhookCallStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM webhook_calls WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete webhook call: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanCall(row rowScanner) (webhook.Call, error) {
	var c webhook.Call
	var eventType string
	err := row.Scan(&c.ID, &c.WebhookID, &eventType, &c.Request, &c.Response,
		&c.Status, &c.Success, &c.ExecutedAt)
	if err != nil {
		return webhook.Call{}, err
	}
	c.EventType = webhook.EventType(eventType)
	return c, nil
}

// Ensure interface compliance.
var _ ports.WebhookCallStore = (*WebhookCallStore)(nil)
