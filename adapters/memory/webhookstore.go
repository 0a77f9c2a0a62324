package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/stencilcms/stencil/domain/document"
	"github.com/stencilcms/stencil/domain/webhook"
	"github.com/stencilcms/stencil/ports"
)

// WebhookStore is an in-memory implementation of ports.WebhookStore.
type WebhookStore struct {
	mu       sync.RWMutex
	webhooks map[string]webhook.Webhook // by ID
}

// NewWebhookStore creates a new in-memory webhook store.
func NewWebhookStore() *WebhookStore {
	return &WebhookStore{webhooks: make(map[string]webhook.Webhook)}
}

// Get retrieves a webhook by ID.
func (s *WebhookStore) Get(ctx context.Context, id string) (webhook.Webhook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.webhooks[id]
	if !ok {
		return webhook.Webhook{}, ports.ErrNotFound
	}
	return w, nil
}

// List returns all webhooks ordered by name.
func (s *WebhookStore) List(ctx context.Context) ([]webhook.Webhook, error) {
	return s.list(false), nil
}

// ListEnabled returns only enabled webhooks.
func (s *WebhookStore) ListEnabled(ctx context.Context) ([]webhook.Webhook, error) {
	return s.list(true), nil
}

func (s *WebhookStore) list(enabledOnly bool) []webhook.Webhook {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []webhook.Webhook
	for _, w := range s.webhooks {
		if enabledOnly && !w.Enabled {
			continue
		}
		all = append(all, w)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Name != all[j].Name {
			return all[i].Name < all[j].Name
		}
		return all[i].ID < all[j].ID
	})
	return all
}

// Create stores a new webhook.
func (s *WebhookStore) Create(ctx context.Context, w webhook.Webhook) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.webhooks[w.ID]; ok {
		return ports.ErrDuplicate
	}
	s.webhooks[w.ID] = w
	return nil
}

// Update modifies an existing webhook.
func (s *WebhookStore) Update(ctx context.Context, w webhook.Webhook) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.webhooks[w.ID]; !ok {
		return ports.ErrNotFound
	}
	s.webhooks[w.ID] = w
	return nil
}

// Delete removes a webhook.
func (s *WebhookStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.webhooks[id]; !ok {
		return ports.ErrNotFound
	}
	delete(s.webhooks, id)
	return nil
}

// WebhookCallStore is an in-memory implementation of ports.WebhookCallStore.
type WebhookCallStore struct {
	mu    sync.RWMutex
	calls map[string]webhook.Call // by ID
}

// NewWebhookCallStore creates a new in-memory webhook call store.
func NewWebhookCallStore() *WebhookCallStore {
	return &WebhookCallStore{calls: make(map[string]webhook.Call)}
}

// Create appends a call record.
func (s *WebhookCallStore) Create(ctx context.Context, c webhook.Call) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[c.ID] = c
	return nil
}

// Get retrieves a call by ID.
func (s *WebhookCallStore) Get(ctx context.Context, id string) (webhook.Call, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.calls[id]
	if !ok {
		return webhook.Call{}, ports.ErrNotFound
	}
	return c, nil
}

// List returns calls for a webhook, most recent first, plus a total.
func (s *WebhookCallStore) List(ctx context.Context, webhookID string, page, perPage int) ([]webhook.Call, int, error) {
	page, perPage = document.NormalizePage(page, perPage)

	s.mu.RLock()
	var matched []webhook.Call
	for _, c := range s.calls {
		if webhookID == "" || c.WebhookID == webhookID {
			matched = append(matched, c)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].ExecutedAt.Equal(matched[j].ExecutedAt) {
			return matched[i].ExecutedAt.After(matched[j].ExecutedAt)
		}
		return matched[i].ID < matched[j].ID
	})
	total := len(matched)
	p := document.Page{TotalItems: total, CurrentPage: page, PerPage: perPage}
	return paginate(matched, p.Offset(), perPage), total, nil
}

// Delete removes a call record.
func (s *WebhookCallStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.calls[id]; !ok {
		return ports.ErrNotFound
	}
	delete(s.calls, id)
	return nil
}

// Ensure interface compliance.
var (
	_ ports.WebhookStore     = (*WebhookStore)(nil)
	_ ports.WebhookCallStore = (*WebhookCallStore)(nil)
)
