package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stencilcms/stencil/domain/user"
	"github.com/stencilcms/stencil/domain/webhook"
)

func TestSchemaStoreCRUD(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	store := NewSchemaStore(db)

	sc := seedSchema(t, db, "sch-1", "posts")

	got, err := store.Get(ctx, "sch-1")
	require.NoError(t, err)
	assert.Equal(t, "posts", got.Name)

	byName, err := store.GetByName(ctx, "posts")
	require.NoError(t, err)
	assert.Equal(t, "sch-1", byName.ID)

	// Name is unique.
	dup := sc
	dup.ID = "sch-2"
	assert.ErrorIs(t, store.Create(ctx, dup), ErrDuplicate)

	sc.Title = "Blog Posts"
	sc.UpdatedAt = sc.UpdatedAt.Add(time.Hour)
	require.NoError(t, store.Update(ctx, sc))
	got, err = store.Get(ctx, "sch-1")
	require.NoError(t, err)
	assert.Equal(t, "Blog Posts", got.Title)

	list, total, err := store.List(ctx, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, list, 1)

	require.NoError(t, store.Delete(ctx, "sch-1"))
	_, err = store.Get(ctx, "sch-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserStoreCRUD(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	store := NewUserStore(db)
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

	u := user.User{
		ID:           "usr-1",
		Email:        "ada@example.com",
		FirstName:    "Ada",
		LastName:     "Lovelace",
		PasswordHash: []byte("$2a$10$fakehash"),
		Roles:        []string{"admin"},
		Scopes:       []string{"internal:schema:read"},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, store.Create(ctx, u))

	// Email is unique.
	dup := u
	dup.ID = "usr-2"
	assert.ErrorIs(t, store.Create(ctx, dup), ErrDuplicate)

	got, err := store.GetByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, "usr-1", got.ID)
	assert.Equal(t, []string{"admin"}, got.Roles)
	assert.Equal(t, []byte("$2a$10$fakehash"), got.PasswordHash)

	got.APIKeys = []string{"hashed-key"}
	got.UpdatedAt = now.Add(time.Hour)
	require.NoError(t, store.Update(ctx, got))

	again, err := store.Get(ctx, "usr-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"hashed-key"}, again.APIKeys)

	_, total, err := store.List(ctx, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	require.NoError(t, store.Delete(ctx, "usr-1"))
	_, err = store.Get(ctx, "usr-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRoleStoreCRUD(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	store := NewRoleStore(db)
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

	r := user.Role{
		Name:      "editor",
		Scopes:    []string{"internal:document:read", "internal:document:update"},
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, store.Create(ctx, r))
	assert.ErrorIs(t, store.Create(ctx, r), ErrDuplicate)

	got, err := store.Get(ctx, "editor")
	require.NoError(t, err)
	assert.Len(t, got.Scopes, 2)

	r.Scopes = append(r.Scopes, "internal:document:create")
	r.UpdatedAt = now.Add(time.Hour)
	require.NoError(t, store.Update(ctx, r))

	roles, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, roles, 1)
	assert.Len(t, roles[0].Scopes, 3)

	require.NoError(t, store.Delete(ctx, "editor"))
	_, err = store.Get(ctx, "editor")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWebhookStoreCRUDAndEnabledFilter(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	store := NewWebhookStore(db)
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

	on := webhook.Webhook{
		ID:        "wh-1",
		Name:      "notify",
		URL:       "https://example.com/hook",
		Method:    "POST",
		Secret:    "whsec_abc",
		Events:    []webhook.EventType{webhook.EventDocumentCreated},
		SchemaIDs: []string{"sch-1"},
		Enabled:   true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	off := on
	off.ID = "wh-2"
	off.Name = "paused"
	off.Enabled = false

	require.NoError(t, store.Create(ctx, on))
	require.NoError(t, store.Create(ctx, off))

	got, err := store.Get(ctx, "wh-1")
	require.NoError(t, err)
	assert.Equal(t, []webhook.EventType{webhook.EventDocumentCreated}, got.Events)
	assert.Equal(t, []string{"sch-1"}, got.SchemaIDs)

	all, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	enabled, err := store.ListEnabled(ctx)
	require.NoError(t, err)
	require.Len(t, enabled, 1)
	assert.Equal(t, "wh-1", enabled[0].ID)

	got.Enabled = false
	got.UpdatedAt = now.Add(time.Hour)
	require.NoError(t, store.Update(ctx, got))
	enabled, err = store.ListEnabled(ctx)
	require.NoError(t, err)
	assert.Empty(t, enabled)

	require.NoError(t, store.Delete(ctx, "wh-1"))
	_, err = store.Get(ctx, "wh-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWebhookCallStoreAppendAndList(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	store := NewWebhookCallStore(db)
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

	for i, status := range []int{200, 500, 0} {
		c := webhook.Call{
			ID:         "call-" + string(rune('a'+i)),
			WebhookID:  "wh-1",
			EventType:  webhook.EventDocumentCreated,
			Request:    `{"id":"evt_1"}`,
			Response:   "ok",
			Status:     status,
			Success:    status >= 200 && status < 300,
			ExecutedAt: now.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, store.Create(ctx, c))
	}

	calls, total, err := store.List(ctx, "wh-1", 1, 20)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, calls, 3)
	// Most recent attempt first.
	assert.Equal(t, "call-c", calls[0].ID)
	assert.False(t, calls[0].Success)
	assert.True(t, calls[2].Success)

	got, err := store.Get(ctx, "call-a")
	require.NoError(t, err)
	assert.Equal(t, webhook.EventDocumentCreated, got.EventType)
	assert.Equal(t, 200, got.Status)

	other, total, err := store.List(ctx, "wh-other", 1, 20)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, other)
}
