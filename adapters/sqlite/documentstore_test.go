package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stencilcms/stencil/domain/document"
	"github.com/stencilcms/stencil/ports"
)

func TestDocumentStoreRoundTripPreservesRawJSON(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedSchema(t, db, "sch-1", "posts")

	data := rawData(t, map[string]string{
		"title":     `"Hello"`,
		"published": `false`,
		"rating":    `4.5`,
		"tags":      `["a","b"]`,
		"empty":     `null`,
	})
	seedDocument(t, db, "doc-1", "sch-1", data)

	got, err := NewDocumentStore(db).Get(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, `false`, string(got.Data["published"]))
	assert.Equal(t, `null`, string(got.Data["empty"]))
	assert.JSONEq(t, `["a","b"]`, string(got.Data["tags"]))
	assert.Equal(t, "user-1", got.UserID)
}

func TestDocumentStoreGetNotFound(t *testing.T) {
	db := newTestDB(t)
	_, err := NewDocumentStore(db).Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDocumentStoreFindFiltersAndPaginates(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedSchema(t, db, "sch-1", "posts")
	store := NewDocumentStore(db)

	base := time.Date(2026, 1, 11, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 45; i++ {
		published := "false"
		if i%3 == 0 {
			published = "true"
		}
		d := document.Document{
			ID:       fmt.Sprintf("doc-%02d", i),
			SchemaID: "sch-1",
			Data: rawData(t, map[string]string{
				"title":     fmt.Sprintf(`"post %d"`, i),
				"published": published,
			}),
			UserID:    "user-1",
			CreatedAt: base,
			UpdatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, store.Create(ctx, d))
	}

	// 45 items / 20 per page: page 3 holds the last 5 and has no successor.
	docs, total, err := store.Find(ctx, ports.DocumentQuery{SchemaID: "sch-1", Page: 3, PerPage: 20})
	require.NoError(t, err)
	assert.Equal(t, 45, total)
	assert.Len(t, docs, 5)
	p := document.Page{TotalItems: total, CurrentPage: 3, PerPage: 20}
	assert.Equal(t, 3, p.TotalPages())
	assert.False(t, p.HasNextPage())

	// Newest update first.
	first, _, err := store.Find(ctx, ports.DocumentQuery{SchemaID: "sch-1", Page: 1, PerPage: 1})
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, "doc-44", first[0].ID)

	// Equality filter on a boolean field value.
	published, total, err := store.Find(ctx, ports.DocumentQuery{
		SchemaID: "sch-1",
		Filters:  []ports.DocumentFilter{{Field: "published", Value: json.RawMessage(`true`)}},
		Page:     1,
		PerPage:  100,
	})
	require.NoError(t, err)
	assert.Equal(t, 15, total)
	assert.Len(t, published, 15)
}

func TestDocumentStoreSearch(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedSchema(t, db, "sch-1", "posts")
	seedSchema(t, db, "sch-2", "pages")
	seedDocument(t, db, "doc-1", "sch-1", rawData(t, map[string]string{"title": `"golang tips"`}))
	seedDocument(t, db, "doc-2", "sch-1", rawData(t, map[string]string{"title": `"cooking"`}))
	seedDocument(t, db, "doc-3", "sch-2", rawData(t, map[string]string{"title": `"golang news"`}))

	store := NewDocumentStore(db)

	all, total, err := store.Search(ctx, "golang", "", 1, 20)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, all, 2)

	scoped, total, err := store.Search(ctx, "golang", "sch-1", 1, 20)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, scoped, 1)
	assert.Equal(t, "doc-1", scoped[0].ID)

	// LIKE metacharacters in the term are literal.
	none, total, err := store.Search(ctx, "100%", "", 1, 20)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, none)
}

func TestDocumentStoreUpdateAndDelete(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedSchema(t, db, "sch-1", "posts")
	d := seedDocument(t, db, "doc-1", "sch-1", rawData(t, map[string]string{"title": `"v1"`}))
	store := NewDocumentStore(db)

	d.Data = rawData(t, map[string]string{"title": `"v2"`})
	d.UserID = "user-2"
	d.UpdatedAt = d.UpdatedAt.Add(time.Hour)
	require.NoError(t, store.Update(ctx, d))

	got, err := store.Get(ctx, "doc-1")
	require.NoError(t, err)
	assert.JSONEq(t, `"v2"`, string(got.Data["title"]))
	assert.Equal(t, "user-2", got.UserID)

	require.NoError(t, store.Delete(ctx, "doc-1"))
	_, err = store.Get(ctx, "doc-1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.Delete(ctx, "doc-1"), ErrNotFound)
}

func TestDocumentStoreListIDsBySchema(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedSchema(t, db, "sch-1", "posts")
	seedSchema(t, db, "sch-2", "pages")
	seedDocument(t, db, "doc-1", "sch-1", document.Data{})
	seedDocument(t, db, "doc-2", "sch-1", document.Data{})
	seedDocument(t, db, "doc-3", "sch-2", document.Data{})

	ids, err := NewDocumentStore(db).ListIDsBySchema(ctx, "sch-1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"doc-1", "doc-2"}, ids)
}
