package app_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stencilcms/stencil/app"
	"github.com/stencilcms/stencil/domain/document"
	"github.com/stencilcms/stencil/domain/schema"
	"github.com/stencilcms/stencil/domain/webhook"
)

func seedPosts(t *testing.T, fx *fixture) schema.Schema {
	t.Helper()
	sc, err := fx.schemaSvc.Create(context.Background(), "user-1", app.CreateSchemaInput{Title: "Posts"})
	require.NoError(t, err)
	return sc
}

func TestFieldCreateBackfillsDefaultAndSnapshots(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()
	sc := seedPosts(t, fx)

	// Existing document without the upcoming key.
	d, err := fx.docSvc.Create(ctx, "user-1", sc.ID, document.Data{})
	require.NoError(t, err)

	reloadsBefore := *fx.reloads
	f, err := fx.fieldSvc.Create(ctx, "user-1", sc.ID, app.FieldInput{
		Name:     "views",
		Title:    "Views",
		Type:     "number",
		Settings: schema.Settings{"default": float64(10)},
	})
	require.NoError(t, err)
	assert.Equal(t, "views", f.Name)

	got, err := fx.docSvc.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.JSONEq(t, `10`, string(got.Data["views"]))

	// Prior state is in the revision log.
	revs, err := fx.docSvc.Revisions(ctx, d.ID)
	require.NoError(t, err)
	require.Len(t, revs, 1)
	_, had := revs[0].Data["views"]
	assert.False(t, had)

	// Schema definition snapshot exists too.
	schemaRevs, err := fx.schemaSvc.Revisions(ctx, sc.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, schemaRevs)

	assert.Equal(t, reloadsBefore+1, *fx.reloads)

	evs := fx.notifier.Events()
	require.NotEmpty(t, evs)
	assert.Equal(t, webhook.EventFieldCreated, evs[len(evs)-1].Type)
}

func TestFieldCreateTypeDefaultWhenNoExplicitDefault(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()
	sc := seedPosts(t, fx)
	d, err := fx.docSvc.Create(ctx, "user-1", sc.ID, document.Data{})
	require.NoError(t, err)

	_, err = fx.fieldSvc.Create(ctx, "user-1", sc.ID, app.FieldInput{
		Name: "published", Title: "Published", Type: "boolean",
	})
	require.NoError(t, err)

	got, err := fx.docSvc.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, `false`, string(got.Data["published"]))
}

func TestFieldCreateRejectsUnknownTypeAndDuplicateName(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()
	sc := seedPosts(t, fx)

	_, err := fx.fieldSvc.Create(ctx, "user-1", sc.ID, app.FieldInput{
		Name: "title", Title: "Title", Type: "hologram",
	})
	assert.True(t, app.IsValidation(err))

	_, err = fx.fieldSvc.Create(ctx, "user-1", sc.ID, app.FieldInput{
		Name: "title", Title: "Title", Type: "text",
	})
	require.NoError(t, err)

	_, err = fx.fieldSvc.Create(ctx, "user-1", sc.ID, app.FieldInput{
		Name: "title", Title: "Again", Type: "text",
	})
	assert.True(t, app.IsValidation(err))

	_, err = fx.fieldSvc.Create(ctx, "user-1", sc.ID, app.FieldInput{
		Name: "Bad-Name", Title: "Nope", Type: "text",
	})
	assert.True(t, app.IsValidation(err))
}

func TestFieldUpdateRenameMovesDocumentKeys(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()
	sc := seedPosts(t, fx)

	f, err := fx.fieldSvc.Create(ctx, "user-1", sc.ID, app.FieldInput{
		Name: "title", Title: "Title", Type: "text",
	})
	require.NoError(t, err)

	d, err := fx.docSvc.Create(ctx, "user-1", sc.ID, document.Data{
		"title": json.RawMessage(`"hello"`),
	})
	require.NoError(t, err)

	newName := "headline"
	updated, err := fx.fieldSvc.Update(ctx, "user-1", f.ID, schema.FieldUpdate{Name: &newName})
	require.NoError(t, err)
	assert.Equal(t, "headline", updated.Name)

	got, err := fx.docSvc.Get(ctx, d.ID)
	require.NoError(t, err)
	_, hasOld := got.Data["title"]
	assert.False(t, hasOld)
	assert.JSONEq(t, `"hello"`, string(got.Data["headline"]))
}

func TestFieldUpdateRenameToSelfIsError(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()
	sc := seedPosts(t, fx)

	f, err := fx.fieldSvc.Create(ctx, "user-1", sc.ID, app.FieldInput{
		Name: "title", Title: "Title", Type: "text",
	})
	require.NoError(t, err)

	same := "title"
	_, err = fx.fieldSvc.Update(ctx, "user-1", f.ID, schema.FieldUpdate{Name: &same})
	assert.True(t, app.IsValidation(err))
}

func TestFieldUpdateRenameToTakenNameIsError(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()
	sc := seedPosts(t, fx)

	_, err := fx.fieldSvc.Create(ctx, "user-1", sc.ID, app.FieldInput{
		Name: "title", Title: "Title", Type: "text",
	})
	require.NoError(t, err)
	f2, err := fx.fieldSvc.Create(ctx, "user-1", sc.ID, app.FieldInput{
		Name: "subtitle", Title: "Subtitle", Type: "text",
	})
	require.NoError(t, err)

	taken := "title"
	_, err = fx.fieldSvc.Update(ctx, "user-1", f2.ID, schema.FieldUpdate{Name: &taken})
	assert.True(t, app.IsValidation(err))
}

func TestFieldRemoveStripsKeyAndSoftDeletes(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()
	sc := seedPosts(t, fx)

	f, err := fx.fieldSvc.Create(ctx, "user-1", sc.ID, app.FieldInput{
		Name: "draft", Title: "Draft", Type: "boolean",
	})
	require.NoError(t, err)

	d, err := fx.docSvc.Create(ctx, "user-1", sc.ID, document.Data{
		"draft": json.RawMessage(`true`),
	})
	require.NoError(t, err)

	removed, err := fx.fieldSvc.Remove(ctx, "user-1", f.ID)
	require.NoError(t, err)
	assert.True(t, removed)

	got, err := fx.docSvc.Get(ctx, d.ID)
	require.NoError(t, err)
	_, has := got.Data["draft"]
	assert.False(t, has)

	// Soft-deleted, not gone.
	all, err := fx.fieldDefs.FindIncludingDeleted(ctx, sc.ID)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, all[0].IsDeleted())

	// Second removal reports not-found instead of erroring.
	removed, err = fx.fieldSvc.Remove(ctx, "user-1", f.ID)
	require.NoError(t, err)
	assert.False(t, removed)
}
