package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stencilcms/stencil/adapters/auth"
	"github.com/stencilcms/stencil/adapters/clock"
	"github.com/stencilcms/stencil/adapters/email"
	"github.com/stencilcms/stencil/adapters/hasher"
	"github.com/stencilcms/stencil/adapters/idgen"
	"github.com/stencilcms/stencil/adapters/memory"
	"github.com/stencilcms/stencil/app"
	"github.com/stencilcms/stencil/core/events"
	"github.com/stencilcms/stencil/domain/document"
	"github.com/stencilcms/stencil/domain/user"
	"github.com/stencilcms/stencil/domain/webhook"
	"github.com/stencilcms/stencil/fields"
	"github.com/stencilcms/stencil/web"
)

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, webhook.Event) {}

// testServer wires the full stack over the in-memory adapters: stores,
// services, bus, and the HTTP router.
type testServer struct {
	router    http.Handler
	users     *app.UserService
	schemas   *app.SchemaService
	documents *app.DocumentService
	webhooks  *app.WebhookService
	bus       *events.Bus
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := zerolog.Nop()
	fake := clock.NewFake(time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC))
	ids := idgen.NewSequential("id-")

	fieldDefs := memory.NewFieldStore()
	schemas := memory.NewSchemaStore(fieldDefs)
	documents := memory.NewDocumentStore()
	revisions := memory.NewRevisionStore()
	lifecycle := memory.NewFieldLifecycle(fieldDefs, documents, revisions, fake, idgen.NewSequential("rev-"))
	bus := events.NewBus(logger)
	registry := fields.Builtin()
	notifier := nopNotifier{}

	webhookStore := memory.NewWebhookStore()
	callStore := memory.NewWebhookCallStore()
	webhookSvc := app.NewWebhookService(webhookStore, callStore, fake, idgen.NewSequential("call-"), logger)
	t.Cleanup(webhookSvc.Shutdown)

	schemaSvc := app.NewSchemaService(schemas, fieldDefs, documents, revisions, lifecycle, bus, notifier, fake, ids, logger)
	fieldSvc := app.NewFieldService(schemas, fieldDefs, lifecycle, registry, bus, notifier, fake, ids, logger)
	docSvc := app.NewDocumentService(documents, schemas, revisions, registry, notifier, fake, ids, logger)
	userSvc := app.NewUserService(
		memory.NewUserStore(),
		memory.NewRoleStore(),
		hasher.Fake{},
		auth.NewTokenService("web-test-secret"),
		email.NewMockSender(),
		notifier,
		fake,
		idgen.NewSequential("usr-"),
		logger,
	)

	h, err := web.NewHandler(web.Deps{
		Schemas:   schemaSvc,
		Fields:    fieldSvc,
		Documents: docSvc,
		Users:     userSvc,
		Webhooks:  webhookSvc,
		Bus:       bus,
		Logger:    logger,
	})
	require.NoError(t, err)

	return &testServer{
		router:    h.Router(),
		users:     userSvc,
		schemas:   schemaSvc,
		documents: docSvc,
		webhooks:  webhookSvc,
		bus:       bus,
	}
}

// token creates a user holding the given scopes and returns a session
// token for it.
func (ts *testServer) token(t *testing.T, emailAddr string, scopes []string) string {
	t.Helper()
	_, err := ts.users.Create(context.Background(), user.CreateRequest{
		Email:     emailAddr,
		FirstName: "Test",
		LastName:  "User",
		Password:  "Sup3rSecret",
		Scopes:    scopes,
	})
	require.NoError(t, err)

	token, _, err := ts.users.Login(context.Background(), emailAddr, "Sup3rSecret")
	require.NoError(t, err)
	return token
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func decodeDoc(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var doc map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc), "body: %s", w.Body.String())
	return doc
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	doc := decodeDoc(t, w)
	meta := doc["meta"].(map[string]any)
	assert.Equal(t, "ok", meta["status"])
}

func TestAdminAPIRequiresAuthentication(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/api/v1/schemas", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLoginIssuesToken(t *testing.T) {
	ts := newTestServer(t)
	ts.token(t, "ada@example.com", nil) // registers the account

	w := ts.do(t, http.MethodPost, "/api/v1/login", "", map[string]string{
		"email":    "ada@example.com",
		"password": "Sup3rSecret",
	})
	require.Equal(t, http.StatusOK, w.Code)

	doc := decodeDoc(t, w)
	res := doc["data"].(map[string]any)
	assert.NotEmpty(t, res["meta"].(map[string]any)["token"])
	attrs := res["attributes"].(map[string]any)
	assert.Equal(t, "ada@example.com", attrs["email"])
	assert.NotContains(t, attrs, "passwordHash")
}

func TestLoginBadPassword(t *testing.T) {
	ts := newTestServer(t)
	ts.token(t, "ada@example.com", nil)

	w := ts.do(t, http.MethodPost, "/api/v1/login", "", map[string]string{
		"email":    "ada@example.com",
		"password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMeReportsEffectiveScopes(t *testing.T) {
	ts := newTestServer(t)
	token := ts.token(t, "ada@example.com", []string{"internal:schema:read"})

	w := ts.do(t, http.MethodGet, "/api/v1/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	doc := decodeDoc(t, w)
	res := doc["data"].(map[string]any)
	scopes := res["meta"].(map[string]any)["effectiveScopes"].([]any)
	assert.Contains(t, scopes, "internal:schema:read")
}

func TestMissingScopeIsForbidden(t *testing.T) {
	ts := newTestServer(t)
	token := ts.token(t, "noscopes@example.com", nil)

	w := ts.do(t, http.MethodGet, "/api/v1/schemas", token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestSchemaLifecycleOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	token := ts.token(t, "admin@example.com", []string{
		"internal:schema:create",
		"internal:schema:read",
		"internal:schema:update",
		"internal:schema:delete",
	})

	w := ts.do(t, http.MethodPost, "/api/v1/schemas", token, map[string]any{
		"title": "Blog Posts",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	require.NotEmpty(t, w.Header().Get("Location"))

	created := decodeDoc(t, w)["data"].(map[string]any)
	id := created["id"].(string)
	attrs := created["attributes"].(map[string]any)
	assert.Equal(t, "blog-posts", attrs["name"])

	w = ts.do(t, http.MethodGet, "/api/v1/schemas", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decodeDoc(t, w)
	assert.Len(t, list["data"].([]any), 1)

	w = ts.do(t, http.MethodPatch, "/api/v1/schemas/"+id, token, map[string]any{
		"title": "Articles",
	})
	require.Equal(t, http.StatusOK, w.Code)
	updated := decodeDoc(t, w)["data"].(map[string]any)
	assert.Equal(t, "Articles", updated["attributes"].(map[string]any)["title"])

	w = ts.do(t, http.MethodDelete, "/api/v1/schemas/"+id, token, nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = ts.do(t, http.MethodGet, "/api/v1/schemas/"+id, token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSchemaCreateValidation(t *testing.T) {
	ts := newTestServer(t)
	token := ts.token(t, "admin@example.com", []string{"internal:schema:create"})

	w := ts.do(t, http.MethodPost, "/api/v1/schemas", token, map[string]any{
		"title": "",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	doc := decodeDoc(t, w)
	errs := doc["errors"].([]any)
	require.NotEmpty(t, errs)
	first := errs[0].(map[string]any)
	assert.Equal(t, "validation_error", first["code"])
}

func TestUnknownBodyFieldRejected(t *testing.T) {
	ts := newTestServer(t)
	token := ts.token(t, "admin@example.com", []string{"internal:schema:create"})

	w := ts.do(t, http.MethodPost, "/api/v1/schemas", token, map[string]any{
		"title": "Posts",
		"tite":  "typo",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDerivedScopeNarrowsToOneSchema(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	posts, err := ts.schemas.Create(ctx, "usr-0", app.CreateSchemaInput{Title: "Posts"})
	require.NoError(t, err)
	pages, err := ts.schemas.Create(ctx, "usr-0", app.CreateSchemaInput{Title: "Pages"})
	require.NoError(t, err)

	token := ts.token(t, "narrow@example.com", []string{
		"internal:document:read:" + posts.ID,
	})

	w := ts.do(t, http.MethodGet, "/api/v1/schemas/"+posts.ID+"/documents", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodGet, "/api/v1/schemas/"+pages.ID+"/documents", token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAPIKeyAuthentication(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	u, err := ts.users.Create(ctx, user.CreateRequest{
		Email:     "keyed@example.com",
		FirstName: "Key",
		LastName:  "Holder",
		Password:  "Sup3rSecret",
		Scopes:    []string{"internal:schema:read"},
	})
	require.NoError(t, err)
	raw, err := ts.users.CreateAPIKey(ctx, u.ID)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/schemas", nil)
	req.Header.Set("X-API-Key", raw)
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/schemas", nil)
	req.Header.Set("X-API-Key", "not-a-key")
	w = httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestDocumentPaginationMeta(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	sc, err := ts.schemas.Create(ctx, "usr-0", app.CreateSchemaInput{Title: "Posts"})
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err := ts.documents.Create(ctx, "usr-0", sc.ID, document.Data{})
		require.NoError(t, err)
	}

	token := ts.token(t, "reader@example.com", []string{"internal:document:read"})

	w := ts.do(t, http.MethodGet, "/api/v1/schemas/"+sc.ID+"/documents?page=1&per_page=2", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	doc := decodeDoc(t, w)
	assert.Len(t, doc["data"].([]any), 2)
	meta := doc["meta"].(map[string]any)
	assert.Equal(t, float64(5), meta["total"])
	assert.Equal(t, float64(3), meta["pages"])
	links := doc["links"].(map[string]any)
	assert.NotEmpty(t, links["next"])
}

func TestContentRouterServesCreatedSchema(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	token := ts.token(t, "writer@example.com", []string{
		"internal:document:create",
		"internal:document:read",
	})

	// No schema yet: the name does not route.
	w := ts.do(t, http.MethodGet, "/content/posts", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Creating the schema emits reload; the route table rebuilds
	// before the next request.
	_, err := ts.schemas.Create(ctx, "usr-0", app.CreateSchemaInput{Name: "posts", Title: "Posts"})
	require.NoError(t, err)

	w = ts.do(t, http.MethodPost, "/content/posts", token, map[string]any{})
	require.Equal(t, http.StatusCreated, w.Code)
	created := decodeDoc(t, w)["data"].(map[string]any)
	docID := created["id"].(string)

	w = ts.do(t, http.MethodGet, "/content/posts", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeDoc(t, w)["data"].([]any), 1)

	w = ts.do(t, http.MethodGet, "/content/posts/"+docID, token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestContentRouterScopeGuard(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	posts, err := ts.schemas.Create(ctx, "usr-0", app.CreateSchemaInput{Name: "posts", Title: "Posts"})
	require.NoError(t, err)
	_, err = ts.schemas.Create(ctx, "usr-0", app.CreateSchemaInput{Name: "pages", Title: "Pages"})
	require.NoError(t, err)

	token := ts.token(t, "narrow@example.com", []string{
		"internal:document:read:" + posts.ID,
	})

	w := ts.do(t, http.MethodGet, "/content/posts", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodGet, "/content/pages", token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestContentRouterDropsRemovedSchema(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	sc, err := ts.schemas.Create(ctx, "usr-0", app.CreateSchemaInput{Name: "posts", Title: "Posts"})
	require.NoError(t, err)
	token := ts.token(t, "reader@example.com", []string{"internal:document:read"})

	w := ts.do(t, http.MethodGet, "/content/posts", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	removed, err := ts.schemas.Remove(ctx, "usr-0", sc.ID, false)
	require.NoError(t, err)
	require.True(t, removed)

	w = ts.do(t, http.MethodGet, "/content/posts", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestContentDocumentFromWrongSchemaIs404(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	posts, err := ts.schemas.Create(ctx, "usr-0", app.CreateSchemaInput{Name: "posts", Title: "Posts"})
	require.NoError(t, err)
	_, err = ts.schemas.Create(ctx, "usr-0", app.CreateSchemaInput{Name: "pages", Title: "Pages"})
	require.NoError(t, err)

	d, err := ts.documents.Create(ctx, "usr-0", posts.ID, document.Data{})
	require.NoError(t, err)

	token := ts.token(t, "reader@example.com", []string{"internal:document:read"})

	w := ts.do(t, http.MethodGet, "/content/pages/"+d.ID, token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestWebhookLifecycleOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	token := ts.token(t, "hooks@example.com", []string{
		"internal:webhook:create",
		"internal:webhook:read",
		"internal:webhook:update",
		"internal:webhook:delete",
		"internal:webhook_call:read",
	})

	w := ts.do(t, http.MethodPost, "/api/v1/webhooks", token, map[string]any{
		"name":    "notify",
		"url":     "https://example.com/hook",
		"events":  []string{"document.created"},
		"enabled": true,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	created := decodeDoc(t, w)["data"].(map[string]any)
	id := created["id"].(string)
	assert.NotEmpty(t, created["attributes"].(map[string]any)["secret"])

	w = ts.do(t, http.MethodPatch, "/api/v1/webhooks/"+id, token, map[string]any{
		"enabled": false,
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false,
		decodeDoc(t, w)["data"].(map[string]any)["attributes"].(map[string]any)["enabled"])

	w = ts.do(t, http.MethodGet, "/api/v1/webhooks/"+id+"/calls", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decodeDoc(t, w)["data"])

	w = ts.do(t, http.MethodDelete, "/api/v1/webhooks/"+id, token, nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = ts.do(t, http.MethodGet, "/api/v1/webhooks/"+id, token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRoleGrantsScopesThroughMembership(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	_, err := ts.users.CreateRole(ctx, "editor", []string{"internal:schema:read"})
	require.NoError(t, err)

	_, err = ts.users.Create(ctx, user.CreateRequest{
		Email:     "editor@example.com",
		FirstName: "Ed",
		LastName:  "Itor",
		Password:  "Sup3rSecret",
		Roles:     []string{"editor"},
	})
	require.NoError(t, err)
	token, _, err := ts.users.Login(ctx, "editor@example.com", "Sup3rSecret")
	require.NoError(t, err)

	w := ts.do(t, http.MethodGet, "/api/v1/schemas", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSchemaShapeEndpoint(t *testing.T) {
	ts := newTestServer(t)
	token := ts.token(t, "admin@example.com", []string{
		"internal:schema:create",
		"internal:schema:read",
		"internal:field:create",
	})

	w := ts.do(t, http.MethodPost, "/api/v1/schemas", token, map[string]any{
		"title": "Posts",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	schemaID := decodeDoc(t, w)["data"].(map[string]any)["id"].(string)

	w = ts.do(t, http.MethodPost, "/api/v1/schemas/"+schemaID+"/fields", token, map[string]any{
		"name":  "title",
		"title": "Title",
		"type":  "text",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = ts.do(t, http.MethodGet, "/api/v1/schemas/"+schemaID+"/shape", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	attrs := decodeDoc(t, w)["data"].(map[string]any)["attributes"].(map[string]any)
	input := attrs["input"].(map[string]any)
	title := input["title"].(map[string]any)
	assert.Equal(t, "string", title["kind"])
	assert.Contains(t, attrs, "output")
	assert.Contains(t, attrs, "where")
}

func TestDocumentFilterFieldNameRejected(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	sc, err := ts.schemas.Create(ctx, "usr-0", app.CreateSchemaInput{Name: "posts", Title: "Posts"})
	require.NoError(t, err)
	token := ts.token(t, "reader@example.com", []string{"internal:document:read"})

	// A quote in the field name would otherwise reach the JSON path
	// the store builds and surface as a 500.
	w := ts.do(t, http.MethodGet,
		"/api/v1/schemas/"+sc.ID+"/documents?filter%5Btitle%22%5D=x", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodGet, "/content/posts?filter%5Bbad-name%5D=x", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Well-formed names still filter.
	w = ts.do(t, http.MethodGet, "/content/posts?filter%5Btitle%5D=x", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestContentRouterRebuildPagesThroughCatalog(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	// More schemas than one catalog page holds; the rebuild has to
	// walk every page before it swaps the route table in.
	for i := 0; i < 101; i++ {
		_, err := ts.schemas.Create(ctx, "usr-0", app.CreateSchemaInput{
			Name:  fmt.Sprintf("topic-%03d", i),
			Title: fmt.Sprintf("Topic %d", i),
		})
		require.NoError(t, err)
	}

	token := ts.token(t, "reader@example.com", []string{"internal:document:read"})

	w := ts.do(t, http.MethodGet, "/content/topic-000", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodGet, "/content/topic-100", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
