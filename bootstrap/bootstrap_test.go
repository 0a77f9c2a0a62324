package bootstrap

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stencilcms/stencil/config"
	"github.com/stencilcms/stencil/domain/access"
)

const testConfig = `
server:
  host: "127.0.0.1"
  port: 8080
database:
  driver: "memory"
auth:
  jwt_secret: "bootstrap-test-secret"
admin:
  email: "root@example.com"
  password: "Sup3rSecret"
email:
  provider: "mock"
logging:
  level: "error"
`

func newTestApp(t *testing.T) *App {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stencil.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testConfig), 0o600))

	holder, err := config.NewHolder(path, zerolog.Nop())
	require.NoError(t, err)

	a, err := New(holder)
	require.NoError(t, err)
	t.Cleanup(func() { a.Shutdown() })
	return a
}

func TestNewWiresServices(t *testing.T) {
	a := newTestApp(t)

	require.NotNil(t, a.Schemas)
	require.NotNil(t, a.Fields)
	require.NotNil(t, a.Documents)
	require.NotNil(t, a.Users)
	require.NotNil(t, a.Webhooks)
	require.NotNil(t, a.HTTPServer)
	assert.Nil(t, a.DB, "memory driver should not open sqlite")
	assert.Equal(t, "127.0.0.1:8080", a.HTTPServer.Addr)
}

func TestAdminBootstrapped(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()

	u, err := a.Users.GetByEmail(ctx, "root@example.com")
	require.NoError(t, err)

	for _, scope := range access.AdminScopes() {
		assert.Contains(t, u.Scopes, scope)
	}
}

func TestEnsureAdminIdempotent(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()

	cfg := *a.Config.Get()
	require.NoError(t, a.ensureAdmin(ctx, cfg))
	require.NoError(t, a.ensureAdmin(ctx, cfg))

	users, _, err := a.Users.List(ctx, 1, 10)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestAdminCanLogin(t *testing.T) {
	a := newTestApp(t)

	body, _ := json.Marshal(map[string]string{
		"email":    "root@example.com",
		"password": "Sup3rSecret",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/login", bytes.NewReader(body))
	w := httptest.NewRecorder()
	a.HTTPServer.Handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestHealthEndpoint(t *testing.T) {
	a := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	a.HTTPServer.Handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}
