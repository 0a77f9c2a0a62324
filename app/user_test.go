package app_test

import (
	"context"
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
	"github.com/stencilcms/stencil/domain/user"
)

func newUserService(t *testing.T) (*app.UserService, *email.MockSender, *recordingNotifier) {
	t.Helper()
	mail := email.NewMockSender()
	notifier := &recordingNotifier{}
	svc := app.NewUserService(
		memory.NewUserStore(),
		memory.NewRoleStore(),
		hasher.Fake{},
		auth.NewTokenService("test-secret"),
		mail,
		notifier,
		clock.NewFake(time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)),
		idgen.NewSequential("usr-"),
		zerolog.Nop(),
	)
	return svc, mail, notifier
}

func validCreate() user.CreateRequest {
	return user.CreateRequest{
		Email:     "ada@example.com",
		FirstName: "Ada",
		LastName:  "Lovelace",
		Password:  "Sup3rSecret",
		Roles:     []string{"admin"},
	}
}

func TestUserCreateSendsWelcomeMail(t *testing.T) {
	svc, mail, notifier := newUserService(t)
	ctx := context.Background()

	u, err := svc.Create(ctx, validCreate())
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", u.Email)
	assert.NotEmpty(t, u.PasswordHash)

	// Mail goes out fire-and-forget.
	require.Eventually(t, func() bool {
		return len(mail.Sent()) == 1
	}, time.Second, 10*time.Millisecond)

	assert.NotEmpty(t, notifier.Events())
}

func TestUserCreateDuplicateEmailConflicts(t *testing.T) {
	svc, _, _ := newUserService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, validCreate())
	require.NoError(t, err)
	_, err = svc.Create(ctx, validCreate())
	assert.ErrorIs(t, err, app.ErrConflict)
}

func TestUserCreateValidation(t *testing.T) {
	svc, _, _ := newUserService(t)
	ctx := context.Background()

	req := validCreate()
	req.Password = "weak"
	_, err := svc.Create(ctx, req)
	assert.True(t, app.IsValidation(err))

	req = validCreate()
	req.Email = "not-an-email"
	_, err = svc.Create(ctx, req)
	assert.True(t, app.IsValidation(err))
}

func TestUserLoginIssuesVerifiableToken(t *testing.T) {
	svc, _, _ := newUserService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, validCreate())
	require.NoError(t, err)

	token, u, err := svc.Login(ctx, "ada@example.com", "Sup3rSecret")
	require.NoError(t, err)
	assert.Equal(t, created.ID, u.ID)

	resolved, err := svc.VerifyToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, created.ID, resolved.ID)

	_, _, err = svc.Login(ctx, "ada@example.com", "wrong")
	assert.ErrorIs(t, err, app.ErrInvalidCredentials)
	_, _, err = svc.Login(ctx, "ghost@example.com", "Sup3rSecret")
	assert.ErrorIs(t, err, app.ErrInvalidCredentials)
}

func TestUserEffectiveScopesUnionRoles(t *testing.T) {
	svc, _, _ := newUserService(t)
	ctx := context.Background()

	_, err := svc.CreateRole(ctx, "admin", []string{"internal:schema:create", "internal:schema:read"})
	require.NoError(t, err)

	req := validCreate()
	req.Scopes = []string{"internal:document:read"}
	u, err := svc.Create(ctx, req)
	require.NoError(t, err)

	scopes, err := svc.EffectiveScopes(ctx, u)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"internal:document:read",
		"internal:schema:create",
		"internal:schema:read",
	}, scopes)
}

func TestUserAPIKeyLifecycle(t *testing.T) {
	svc, _, _ := newUserService(t)
	ctx := context.Background()

	u, err := svc.Create(ctx, validCreate())
	require.NoError(t, err)

	raw, err := svc.CreateAPIKey(ctx, u.ID)
	require.NoError(t, err)
	assert.Contains(t, raw, "sk_")

	resolved, err := svc.AuthenticateAPIKey(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, u.ID, resolved.ID)

	_, err = svc.AuthenticateAPIKey(ctx, "sk_bogus")
	assert.ErrorIs(t, err, app.ErrInvalidCredentials)

	revoked, err := svc.RevokeAPIKey(ctx, u.ID, 0)
	require.NoError(t, err)
	assert.True(t, revoked)

	_, err = svc.AuthenticateAPIKey(ctx, raw)
	assert.ErrorIs(t, err, app.ErrInvalidCredentials)

	revoked, err = svc.RevokeAPIKey(ctx, u.ID, 5)
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestUserRemoveReturnsFalseWhenMissing(t *testing.T) {
	svc, _, _ := newUserService(t)
	ctx := context.Background()

	u, err := svc.Create(ctx, validCreate())
	require.NoError(t, err)

	removed, err := svc.Remove(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = svc.Remove(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, removed)
}
