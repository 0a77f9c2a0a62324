package bootstrap

import (
	"context"
	"errors"

	"github.com/stencilcms/stencil/app"
	"github.com/stencilcms/stencil/config"
	"github.com/stencilcms/stencil/domain/access"
	"github.com/stencilcms/stencil/domain/user"
)

// ensureAdmin creates the configured admin account on first run. An
// existing account with the same email is left untouched, so restarts
// and password rotations in the store win over the config file.
func (a *App) ensureAdmin(ctx context.Context, cfg config.Config) error {
	if cfg.Admin.Email == "" {
		return nil
	}

	_, err := a.Users.GetByEmail(ctx, cfg.Admin.Email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, app.ErrNotFound) {
		return err
	}

	u, err := a.Users.Create(ctx, user.CreateRequest{
		Email:     cfg.Admin.Email,
		FirstName: "Admin",
		Password:  cfg.Admin.Password,
		Scopes:    access.AdminScopes(),
	})
	if err != nil {
		return err
	}

	a.Logger.Info().Str("user_id", u.ID).Str("email", u.Email).Msg("admin account bootstrapped")
	return nil
}
