package web

import (
	"context"

	"github.com/stencilcms/stencil/domain/access"
)

type ctxKey string

const principalKey ctxKey = "principal"

// withPrincipal adds the resolved principal to the context.
func withPrincipal(ctx context.Context, p access.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// principalFrom retrieves the principal from context.
func principalFrom(ctx context.Context) (access.Principal, bool) {
	p, ok := ctx.Value(principalKey).(access.Principal)
	return p, ok
}
