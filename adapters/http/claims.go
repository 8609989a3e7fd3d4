package authhttp

import (
	"context"

	"github.com/open-rails/castingkit/core"
)

type claimsCtxKey struct{}

func setClaims(ctx context.Context, cl core.Claims) context.Context {
	return context.WithValue(ctx, claimsCtxKey{}, cl)
}

// ClaimsFromContext returns the verified claims attached by Gate.Required.
func ClaimsFromContext(ctx context.Context) (core.Claims, bool) {
	cl, ok := ctx.Value(claimsCtxKey{}).(core.Claims)
	return cl, ok
}
