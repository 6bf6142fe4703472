package middleware

import (
	"context"

	"github.com/lestrrat-go/jwx/v2/jwt"

	"bldgate/pkg/authz"
)

// Principal is the authenticated caller.
type Principal struct {
	Subject string
	Claims  authz.Claims
	Token   jwt.Token // nil for principals injected without a verified token
}

type principalCtxKey struct{}

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalCtxKey{}, p)
}

// PrincipalFrom returns the authenticated principal, if any.
func PrincipalFrom(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalCtxKey{}).(*Principal)
	return p, ok && p != nil
}

// ActorSub returns the subject of the authenticated principal or "".
func ActorSub(ctx context.Context) string {
	if p, ok := PrincipalFrom(ctx); ok {
		return p.Subject
	}
	return ""
}
