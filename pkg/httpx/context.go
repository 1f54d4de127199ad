package httpx

import "context"

type ctxKey string

const ctxKeyPrincipal ctxKey = "principal"

// Principal is the authenticated caller extracted from a bearer token.
type Principal struct {
	UserID   int64
	Username string
	Role     string
	TokenID  string
}

func contextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKeyPrincipal, p)
}

// PrincipalFromContext returns the principal set by AuthnMiddleware.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxKeyPrincipal).(Principal)
	return p, ok
}
