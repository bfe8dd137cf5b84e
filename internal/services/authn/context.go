package authn

import "context"

type contextKey int

const (
	principalKey contextKey = iota
	trustedProxyKey
)

// WithPrincipal returns a context carrying p.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// WithTrustedProxy marks ctx as belonging to a request forwarded by a trusted
// proxy, whose X-Forwarded-Proto header is then honoured.
func WithTrustedProxy(ctx context.Context) context.Context {
	return context.WithValue(ctx, trustedProxyKey, true)
}

func fromTrustedProxy(ctx context.Context) bool {
	trusted, _ := ctx.Value(trustedProxyKey).(bool)
	return trusted
}

// PrincipalFromContext returns the principal stored by WithPrincipal.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey).(*Principal)
	return p, ok && p != nil
}
