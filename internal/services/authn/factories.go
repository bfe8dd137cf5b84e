package authn

import "context"

// AuthenticatedPrincipalFactory builds a principal from verified information.
type AuthenticatedPrincipalFactory func(ctx context.Context, info *PrincipalInfo, req Request, scope Scope) *Principal

// FoundPrincipalFactory builds a principal from looked-up information.
type FoundPrincipalFactory func(ctx context.Context, info *PrincipalInfo, scope Scope) *Principal

func newScopedPrincipal(info *PrincipalInfo, scope Scope) *Principal {
	p := NewPrincipal(scope.Prefix()+info.ID, info.Title, info.Description)
	p.SetSource(scope)
	return p
}

// NewAuthenticatedPrincipal is the default AuthenticatedPrincipalFactory.
func NewAuthenticatedPrincipal(ctx context.Context, info *PrincipalInfo, req Request, scope Scope) *Principal {
	p := newScopedPrincipal(info, scope)
	scope.Events().Notify(ctx, AuthenticatedPrincipalCreated{
		Authentication: scope,
		Principal:      p,
		Info:           info,
		Request:        req,
	})
	return p
}

// NewFoundPrincipal is the default FoundPrincipalFactory.
func NewFoundPrincipal(ctx context.Context, info *PrincipalInfo, scope Scope) *Principal {
	p := newScopedPrincipal(info, scope)
	scope.Events().Notify(ctx, FoundPrincipalCreated{
		Authentication: scope,
		Principal:      p,
		Info:           info,
	})
	return p
}
