package middleware

import (
	"net/http"

	"github.com/go-logr/logr"

	"github.com/terraconstructs/pluggableauth/internal/authz"
	"github.com/terraconstructs/pluggableauth/internal/services/authn"
)

// Actions checked by Authorize.
const (
	ActionRead  = "read"
	ActionWrite = "write"
)

// ActionFor classifies a request method.
func ActionFor(method string) string {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return ActionRead
	default:
		return ActionWrite
	}
}

// Authorize checks the request path against the authorizer. Denied anonymous
// requests are challenged; denied principals get 403.
func Authorize(a *authz.Authorizer, scope authn.Authentication, log logr.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			principal, _ := authn.PrincipalFromContext(ctx)
			action := ActionFor(r.Method)

			allowed, err := a.Authorize(ctx, principal, r.URL.Path, action)
			if err != nil {
				log.Error(err, "authorization failed", "path", r.URL.Path, "action", action)
				http.Error(w, "authorization error", http.StatusInternalServerError)
				return
			}
			if allowed {
				next.ServeHTTP(w, r)
				return
			}
			if principal == nil {
				Challenge(w, r, scope, "")
				return
			}
			log.V(1).Info("access denied", "principal", principal.ID, "path", r.URL.Path, "action", action)
			http.Error(w, "forbidden", http.StatusForbidden)
		})
	}
}
