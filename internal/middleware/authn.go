// Package middleware holds the chi middleware that puts the pluggable
// authentication scope in front of HTTP handlers.
package middleware

import (
	"net/http"

	"github.com/go-logr/logr"

	"github.com/terraconstructs/pluggableauth/internal/services/authn"
)

// Authenticate runs scope over every request. An authenticated principal is
// stored in the request context; anonymous requests pass through unchanged
// and are left to RequirePrincipal or Authorize.
func Authenticate(scope authn.Authentication, log logr.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			principal, err := scope.Authenticate(ctx, authn.NewHTTPRequest(w, r))
			if err != nil {
				log.Error(err, "authentication failed", "method", r.Method, "path", r.URL.Path)
				http.Error(w, "authentication error", http.StatusInternalServerError)
				return
			}
			if principal != nil {
				ctx = authn.WithPrincipal(ctx, principal)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// TrustProxyHeaders marks requests as forwarded by a trusted proxy, so that
// their X-Forwarded-Proto header decides the scheme of generated URLs.
func TrustProxyHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(authn.WithTrustedProxy(r.Context())))
	})
}

// RequirePrincipal rejects anonymous requests with the scope's challenge.
func RequirePrincipal(scope authn.Authentication) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := authn.PrincipalFromContext(r.Context()); !ok {
				Challenge(w, r, scope, "")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Challenge asks scope to challenge the client and writes the status the
// acting plugin chose: 401 when none chose one, or the redirect of a login
// form.
func Challenge(w http.ResponseWriter, r *http.Request, scope authn.Authentication, id string) {
	req := authn.NewHTTPRequest(w, r)
	scope.Unauthorized(r.Context(), id, req)

	status := req.Status()
	if status == 0 {
		status = http.StatusUnauthorized
	}
	if status == http.StatusFound {
		w.WriteHeader(status)
		return
	}
	http.Error(w, http.StatusText(status), status)
}
