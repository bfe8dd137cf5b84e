package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-logr/logr"

	"github.com/terraconstructs/pluggableauth/internal/authz"
	pauthmw "github.com/terraconstructs/pluggableauth/internal/middleware"
	"github.com/terraconstructs/pluggableauth/internal/plugins/token"
	"github.com/terraconstructs/pluggableauth/internal/services/authn"
	"github.com/terraconstructs/pluggableauth/internal/services/directory"
	"github.com/terraconstructs/pluggableauth/internal/telemetry"
)

// Scope is the part of the root authentication scope the handlers use.
type Scope interface {
	authn.Authentication
	Prefix() string
	Queriables() []authn.NamedQueriable
}

// RouterOptions controls the construction of the HTTP router. Only Scope is
// required; routes whose collaborator is nil are not mounted.
type RouterOptions struct {
	Scope      Scope
	Tokens     *token.Authenticator
	Directory  *directory.Service
	Authorizer *authz.Authorizer
	Metrics    *telemetry.ServerMetrics
	Logger     logr.Logger

	// TrustProxyHeaders honours X-Forwarded-For/X-Real-IP and
	// X-Forwarded-Proto. Enable it only behind a proxy that sets them.
	TrustProxyHeaders bool

	CORSOptions   *cors.Options
	Middleware    []func(http.Handler) http.Handler
	HealthHandler http.HandlerFunc
}

// DefaultCORSOptions returns a permissive development CORS policy.
func DefaultCORSOptions() cors.Options {
	return cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://127.0.0.1:5173"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		ExposedHeaders:   []string{"WWW-Authenticate", "Location"},
		AllowCredentials: true,
		MaxAge:           300,
	}
}

func defaultHealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// NewRouter assembles a chi.Router with shared middleware, the CORS policy
// and the authentication endpoints.
func NewRouter(opts RouterOptions) chi.Router {
	log := opts.Logger
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	if opts.TrustProxyHeaders {
		r.Use(middleware.RealIP)
		r.Use(pauthmw.TrustProxyHeaders)
	}
	r.Use(middleware.Recoverer)
	if opts.Metrics != nil {
		r.Use(pauthmw.Metrics(opts.Metrics))
	}

	corsCfg := DefaultCORSOptions()
	if opts.CORSOptions != nil {
		corsCfg = *opts.CORSOptions
	}
	r.Use(cors.Handler(corsCfg))

	for _, mw := range opts.Middleware {
		if mw != nil {
			r.Use(mw)
		}
	}

	healthHandler := opts.HealthHandler
	if healthHandler == nil {
		healthHandler = defaultHealthHandler
	}
	r.Get("/healthz", healthHandler)

	scope := opts.Scope
	r.Group(func(r chi.Router) {
		r.Use(pauthmw.Authenticate(scope, log))

		r.Post("/logout", HandleLogout(scope))

		r.Group(func(r chi.Router) {
			r.Use(pauthmw.RequirePrincipal(scope))
			r.Get("/whoami", HandleWhoAmI(log))
			r.Get("/principals/{id}", HandleGetPrincipal(scope, log))
			r.Get("/search", HandleSearch(scope))
			if opts.Tokens != nil {
				r.Post("/token", HandleIssueToken(scope, opts.Tokens, log))
			} else {
				log.Info("token issuing disabled: no jwt authenticator configured")
			}
		})

		if opts.Directory != nil {
			r.Route("/admin", func(r chi.Router) {
				r.Use(pauthmw.RequirePrincipal(scope))
				if opts.Authorizer != nil {
					r.Use(pauthmw.Authorize(opts.Authorizer, scope, log))
				} else {
					log.Info("admin routes are open to every authenticated principal: no authorizer configured")
				}
				MountAdminHandlers(r, opts.Directory, log)
			})
		}
	})

	return r
}
