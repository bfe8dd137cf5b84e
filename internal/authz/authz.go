// Package authz decides whether a principal may perform an action on an
// object. Grants name a principal or group id; a principal is allowed when
// its own id or any group in its transitive closure holds a matching grant.
package authz

import (
	"context"
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/casbin/casbin/v2/persist"
	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel/attribute"

	"github.com/terraconstructs/pluggableauth/internal/services/authn"
	"github.com/terraconstructs/pluggableauth/internal/telemetry"
)

const tracerName = "pauth/authz"

// Objects are matched with keyMatch2 ("/principals/:id", "/admin/*");
// the action "*" grants every action.
const modelText = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = r.sub == p.sub && keyMatch2(r.obj, p.obj) && (r.act == p.act || p.act == "*")
`

// Grant allows Subject to perform Action on Object.
type Grant struct {
	Subject string
	Object  string
	Action  string
}

// Authorizer checks grants against a principal and its groups.
type Authorizer struct {
	enforcer  *casbin.SyncedEnforcer
	anonymous string
	log       logr.Logger
}

type Option func(*Authorizer)

// WithAnonymousSubject checks requests without a principal as subject,
// typically the everyone group.
func WithAnonymousSubject(subject string) Option {
	return func(a *Authorizer) { a.anonymous = subject }
}

func WithLogger(l logr.Logger) Option {
	return func(a *Authorizer) { a.log = l }
}

// New builds an authorizer. adapter may be nil to keep grants in memory only.
func New(adapter persist.Adapter, opts ...Option) (*Authorizer, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, fmt.Errorf("parse casbin model: %w", err)
	}

	var enforcer *casbin.SyncedEnforcer
	if adapter != nil {
		enforcer, err = casbin.NewSyncedEnforcer(m, adapter)
	} else {
		enforcer, err = casbin.NewSyncedEnforcer(m)
	}
	if err != nil {
		return nil, fmt.Errorf("create casbin enforcer: %w", err)
	}

	a := &Authorizer{enforcer: enforcer, log: logr.Discard()}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Grant adds g. Granting twice is not an error.
func (a *Authorizer) Grant(g Grant) error {
	if _, err := a.enforcer.AddPolicy(g.Subject, g.Object, g.Action); err != nil {
		return fmt.Errorf("add grant: %w", err)
	}
	return nil
}

// Revoke removes g.
func (a *Authorizer) Revoke(g Grant) error {
	if _, err := a.enforcer.RemovePolicy(g.Subject, g.Object, g.Action); err != nil {
		return fmt.Errorf("remove grant: %w", err)
	}
	return nil
}

// RevokeSubject removes every grant held by subject, e.g. when a group is
// deleted.
func (a *Authorizer) RevokeSubject(subject string) error {
	if _, err := a.enforcer.RemoveFilteredPolicy(0, subject); err != nil {
		return fmt.Errorf("remove grants of %q: %w", subject, err)
	}
	return nil
}

// Grants lists every stored grant.
func (a *Authorizer) Grants() ([]Grant, error) {
	rules, err := a.enforcer.GetPolicy()
	if err != nil {
		return nil, fmt.Errorf("list grants: %w", err)
	}
	grants := make([]Grant, 0, len(rules))
	for _, r := range rules {
		if len(r) < 3 {
			continue
		}
		grants = append(grants, Grant{Subject: r[0], Object: r[1], Action: r[2]})
	}
	return grants, nil
}

// Authorize reports whether p may perform act on obj. A nil principal is
// checked as the anonymous subject, if one is configured.
func (a *Authorizer) Authorize(ctx context.Context, p *authn.Principal, obj, act string) (bool, error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "authz.Authorize",
		attribute.String(telemetry.AttrPolicyResource, obj),
		attribute.String(telemetry.AttrPolicyAction, act),
	)
	defer span.End()

	allowed, err := a.authorize(ctx, p, obj, act)
	if err != nil {
		telemetry.RecordError(span, err)
		return false, err
	}
	span.SetAttributes(attribute.Bool(telemetry.AttrPolicyAllowed, allowed))
	return allowed, nil
}

func (a *Authorizer) authorize(ctx context.Context, p *authn.Principal, obj, act string) (bool, error) {
	check := func(sub string) (bool, error) {
		ok, err := a.enforcer.Enforce(sub, obj, act)
		if err != nil {
			return false, fmt.Errorf("enforce: %w", err)
		}
		if ok {
			a.log.V(1).Info("access granted", "subject", sub, "object", obj, "action", act)
		}
		return ok, nil
	}

	if p == nil {
		if a.anonymous == "" {
			return false, nil
		}
		return check(a.anonymous)
	}

	if ok, err := check(p.ID); ok || err != nil {
		return ok, err
	}
	for id, err := range p.AllGroups(ctx) {
		if err != nil {
			return false, err
		}
		if ok, err := check(id); ok || err != nil {
			return ok, err
		}
	}
	return false, nil
}
