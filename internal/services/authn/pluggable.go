package authn

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel/attribute"

	"github.com/terraconstructs/pluggableauth/internal/container"
	"github.com/terraconstructs/pluggableauth/internal/event"
	"github.com/terraconstructs/pluggableauth/internal/telemetry"
)

const tracerName = "pauth/services/authn"

// PluggableAuthentication dispatches authentication and principal lookup to
// ordered lists of named plugins and falls back to a parent scope.
type PluggableAuthentication struct {
	prefix   string
	plugins  *container.Container[any]
	registry *Registry
	bus      *event.Bus
	parent   func() Authentication
	log      logr.Logger
	metrics  *telemetry.AuthMetrics

	mu                   sync.RWMutex
	credentialsPlugins   []string
	authenticatorPlugins []string
}

var _ Scope = (*PluggableAuthentication)(nil)

// Option configures a PluggableAuthentication.
type Option func(*PluggableAuthentication)

// WithRegistry sets the registry used for global plugins and factories.
func WithRegistry(r *Registry) Option {
	return func(a *PluggableAuthentication) { a.registry = r }
}

// WithParent sets a fixed parent scope.
func WithParent(parent Authentication) Option {
	return func(a *PluggableAuthentication) {
		a.parent = func() Authentication { return parent }
	}
}

// WithParentResolver sets a function consulted on every delegation. It may
// return nil when there is no parent.
func WithParentResolver(fn func() Authentication) Option {
	return func(a *PluggableAuthentication) { a.parent = fn }
}

// WithEventBus sets the bus principal creation events are published on.
func WithEventBus(b *event.Bus) Option {
	return func(a *PluggableAuthentication) { a.bus = b }
}

func WithLogger(l logr.Logger) Option {
	return func(a *PluggableAuthentication) { a.log = l }
}

func WithMetrics(m *telemetry.AuthMetrics) Option {
	return func(a *PluggableAuthentication) { a.metrics = m }
}

// WithCredentialsPlugins sets the initial credentials plugin order.
func WithCredentialsPlugins(names ...string) Option {
	return func(a *PluggableAuthentication) { a.credentialsPlugins = slices.Clone(names) }
}

// WithAuthenticatorPlugins sets the initial authenticator plugin order.
func WithAuthenticatorPlugins(names ...string) Option {
	return func(a *PluggableAuthentication) { a.authenticatorPlugins = slices.Clone(names) }
}

// New creates a scope whose principal ids start with prefix. The prefix
// cannot be changed afterwards.
func New(prefix string, opts ...Option) *PluggableAuthentication {
	a := &PluggableAuthentication{
		prefix: prefix,
		log:    logr.Discard(),
	}
	a.plugins = container.New[any](a)
	for _, opt := range opts {
		opt(a)
	}
	if a.registry == nil {
		a.registry = NewRegistry(nil)
	}
	if a.bus == nil {
		a.bus = event.NewBus()
	}
	a.log = a.log.WithValues("prefix", prefix)
	return a
}

func (a *PluggableAuthentication) Prefix() string      { return a.prefix }
func (a *PluggableAuthentication) Events() *event.Bus  { return a.bus }
func (a *PluggableAuthentication) Registry() *Registry { return a.registry }

func (a *PluggableAuthentication) String() string {
	return fmt.Sprintf("PluggableAuthentication(%q)", a.prefix)
}

// AddPlugin stores plugin in the scope under name. Plugins implementing
// container.Locatable learn the scope and name.
func (a *PluggableAuthentication) AddPlugin(name string, plugin any) error {
	if err := a.plugins.Set(name, plugin); err != nil {
		return fmt.Errorf("add plugin %q: %w", name, err)
	}
	return nil
}

// RemovePlugin deletes a contained plugin.
func (a *PluggableAuthentication) RemovePlugin(name string) error {
	if _, err := a.plugins.Delete(name); err != nil {
		return fmt.Errorf("remove plugin %q: %w", name, err)
	}
	return nil
}

// Plugin returns a contained plugin.
func (a *PluggableAuthentication) Plugin(name string) (any, bool) {
	return a.plugins.Get(name)
}

// PluginNames lists the contained plugins in name order.
func (a *PluggableAuthentication) PluginNames() []string {
	return a.plugins.Keys()
}

func (a *PluggableAuthentication) SetCredentialsPlugins(names ...string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.credentialsPlugins = slices.Clone(names)
}

func (a *PluggableAuthentication) SetAuthenticatorPlugins(names ...string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.authenticatorPlugins = slices.Clone(names)
}

func (a *PluggableAuthentication) CredentialsPluginNames() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return slices.Clone(a.credentialsPlugins)
}

func (a *PluggableAuthentication) AuthenticatorPluginNames() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return slices.Clone(a.authenticatorPlugins)
}

// CredentialsPlugins resolves the configured names in order. A contained
// plugin wins over a registry plugin of the same name; unresolved names are
// skipped.
func (a *PluggableAuthentication) CredentialsPlugins() []NamedCredentialsPlugin {
	names := a.CredentialsPluginNames()
	out := make([]NamedCredentialsPlugin, 0, len(names))
	for _, name := range names {
		if v, ok := a.plugins.Get(name); ok {
			if p, ok := v.(CredentialsPlugin); ok {
				out = append(out, NamedCredentialsPlugin{Name: name, Plugin: p})
				continue
			}
		}
		if p, ok := a.registry.CredentialsPlugin(name); ok {
			out = append(out, NamedCredentialsPlugin{Name: name, Plugin: p})
			continue
		}
		a.log.V(1).Info("credentials plugin not found", "plugin", name)
	}
	return out
}

// AuthenticatorPlugins resolves the configured names in order, like
// CredentialsPlugins.
func (a *PluggableAuthentication) AuthenticatorPlugins() []NamedAuthenticatorPlugin {
	names := a.AuthenticatorPluginNames()
	out := make([]NamedAuthenticatorPlugin, 0, len(names))
	for _, name := range names {
		if v, ok := a.plugins.Get(name); ok {
			if p, ok := v.(AuthenticatorPlugin); ok {
				out = append(out, NamedAuthenticatorPlugin{Name: name, Plugin: p})
				continue
			}
		}
		if p, ok := a.registry.AuthenticatorPlugin(name); ok {
			out = append(out, NamedAuthenticatorPlugin{Name: name, Plugin: p})
			continue
		}
		a.log.V(1).Info("authenticator plugin not found", "plugin", name)
	}
	return out
}

// Authenticate returns the principal for the first (credentials plugin,
// authenticator plugin) pair that accepts the request, or nil if none does.
func (a *PluggableAuthentication) Authenticate(ctx context.Context, req Request) (*Principal, error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "authn.Authenticate",
		attribute.String(telemetry.AttrScopePrefix, a.prefix),
	)
	defer span.End()

	authenticators := a.AuthenticatorPlugins()
	for _, cp := range a.CredentialsPlugins() {
		creds := cp.Plugin.ExtractCredentials(ctx, req)
		if creds == nil {
			continue
		}
		for _, ap := range authenticators {
			info := ap.Plugin.AuthenticateCredentials(ctx, creds)
			if info == nil {
				continue
			}
			span.SetAttributes(
				attribute.String(telemetry.AttrCredentialsPlugin, cp.Name),
				attribute.String(telemetry.AttrAuthenticatorPlugin, ap.Name),
			)

			annotated := info.annotate(cp.Plugin, ap.Plugin)
			factory, ok := a.registry.AuthenticatedFactory(info.Kind(), requestKind(req))
			if !ok {
				err := fmt.Errorf("%w for (%s, %s)", ErrNoFactory, info.Kind(), requestKind(req))
				telemetry.RecordError(span, err)
				a.metrics.RecordAuthentication(ctx, a.prefix, telemetry.OutcomeError)
				return nil, err
			}
			principal := factory(ctx, annotated, req, a)
			principal.ID = a.prefix + info.ID

			span.SetAttributes(attribute.String(telemetry.AttrPrincipalID, principal.ID))
			a.metrics.RecordAuthentication(ctx, a.prefix, telemetry.OutcomeSuccess)
			a.log.V(1).Info("authenticated", "principal", principal.ID,
				"credentials", cp.Name, "authenticator", ap.Name)
			return principal, nil
		}
	}

	a.metrics.RecordAuthentication(ctx, a.prefix, telemetry.OutcomeNoMatch)
	return nil, nil
}

// GetPrincipal resolves a fully qualified id. Ids outside this scope's prefix
// and ids no local plugin knows are delegated to the parent scope.
func (a *PluggableAuthentication) GetPrincipal(ctx context.Context, id string) (*Principal, error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "authn.GetPrincipal",
		attribute.String(telemetry.AttrScopePrefix, a.prefix),
		attribute.String(telemetry.AttrPrincipalID, id),
	)
	defer span.End()

	local, ok := strings.CutPrefix(id, a.prefix)
	if !ok {
		p, err := a.delegateLookup(ctx, id)
		telemetry.RecordError(span, err)
		return p, err
	}

	for _, ap := range a.AuthenticatorPlugins() {
		info := ap.Plugin.PrincipalInfo(ctx, local)
		if info == nil {
			continue
		}
		span.SetAttributes(attribute.String(telemetry.AttrAuthenticatorPlugin, ap.Name))

		annotated := info.annotate(nil, ap.Plugin)
		factory, ok := a.registry.FoundFactory(info.Kind())
		if !ok {
			err := fmt.Errorf("%w for %s", ErrNoFactory, info.Kind())
			telemetry.RecordError(span, err)
			a.metrics.RecordLookup(ctx, a.prefix, telemetry.OutcomeError)
			return nil, err
		}
		principal := factory(ctx, annotated, a)
		principal.ID = a.prefix + info.ID
		a.metrics.RecordLookup(ctx, a.prefix, telemetry.OutcomeSuccess)
		return principal, nil
	}

	p, err := a.delegateLookup(ctx, id)
	telemetry.RecordError(span, err)
	return p, err
}

// delegateLookup hands id to the parent scope. The root scope resolves the
// registry's special groups before giving up.
func (a *PluggableAuthentication) delegateLookup(ctx context.Context, id string) (*Principal, error) {
	if next := a.parentScope(); next != nil {
		a.metrics.RecordLookup(ctx, a.prefix, telemetry.OutcomeDelegated)
		return next.GetPrincipal(ctx, id)
	}
	if g, ok := a.registry.SpecialGroup(id); ok {
		p := NewPrincipal(g.ID, g.Title, g.Description)
		p.MarkGroup()
		p.SetSource(a)
		a.metrics.RecordLookup(ctx, a.prefix, telemetry.OutcomeSuccess)
		return p, nil
	}
	a.metrics.RecordLookup(ctx, a.prefix, telemetry.OutcomeNoMatch)
	return nil, &PrincipalLookupError{ID: id}
}

func (a *PluggableAuthentication) parentScope() Authentication {
	if a.parent == nil {
		return nil
	}
	return a.parent()
}

// Parent returns the current parent scope, or nil.
func (a *PluggableAuthentication) Parent() Authentication { return a.parentScope() }

// Unauthorized asks the credentials plugins to challenge the client. If no
// plugin acts, the parent scope is asked.
func (a *PluggableAuthentication) Unauthorized(ctx context.Context, id string, req Request) {
	protocol, handled := a.arbitrate(func(p CredentialsPlugin) bool {
		return p.Challenge(ctx, req)
	})
	a.metrics.RecordChallenge(ctx, a.prefix, "challenge", protocol)
	if handled {
		return
	}
	if next := a.parentScope(); next != nil {
		next.Unauthorized(ctx, id, req)
	}
}

// Logout asks the credentials plugins to end the client's session. If no
// plugin acts, the parent scope is asked.
func (a *PluggableAuthentication) Logout(ctx context.Context, req Request) {
	protocol, handled := a.arbitrate(func(p CredentialsPlugin) bool {
		return p.Logout(ctx, req)
	})
	a.metrics.RecordChallenge(ctx, a.prefix, "logout", protocol)
	if handled {
		return
	}
	if next := a.parentScope(); next != nil {
		next.Logout(ctx, req)
	}
}

// arbitrate runs act over the credentials plugins. The first plugin that acts
// fixes the protocol; after that only plugins of the same protocol run. A
// plugin without a protocol that acts ends the scan on its own.
func (a *PluggableAuthentication) arbitrate(act func(CredentialsPlugin) bool) (protocol string, handled bool) {
	established := false
	for _, cp := range a.CredentialsPlugins() {
		p := challengeProtocol(cp.Plugin)
		if established && p != protocol {
			continue
		}
		if !act(cp.Plugin) {
			continue
		}
		if p == "" {
			return "", true
		}
		if !established {
			protocol = p
			established = true
		}
	}
	return protocol, established
}

// Queriables adapts every authenticator plugin that supports search.
func (a *PluggableAuthentication) Queriables() []NamedQueriable {
	var out []NamedQueriable
	for _, ap := range a.AuthenticatorPlugins() {
		if q, ok := a.registry.queriable(ap.Plugin, a); ok {
			out = append(out, NamedQueriable{Name: ap.Name, Queriable: q})
		}
	}
	return out
}

// UnauthenticatedPrincipal is the principal for anonymous requests. Scopes
// have none.
func (a *PluggableAuthentication) UnauthenticatedPrincipal() *Principal {
	return nil
}
