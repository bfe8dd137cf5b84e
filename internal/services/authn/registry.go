package authn

import (
	"context"
	"iter"
	"sync"
)

// QueriableAdapter turns an authenticator plugin into a Queriable for scope.
// It returns false when it does not handle the plugin.
type QueriableAdapter func(plugin AuthenticatorPlugin, scope Scope) (Queriable, bool)

// SpecialGroup is a group every principal (or every authenticated principal)
// belongs to implicitly.
type SpecialGroup struct {
	ID          string
	Title       string
	Description string
}

type factoryKey struct {
	info InfoKind
	req  RequestKind
}

// Registry holds the plugins, factories and adapters a scope resolves by name
// or kind. Lookups fall back to the parent registry.
type Registry struct {
	parent *Registry

	mu                     sync.RWMutex
	credentials            map[string]CredentialsPlugin
	authenticators         map[string]AuthenticatorPlugin
	authenticatedFactories map[factoryKey]AuthenticatedPrincipalFactory
	foundFactories         map[InfoKind]FoundPrincipalFactory
	queriableAdapters      []QueriableAdapter
	everyone               *SpecialGroup
	authenticated          *SpecialGroup
}

// NewRegistry returns an empty registry. A root registry (nil parent) comes
// with the default factories installed.
func NewRegistry(parent *Registry) *Registry {
	r := &Registry{
		parent:                 parent,
		credentials:            make(map[string]CredentialsPlugin),
		authenticators:         make(map[string]AuthenticatorPlugin),
		authenticatedFactories: make(map[factoryKey]AuthenticatedPrincipalFactory),
		foundFactories:         make(map[InfoKind]FoundPrincipalFactory),
	}
	if parent == nil {
		r.RegisterAuthenticatedFactory(InfoKindAny, RequestKindAny, NewAuthenticatedPrincipal)
		r.RegisterFoundFactory(InfoKindAny, NewFoundPrincipal)
	}
	return r
}

// Parent returns the registry lookups fall back to.
func (r *Registry) Parent() *Registry { return r.parent }

func (r *Registry) chain() iter.Seq[*Registry] {
	return func(yield func(*Registry) bool) {
		for cur := r; cur != nil; cur = cur.parent {
			if !yield(cur) {
				return
			}
		}
	}
}

func (r *Registry) RegisterCredentialsPlugin(name string, p CredentialsPlugin) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.credentials[name] = p
}

func (r *Registry) RegisterAuthenticatorPlugin(name string, p AuthenticatorPlugin) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.authenticators[name] = p
}

// CredentialsPlugin resolves a registered credentials plugin by name.
func (r *Registry) CredentialsPlugin(name string) (CredentialsPlugin, bool) {
	for reg := range r.chain() {
		reg.mu.RLock()
		p, ok := reg.credentials[name]
		reg.mu.RUnlock()
		if ok {
			return p, true
		}
	}
	return nil, false
}

// AuthenticatorPlugin resolves a registered authenticator plugin by name.
func (r *Registry) AuthenticatorPlugin(name string) (AuthenticatorPlugin, bool) {
	for reg := range r.chain() {
		reg.mu.RLock()
		p, ok := reg.authenticators[name]
		reg.mu.RUnlock()
		if ok {
			return p, true
		}
	}
	return nil, false
}

// RegisterAuthenticatedFactory registers f for the (info, req) pair. Either
// kind may be the wildcard.
func (r *Registry) RegisterAuthenticatedFactory(info InfoKind, req RequestKind, f AuthenticatedPrincipalFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.authenticatedFactories[factoryKey{info, req}] = f
}

// AuthenticatedFactory finds the most specific factory for (info, req) in the
// nearest registry that has one.
func (r *Registry) AuthenticatedFactory(info InfoKind, req RequestKind) (AuthenticatedPrincipalFactory, bool) {
	keys := []factoryKey{
		{info, req},
		{info, RequestKindAny},
		{InfoKindAny, req},
		{InfoKindAny, RequestKindAny},
	}
	for reg := range r.chain() {
		reg.mu.RLock()
		for _, k := range keys {
			if f, ok := reg.authenticatedFactories[k]; ok {
				reg.mu.RUnlock()
				return f, true
			}
		}
		reg.mu.RUnlock()
	}
	return nil, false
}

func (r *Registry) RegisterFoundFactory(info InfoKind, f FoundPrincipalFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.foundFactories[info] = f
}

// FoundFactory finds the factory for info, falling back to the wildcard.
func (r *Registry) FoundFactory(info InfoKind) (FoundPrincipalFactory, bool) {
	for reg := range r.chain() {
		reg.mu.RLock()
		f, ok := reg.foundFactories[info]
		if !ok {
			f, ok = reg.foundFactories[InfoKindAny]
		}
		reg.mu.RUnlock()
		if ok {
			return f, true
		}
	}
	return nil, false
}

// RegisterQueriableAdapter adds an adapter consulted before the default one.
// Adapters registered later win.
func (r *Registry) RegisterQueriableAdapter(a QueriableAdapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queriableAdapters = append(r.queriableAdapters, a)
}

func (r *Registry) queriable(plugin AuthenticatorPlugin, scope Scope) (Queriable, bool) {
	for reg := range r.chain() {
		reg.mu.RLock()
		adapters := append([]QueriableAdapter(nil), reg.queriableAdapters...)
		reg.mu.RUnlock()
		for i := len(adapters) - 1; i >= 0; i-- {
			if q, ok := adapters[i](plugin, scope); ok {
				return q, true
			}
		}
	}
	if s, ok := plugin.(Searchable); ok {
		return &prefixQueriable{prefix: scope.Prefix(), search: s}, true
	}
	return nil, false
}

type prefixQueriable struct {
	prefix string
	search Searchable
}

func (q *prefixQueriable) Search(ctx context.Context, query Query, start, batchSize int) iter.Seq[string] {
	return func(yield func(string) bool) {
		for id := range q.search.Search(ctx, query, start, batchSize) {
			if !yield(q.prefix + id) {
				return
			}
		}
	}
}

// SetEveryoneGroup registers the group every principal belongs to.
func (r *Registry) SetEveryoneGroup(g SpecialGroup) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.everyone = &g
}

// SetAuthenticatedGroup registers the group every authenticated principal
// belongs to.
func (r *Registry) SetAuthenticatedGroup(g SpecialGroup) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.authenticated = &g
}

// EveryoneGroup returns the everyone group from the nearest registry.
func (r *Registry) EveryoneGroup() (SpecialGroup, bool) {
	for reg := range r.chain() {
		reg.mu.RLock()
		g := reg.everyone
		reg.mu.RUnlock()
		if g != nil {
			return *g, true
		}
	}
	return SpecialGroup{}, false
}

// AuthenticatedGroup returns the authenticated group from the nearest
// registry.
func (r *Registry) AuthenticatedGroup() (SpecialGroup, bool) {
	for reg := range r.chain() {
		reg.mu.RLock()
		g := reg.authenticated
		reg.mu.RUnlock()
		if g != nil {
			return *g, true
		}
	}
	return SpecialGroup{}, false
}

// SpecialGroup resolves id against the registered special groups.
func (r *Registry) SpecialGroup(id string) (SpecialGroup, bool) {
	if g, ok := r.EveryoneGroup(); ok && g.ID == id {
		return g, true
	}
	if g, ok := r.AuthenticatedGroup(); ok && g.ID == id {
		return g, true
	}
	return SpecialGroup{}, false
}
