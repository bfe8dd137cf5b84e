// Package principalfolder is an authenticator plugin backed by a folder of
// internal principals with login and password.
package principalfolder

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"sync"

	"github.com/go-logr/logr"

	"github.com/terraconstructs/pluggableauth/internal/container"
	"github.com/terraconstructs/pluggableauth/internal/services/authn"
)

var (
	// ErrLoginTaken is returned when a login change collides with another
	// principal in the same folder.
	ErrLoginTaken = errors.New("principal login already taken")

	// ErrLoginNotFound is returned by GetIDByLogin.
	ErrLoginNotFound = errors.New("login not found")

	// ErrPrincipalNotFound is returned for names not present in the folder.
	ErrPrincipalNotFound = errors.New("principal not found")
)

// PrincipalFolder stores internal principals under names and indexes them by
// login.
type PrincipalFolder struct {
	prefix     string
	principals *container.Container[*InternalPrincipal]
	log        logr.Logger

	mu        sync.RWMutex
	idByLogin map[string]string
}

var (
	_ authn.AuthenticatorPlugin = (*PrincipalFolder)(nil)
	_ authn.Searchable          = (*PrincipalFolder)(nil)
)

type Option func(*PrincipalFolder)

func WithLogger(l logr.Logger) Option {
	return func(f *PrincipalFolder) { f.log = l }
}

// New returns an empty folder whose principal ids start with prefix.
func New(prefix string, opts ...Option) *PrincipalFolder {
	f := &PrincipalFolder{
		prefix:    prefix,
		log:       logr.Discard(),
		idByLogin: make(map[string]string),
	}
	f.principals = container.New[*InternalPrincipal](f)
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *PrincipalFolder) String() string {
	return fmt.Sprintf("PrincipalFolder(%q)", f.prefix)
}

func (f *PrincipalFolder) Prefix() string { return f.prefix }

func (f *PrincipalFolder) Get(name string) (*InternalPrincipal, bool) {
	return f.principals.Get(name)
}

func (f *PrincipalFolder) Contains(name string) bool {
	return f.principals.Contains(name)
}

func (f *PrincipalFolder) Names() []string {
	return f.principals.Keys()
}

func (f *PrincipalFolder) All() iter.Seq2[string, *InternalPrincipal] {
	return f.principals.All()
}

func (f *PrincipalFolder) Len() int { return f.principals.Len() }

// Set stores p under name. A login already used in the folder is rejected
// with a DuplicateIDError and nothing changes.
func (f *PrincipalFolder) Set(name string, p *InternalPrincipal) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	login := p.Login()
	if _, taken := f.idByLogin[login]; taken {
		return &container.DuplicateIDError{Name: name, Msg: fmt.Sprintf("principal login %q already taken", login)}
	}
	if err := f.principals.Set(name, p); err != nil {
		return fmt.Errorf("add principal %q: %w", name, err)
	}
	f.idByLogin[login] = name
	f.log.V(1).Info("principal added", "principal", f.prefix+name)
	return nil
}

// Delete removes the principal stored under name along with its login.
func (f *PrincipalFolder) Delete(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	p, err := f.principals.Delete(name)
	if err != nil {
		return fmt.Errorf("delete principal %q: %w", name, ErrPrincipalNotFound)
	}
	delete(f.idByLogin, p.Login())
	p.detach()
	f.log.V(1).Info("principal deleted", "principal", f.prefix+name)
	return nil
}

func (f *PrincipalFolder) loginChanged(old, login, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, taken := f.idByLogin[login]; taken {
		return fmt.Errorf("%w: %q", ErrLoginTaken, login)
	}
	delete(f.idByLogin, old)
	f.idByLogin[login] = name
	return nil
}

// GetIDByLogin returns the folder-prefixed id of the principal using login.
func (f *PrincipalFolder) GetIDByLogin(login string) (string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	name, ok := f.idByLogin[login]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrLoginNotFound, login)
	}
	return f.prefix + name, nil
}

// AuthenticateCredentials accepts login/password credentials only.
func (f *PrincipalFolder) AuthenticateCredentials(_ context.Context, creds authn.Credentials) *authn.PrincipalInfo {
	var lp authn.LoginPassword
	switch c := creds.(type) {
	case authn.LoginPassword:
		lp = c
	case *authn.LoginPassword:
		if c == nil {
			return nil
		}
		lp = *c
	default:
		return nil
	}

	f.mu.RLock()
	name, ok := f.idByLogin[lp.Login]
	f.mu.RUnlock()
	if !ok {
		return nil
	}
	p, ok := f.principals.Get(name)
	if !ok || !p.CheckPassword(lp.Password) {
		f.log.V(1).Info("password rejected", "principal", f.prefix+name)
		return nil
	}
	return authn.NewPrincipalInfo(f.prefix+name, p.Login(), p.Title, p.Description)
}

// PrincipalInfo returns information for a folder-prefixed id.
func (f *PrincipalFolder) PrincipalInfo(_ context.Context, id string) *authn.PrincipalInfo {
	name, ok := strings.CutPrefix(id, f.prefix)
	if !ok {
		return nil
	}
	p, ok := f.principals.Get(name)
	if !ok {
		return nil
	}
	return authn.NewPrincipalInfo(id, p.Login(), p.Title, p.Description)
}

// Search yields prefixed ids of principals whose title, description or login
// contains query["search"], ignoring case. start and batchSize behave as for
// group folders.
func (f *PrincipalFolder) Search(_ context.Context, query authn.Query, start, batchSize int) iter.Seq[string] {
	return func(yield func(string) bool) {
		term, ok := query["search"]
		if !ok {
			return
		}
		term = strings.ToLower(term)

		i, n := -1, 0
		for name, p := range f.principals.All() {
			i++
			if !strings.Contains(strings.ToLower(p.Title), term) &&
				!strings.Contains(strings.ToLower(p.Description), term) &&
				!strings.Contains(strings.ToLower(p.Login()), term) {
				continue
			}
			if i < start {
				continue
			}
			if batchSize > 0 && n >= batchSize {
				return
			}
			n++
			if !yield(f.prefix + name) {
				return
			}
		}
	}
}
