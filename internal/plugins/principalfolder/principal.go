package principalfolder

import (
	"fmt"
	"sync"

	"github.com/terraconstructs/pluggableauth/internal/password"
)

// InternalPrincipal is a principal stored in a PrincipalFolder. The password
// is kept encoded by the named password manager.
type InternalPrincipal struct {
	Title       string
	Description string

	mu          sync.RWMutex
	login       string
	encoded     string
	managerName string
	folder      *PrincipalFolder
	name        string
}

// NewInternalPrincipal encodes clear with the manager named managerName
// (password.Default when empty).
func NewInternalPrincipal(login, clear, title, description, managerName string) (*InternalPrincipal, error) {
	if managerName == "" {
		managerName = password.Default
	}
	p := &InternalPrincipal{
		Title:       title,
		Description: description,
		login:       login,
		managerName: managerName,
	}
	if err := p.SetPassword(clear, ""); err != nil {
		return nil, err
	}
	return p, nil
}

// RestoreInternalPrincipal rebuilds a principal from an already encoded
// password, as loaded from storage.
func RestoreInternalPrincipal(login, encoded, title, description, managerName string) *InternalPrincipal {
	if managerName == "" {
		managerName = password.Default
	}
	return &InternalPrincipal{
		Title:       title,
		Description: description,
		login:       login,
		encoded:     encoded,
		managerName: managerName,
	}
}

func (p *InternalPrincipal) SetLocation(parent any, name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.folder, _ = parent.(*PrincipalFolder)
	p.name = name
}

func (p *InternalPrincipal) detach() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.folder = nil
	p.name = ""
}

// Name is the key the principal is stored under, or "" when detached.
func (p *InternalPrincipal) Name() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.name
}

func (p *InternalPrincipal) Login() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.login
}

// SetLogin changes the login. When the principal is stored in a folder and the
// login is taken there, ErrLoginTaken is returned and the old login is kept.
func (p *InternalPrincipal) SetLogin(login string) error {
	p.mu.RLock()
	old, folder, name := p.login, p.folder, p.name
	p.mu.RUnlock()

	if old == login {
		return nil
	}
	if folder != nil {
		if err := folder.loginChanged(old, login, name); err != nil {
			return err
		}
	}
	p.mu.Lock()
	p.login = login
	p.mu.Unlock()
	return nil
}

// PasswordManagerName names the manager the stored password was encoded with.
func (p *InternalPrincipal) PasswordManagerName() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.managerName
}

// EncodedPassword returns the stored, encoded password.
func (p *InternalPrincipal) EncodedPassword() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.encoded
}

// SetPassword encodes clear and stores it. A non-empty managerName switches the
// principal to that manager first.
func (p *InternalPrincipal) SetPassword(clear, managerName string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	name := p.managerName
	if managerName != "" {
		name = managerName
	}
	m, err := password.Lookup(name)
	if err != nil {
		return err
	}
	encoded, err := m.Encode(clear)
	if err != nil {
		return fmt.Errorf("encode password: %w", err)
	}
	p.managerName = name
	p.encoded = encoded
	return nil
}

// RestorePassword puts back an already encoded password, e.g. after a
// change could not be stored.
func (p *InternalPrincipal) RestorePassword(encoded, managerName string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.encoded = encoded
	p.managerName = managerName
}

// CheckPassword reports whether clear matches the stored password.
func (p *InternalPrincipal) CheckPassword(clear string) bool {
	p.mu.RLock()
	name, encoded := p.managerName, p.encoded
	p.mu.RUnlock()

	m, err := password.Lookup(name)
	if err != nil {
		return false
	}
	return m.Check(encoded, clear)
}
