// Package session is a credentials plugin that remembers form-submitted
// credentials in a server-side session and challenges by redirecting to a
// login form.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/gorilla/securecookie"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/terraconstructs/pluggableauth/internal/services/authn"
)

const (
	DefaultLoginPageName = "loginForm.html"
	DefaultLoginField    = "login"
	DefaultPasswordField = "password"
	DefaultCookieName    = "pauth_session"
	DefaultMaxSessions   = 10000
	DefaultTTL           = 12 * time.Hour
)

// ErrUntrustedRedirect is returned when a redirect would leave the request's
// host.
var ErrUntrustedRedirect = errors.New("untrusted redirect")

// Options configures a Plugin. Zero fields take the defaults above.
type Options struct {
	LoginPageName string `mapstructure:"login_page"`
	LoginField    string `mapstructure:"login_field"`
	PasswordField string `mapstructure:"password_field"`
	CookieName    string `mapstructure:"cookie_name"`

	// SiteURL overrides the scheme and host the login page is served from.
	// When TrustedHosts is set, login redirects must target one of them,
	// including redirects to the request's own Host.
	SiteURL      string        `mapstructure:"site_url"`
	TrustedHosts []string      `mapstructure:"trusted_hosts"`
	MaxSessions  int           `mapstructure:"max_sessions"`
	TTL          time.Duration `mapstructure:"ttl"`
	Secure       bool          `mapstructure:"secure"`
}

// Plugin stores the last credentials a client submitted and replays them on
// later requests carrying the session cookie.
type Plugin struct {
	opts  Options
	codec *securecookie.SecureCookie
	store *expirable.LRU[string, authn.LoginPassword]
	log   logr.Logger
}

var _ authn.CredentialsPlugin = (*Plugin)(nil)

// New builds a plugin signing its cookie with hashKey. blockKey may be nil to
// leave the cookie unencrypted; the cookie only carries a session id.
func New(hashKey, blockKey []byte, opts Options, log logr.Logger) (*Plugin, error) {
	if len(hashKey) == 0 {
		return nil, fmt.Errorf("session: hash key is required")
	}
	if opts.LoginPageName == "" {
		opts.LoginPageName = DefaultLoginPageName
	}
	if opts.LoginField == "" {
		opts.LoginField = DefaultLoginField
	}
	if opts.PasswordField == "" {
		opts.PasswordField = DefaultPasswordField
	}
	if opts.CookieName == "" {
		opts.CookieName = DefaultCookieName
	}
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = DefaultMaxSessions
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	codec := securecookie.New(hashKey, blockKey)
	codec.MaxAge(int(opts.TTL / time.Second))

	return &Plugin{
		opts:  opts,
		codec: codec,
		store: expirable.NewLRU[string, authn.LoginPassword](opts.MaxSessions, nil, opts.TTL),
		log:   log,
	}, nil
}

func (p *Plugin) Options() Options { return p.opts }

func (p *Plugin) sessionID(r *authn.HTTPRequest) (string, bool) {
	c, err := r.Cookie(p.opts.CookieName)
	if err != nil {
		return "", false
	}
	var id string
	if err := p.codec.Decode(p.opts.CookieName, c.Value, &id); err != nil {
		p.log.V(1).Info("rejected session cookie", "error", err.Error())
		return "", false
	}
	return id, true
}

func (p *Plugin) startSession(r *authn.HTTPRequest) (string, error) {
	id := uuid.NewString()
	value, err := p.codec.Encode(p.opts.CookieName, id)
	if err != nil {
		return "", fmt.Errorf("encode session cookie: %w", err)
	}
	cookie := &http.Cookie{
		Name:     p.opts.CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   int(p.opts.TTL / time.Second),
		HttpOnly: true,
		Secure:   p.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	r.ResponseHeader().Add("Set-Cookie", cookie.String())
	return id, nil
}

// ExtractCredentials prefers credentials submitted in the login form fields
// and remembers them in the session. Without submitted credentials it returns
// the ones remembered for the request's session, if any.
func (p *Plugin) ExtractCredentials(_ context.Context, req authn.Request) authn.Credentials {
	r, ok := req.(*authn.HTTPRequest)
	if !ok || r.Request == nil {
		return nil
	}
	login := r.FormValue(p.opts.LoginField)
	password := r.FormValue(p.opts.PasswordField)
	id, hasSession := p.sessionID(r)

	if login != "" && password != "" {
		creds := authn.LoginPassword{Login: login, Password: password}
		// A login always gets a fresh session id; the old one is dropped.
		if hasSession {
			p.store.Remove(id)
		}
		newID, err := p.startSession(r)
		if err != nil {
			p.log.Error(err, "start session")
			return creds
		}
		p.store.Add(newID, creds)
		return creds
	}
	if !hasSession {
		return nil
	}
	creds, ok := p.store.Get(id)
	if !ok {
		return nil
	}
	return creds
}

// Challenge redirects to the login page with the current URL as camefrom.
func (p *Plugin) Challenge(_ context.Context, req authn.Request) bool {
	r, ok := req.(*authn.HTTPRequest)
	if !ok || r.Request == nil {
		return false
	}
	site := p.opts.SiteURL
	if site == "" {
		site = r.SiteURL()
	}
	location := strings.TrimSuffix(site, "/") + "/" + p.opts.LoginPageName
	if err := RedirectWithCameFrom(r, location, p.opts.TrustedHosts...); err != nil {
		p.log.Error(err, "login redirect refused", "location", location)
		return false
	}
	return true
}

// Logout forgets the credentials remembered for the request's session.
func (p *Plugin) Logout(_ context.Context, req authn.Request) bool {
	r, ok := req.(*authn.HTTPRequest)
	if !ok || r.Request == nil {
		return false
	}
	if id, ok := p.sessionID(r); ok {
		p.store.Remove(id)
	}
	return true
}

// Sessions is the number of live sessions with remembered credentials.
func (p *Plugin) Sessions() int { return p.store.Len() }

// RedirectWithCameFrom redirects r to location with the request's absolute URL,
// including its query, in the camefrom parameter. location must be relative
// or on one of trusted. Without trusted hosts the request's own host is
// accepted.
func RedirectWithCameFrom(r *authn.HTTPRequest, location string, trusted ...string) error {
	u, err := url.Parse(location)
	if err != nil {
		return fmt.Errorf("parse redirect location: %w", err)
	}
	if u.Host != "" && !redirectAllowed(u.Host, r.Host, trusted) {
		return fmt.Errorf("%w to host %q", ErrUntrustedRedirect, u.Host)
	}
	r.Redirect(location + "?" + url.Values{"camefrom": {r.AbsoluteURL()}}.Encode())
	return nil
}

func redirectAllowed(host, requestHost string, trusted []string) bool {
	if len(trusted) == 0 {
		return host == requestHost
	}
	return slices.Contains(trusted, host)
}
