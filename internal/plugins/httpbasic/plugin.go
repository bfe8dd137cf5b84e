// Package httpbasic is a credentials plugin for HTTP Basic authentication.
package httpbasic

import (
	"context"
	"fmt"
	"net/http"

	"github.com/terraconstructs/pluggableauth/internal/services/authn"
)

const (
	// Protocol is shared with other plugins that challenge through the
	// WWW-Authenticate header.
	Protocol = "http auth"

	DefaultRealm = "pauthd"
)

// Plugin extracts login/password pairs from the Authorization header.
type Plugin struct {
	Realm string
}

var (
	_ authn.CredentialsPlugin   = (*Plugin)(nil)
	_ authn.ChallengeProtocoler = (*Plugin)(nil)
)

func New(realm string) *Plugin {
	if realm == "" {
		realm = DefaultRealm
	}
	return &Plugin{Realm: realm}
}

func (p *Plugin) ChallengeProtocol() string { return Protocol }

// ExtractCredentials decodes a Basic Authorization header. The password may
// contain colons; the login may not.
func (p *Plugin) ExtractCredentials(_ context.Context, req authn.Request) authn.Credentials {
	r, ok := req.(*authn.HTTPRequest)
	if !ok || r.Request == nil {
		return nil
	}
	login, password, ok := r.BasicAuth()
	if !ok {
		return nil
	}
	return authn.LoginPassword{Login: login, Password: password}
}

// Challenge asks the client for Basic credentials with a 401.
func (p *Plugin) Challenge(_ context.Context, req authn.Request) bool {
	r, ok := req.(*authn.HTTPRequest)
	if !ok {
		return false
	}
	r.ResponseHeader().Add("WWW-Authenticate", fmt.Sprintf("basic realm=%q", p.Realm))
	r.SetStatus(http.StatusUnauthorized)
	return true
}

// Logout is not supported by Basic authentication.
func (p *Plugin) Logout(context.Context, authn.Request) bool {
	return false
}
