// Package token authenticates requests carrying bearer tokens. The bearer
// credentials plugin extracts the token; the JWT authenticator verifies
// HS256 tokens minted by Issue.
package token

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/terraconstructs/pluggableauth/internal/services/authn"
)

// Protocol is shared with HTTP Basic so both challenges are sent together.
const Protocol = "http auth"

// Revoker invalidates a presented token on logout.
type Revoker func(ctx context.Context, token string) error

// BearerPlugin extracts "Authorization: Bearer <token>" credentials.
type BearerPlugin struct {
	Realm  string
	revoke Revoker
}

var (
	_ authn.CredentialsPlugin   = (*BearerPlugin)(nil)
	_ authn.ChallengeProtocoler = (*BearerPlugin)(nil)
)

// NewBearerPlugin returns a plugin challenging with realm. revoke may be nil,
// in which case Logout does nothing.
func NewBearerPlugin(realm string, revoke Revoker) *BearerPlugin {
	if realm == "" {
		realm = "pauthd"
	}
	return &BearerPlugin{Realm: realm, revoke: revoke}
}

func (p *BearerPlugin) ChallengeProtocol() string { return Protocol }

func bearerToken(req authn.Request) (string, bool) {
	r, ok := req.(*authn.HTTPRequest)
	if !ok || r.Request == nil {
		return "", false
	}
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func (p *BearerPlugin) ExtractCredentials(_ context.Context, req authn.Request) authn.Credentials {
	token, ok := bearerToken(req)
	if !ok {
		return nil
	}
	return authn.BearerToken(token)
}

func (p *BearerPlugin) Challenge(_ context.Context, req authn.Request) bool {
	r, ok := req.(*authn.HTTPRequest)
	if !ok {
		return false
	}
	r.ResponseHeader().Add("WWW-Authenticate", fmt.Sprintf("Bearer realm=%q", p.Realm))
	r.SetStatus(http.StatusUnauthorized)
	return true
}

// Logout revokes the presented token when a revoker is configured.
func (p *BearerPlugin) Logout(ctx context.Context, req authn.Request) bool {
	if p.revoke == nil {
		return false
	}
	token, ok := bearerToken(req)
	if !ok {
		return false
	}
	return p.revoke(ctx, token) == nil
}
