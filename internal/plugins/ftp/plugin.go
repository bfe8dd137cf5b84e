// Package ftp is a credentials plugin for FTP sessions.
package ftp

import (
	"context"

	"github.com/terraconstructs/pluggableauth/internal/services/authn"
)

// Plugin turns the login pair of an FTP request into credentials. FTP has no
// challenge or logout.
type Plugin struct{}

var _ authn.CredentialsPlugin = Plugin{}

func New() Plugin { return Plugin{} }

func (Plugin) ExtractCredentials(_ context.Context, req authn.Request) authn.Credentials {
	r, ok := req.(*authn.FTPRequest)
	if !ok || r.Auth == nil {
		return nil
	}
	return authn.LoginPassword{Login: string(r.Auth.Login), Password: string(r.Auth.Password)}
}

func (Plugin) Challenge(context.Context, authn.Request) bool { return false }

func (Plugin) Logout(context.Context, authn.Request) bool { return false }
