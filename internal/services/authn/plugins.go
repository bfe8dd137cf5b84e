package authn

import (
	"context"
	"iter"

	"github.com/terraconstructs/pluggableauth/internal/event"
)

// CredentialsPlugin extracts credentials from requests and drives the
// protocol-specific challenge and logout.
type CredentialsPlugin interface {
	// ExtractCredentials returns nil when the request carries nothing this
	// plugin understands.
	ExtractCredentials(ctx context.Context, req Request) Credentials

	// Challenge prompts the client to authenticate. It returns true if it
	// acted on the request.
	Challenge(ctx context.Context, req Request) bool

	// Logout ends the client's session. It returns true if it acted on the
	// request.
	Logout(ctx context.Context, req Request) bool
}

// ChallengeProtocoler is implemented by credentials plugins that take part in
// a named challenge protocol. Plugins sharing a protocol cooperate on a single
// challenge; plugins without one act alone.
type ChallengeProtocoler interface {
	ChallengeProtocol() string
}

func challengeProtocol(p CredentialsPlugin) string {
	if cp, ok := p.(ChallengeProtocoler); ok {
		return cp.ChallengeProtocol()
	}
	return ""
}

// AuthenticatorPlugin verifies credentials and resolves principal ids local to
// the plugin.
type AuthenticatorPlugin interface {
	// AuthenticateCredentials returns nil when the credentials are not
	// accepted.
	AuthenticateCredentials(ctx context.Context, creds Credentials) *PrincipalInfo

	// PrincipalInfo returns nil when id is unknown.
	PrincipalInfo(ctx context.Context, id string) *PrincipalInfo
}

// Query is a set of search criteria keyed by field name.
type Query map[string]string

// Searchable is implemented by authenticator plugins that can search the
// principals they hold. Returned ids are local to the plugin.
type Searchable interface {
	Search(ctx context.Context, query Query, start, batchSize int) iter.Seq[string]
}

// Queriable is a search facet whose results are fully qualified ids.
type Queriable interface {
	Search(ctx context.Context, query Query, start, batchSize int) iter.Seq[string]
}

// Authentication is a principal source that can also authenticate requests and
// drive challenges. Parent scopes are reached through this interface.
type Authentication interface {
	PrincipalSource
	Authenticate(ctx context.Context, req Request) (*Principal, error)
	Unauthorized(ctx context.Context, id string, req Request)
	Logout(ctx context.Context, req Request)
}

// Scope is what factories and subscribers see of a PluggableAuthentication.
type Scope interface {
	Authentication
	Prefix() string
	Events() *event.Bus
	AuthenticatorPlugins() []NamedAuthenticatorPlugin
}

// NamedCredentialsPlugin pairs a resolved credentials plugin with the name it
// was configured under.
type NamedCredentialsPlugin struct {
	Name   string
	Plugin CredentialsPlugin
}

// NamedAuthenticatorPlugin pairs a resolved authenticator plugin with the name
// it was configured under.
type NamedAuthenticatorPlugin struct {
	Name   string
	Plugin AuthenticatorPlugin
}

// NamedQueriable pairs a queriable facet with the authenticator plugin name it
// was adapted from.
type NamedQueriable struct {
	Name      string
	Queriable Queriable
}
