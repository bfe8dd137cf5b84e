package authn

import (
	"context"
	"fmt"
)

// Credentials is whatever a credentials plugin extracted from a request.
// A nil value means the plugin found nothing.
type Credentials any

// LoginPassword is the common credentials shape understood by principal
// folders.
type LoginPassword struct {
	Login    string
	Password string
}

// BearerToken is an opaque token taken from an Authorization header.
type BearerToken string

// InfoKind distinguishes principal information from group information when
// selecting a factory.
type InfoKind string

const (
	InfoKindAny       InfoKind = "*"
	InfoKindPrincipal InfoKind = "principal"
	InfoKindGroup     InfoKind = "group"
)

// MemberAccessor exposes and replaces the direct members of a group.
type MemberAccessor interface {
	Members() []string
	SetMembers(ctx context.Context, ids []string) error
}

// PrincipalInfo is what an authenticator plugin knows about a principal.
// IDs are local to the plugin; the scope adds its prefix when it builds a
// Principal.
type PrincipalInfo struct {
	ID          string
	Login       string
	Title       string
	Description string

	// Set by the dispatcher on the copy it hands to factories.
	CredentialsPlugin   CredentialsPlugin
	AuthenticatorPlugin AuthenticatorPlugin

	// Group is non-nil for group information.
	Group MemberAccessor
}

// NewPrincipalInfo returns information for a plain principal.
func NewPrincipalInfo(id, login, title, description string) *PrincipalInfo {
	return &PrincipalInfo{ID: id, Login: login, Title: title, Description: description}
}

// Kind reports whether the information describes a group.
func (i *PrincipalInfo) Kind() InfoKind {
	if i.Group != nil {
		return InfoKindGroup
	}
	return InfoKindPrincipal
}

func (i *PrincipalInfo) String() string {
	if i.Group != nil {
		return fmt.Sprintf("GroupInfo(%q)", i.ID)
	}
	return fmt.Sprintf("PrincipalInfo(%q)", i.ID)
}

func (i *PrincipalInfo) annotate(cp CredentialsPlugin, ap AuthenticatorPlugin) *PrincipalInfo {
	c := *i
	c.CredentialsPlugin = cp
	c.AuthenticatorPlugin = ap
	return &c
}
