package authn

import "fmt"

// PrincipalCreated is implemented by both principal creation events so that
// subscribers interested in either can register once.
type PrincipalCreated interface {
	CreatedPrincipal() *Principal
	CreatedInfo() *PrincipalInfo
	CreatingScope() Scope
}

// AuthenticatedPrincipalCreated is published when a principal is built from
// verified credentials.
type AuthenticatedPrincipalCreated struct {
	Authentication Scope
	Principal      *Principal
	Info           *PrincipalInfo
	Request        Request
}

func (e AuthenticatedPrincipalCreated) CreatedPrincipal() *Principal { return e.Principal }
func (e AuthenticatedPrincipalCreated) CreatedInfo() *PrincipalInfo  { return e.Info }
func (e AuthenticatedPrincipalCreated) CreatingScope() Scope         { return e.Authentication }

func (e AuthenticatedPrincipalCreated) String() string {
	return fmt.Sprintf("<AuthenticatedPrincipalCreated %s>", e.Principal.ID)
}

// FoundPrincipalCreated is published when a principal is built from a lookup.
type FoundPrincipalCreated struct {
	Authentication Scope
	Principal      *Principal
	Info           *PrincipalInfo
}

func (e FoundPrincipalCreated) CreatedPrincipal() *Principal { return e.Principal }
func (e FoundPrincipalCreated) CreatedInfo() *PrincipalInfo  { return e.Info }
func (e FoundPrincipalCreated) CreatingScope() Scope         { return e.Authentication }

func (e FoundPrincipalCreated) String() string {
	return fmt.Sprintf("<FoundPrincipalCreated %s>", e.Principal.ID)
}
