// Package authn is the pluggable authentication dispatcher.
//
// A PluggableAuthentication scope owns an ordered list of credentials plugins
// (which extract credentials from a request and know how to challenge or log
// out a client) and an ordered list of authenticator plugins (which verify
// credentials and look up principals by id). Principal ids produced inside a
// scope carry the scope prefix; lookups that do not belong to the scope are
// delegated to the parent scope.
//
// # Architecture
//
// Plugins are registered either as contained plugins (AddPlugin, located in the
// scope) or as registry plugins (Registry.RegisterCredentialsPlugin). Contained
// plugins win over registry plugins of the same name.
//
// Principals are built by factories selected from the Registry by
// (InfoKind, RequestKind). Factories publish AuthenticatedPrincipalCreated and
// FoundPrincipalCreated on the scope's event bus; subscribers attach group
// membership before the principal is returned to the caller.
//
// # Group closure
//
// Principal.AllGroups walks the transitive group closure depth-first in
// pre-order without recursion. Each id is yielded at most once, so cyclic data
// never causes an infinite walk.
package authn
