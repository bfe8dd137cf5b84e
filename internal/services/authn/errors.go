package authn

import (
	"errors"
	"fmt"
)

var (
	// ErrPrincipalLookup is matched by PrincipalLookupError.
	ErrPrincipalLookup = errors.New("principal lookup failed")

	// ErrNoFactory means no principal factory is registered for an
	// (InfoKind, RequestKind) pair.
	ErrNoFactory = errors.New("no principal factory")

	// ErrNoPrincipalSource is returned when group expansion is requested on
	// a principal that was never bound to a lookup.
	ErrNoPrincipalSource = errors.New("principal has no lookup source")

	// ErrNotMemberAware is returned when members are requested from a
	// principal that does not expose them.
	ErrNotMemberAware = errors.New("principal is not member aware")
)

// PrincipalLookupError reports an id that no scope could resolve.
type PrincipalLookupError struct {
	ID string
}

func (e *PrincipalLookupError) Error() string {
	return fmt.Sprintf("principal lookup failed: %q", e.ID)
}

func (e *PrincipalLookupError) Is(target error) bool {
	return target == ErrPrincipalLookup
}
