package groupfolder

import (
	"fmt"

	"github.com/terraconstructs/pluggableauth/internal/services/authn"
)

// PrincipalsAddedToGroup is published after principals became members of a
// group. GroupID carries the scope and folder prefixes.
type PrincipalsAddedToGroup struct {
	PrincipalIDs []string
	GroupID      string
}

func (e PrincipalsAddedToGroup) String() string {
	return fmt.Sprintf("<PrincipalsAddedToGroup %v %q>", e.PrincipalIDs, e.GroupID)
}

// PrincipalsRemovedFromGroup is published after principals stopped being
// members of a group.
type PrincipalsRemovedFromGroup struct {
	PrincipalIDs []string
	GroupID      string
}

func (e PrincipalsRemovedFromGroup) String() string {
	return fmt.Sprintf("<PrincipalsRemovedFromGroup %v %q>", e.PrincipalIDs, e.GroupID)
}

// GroupAdded is published when a group is stored in a folder. The group's id
// carries the folder prefix only.
type GroupAdded struct {
	Group *authn.Principal
}

func (e GroupAdded) String() string {
	return fmt.Sprintf("<GroupAdded %q>", e.Group.ID)
}
