package groupfolder

import (
	"context"
	"strings"

	"github.com/terraconstructs/pluggableauth/internal/event"
	"github.com/terraconstructs/pluggableauth/internal/services/authn"
)

// Folder is what the membership subscriber needs from a group source.
type Folder interface {
	Prefix() string
	GetGroupsForPrincipal(id string) []string
	Contains(name string) bool
}

var _ Folder = (*GroupFolder)(nil)

// Subscribe installs the subscriber that fills in Groups of every principal
// created on bus from the group folders among the creating scope's
// authenticator plugins. A principal whose id names a group of such a folder
// is marked as a group.
func Subscribe(bus *event.Bus) {
	event.Subscribe(bus, func(_ context.Context, ev authn.PrincipalCreated) {
		SetGroupsForPrincipal(ev.CreatingScope(), ev.CreatedPrincipal())
	})
}

// SetGroupsForPrincipal appends to p.Groups the scope-prefixed ids of the
// groups p belongs to in every folder plugin of scope.
func SetGroupsForPrincipal(scope authn.Scope, p *authn.Principal) {
	for _, ap := range scope.AuthenticatorPlugins() {
		folder, ok := ap.Plugin.(Folder)
		if !ok {
			continue
		}
		for _, id := range folder.GetGroupsForPrincipal(p.ID) {
			p.Groups = append(p.Groups, scope.Prefix()+id)
		}

		prefix := scope.Prefix() + folder.Prefix()
		if name, ok := strings.CutPrefix(p.ID, prefix); ok && folder.Contains(name) {
			p.MarkGroup()
		}
	}
}
