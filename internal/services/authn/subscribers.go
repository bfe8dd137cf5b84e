package authn

import (
	"context"

	"github.com/terraconstructs/pluggableauth/internal/event"
)

// InstallDefaultSubscribers wires the special-group and member-aware
// subscribers onto bus.
func InstallDefaultSubscribers(bus *event.Bus, reg *Registry) {
	SubscribeSpecialGroups(bus, reg)
	SubscribeMemberAwareGroups(bus)
}

// SubscribeSpecialGroups adds the registry's everyone and authenticated group
// ids to every non-group principal created on bus.
func SubscribeSpecialGroups(bus *event.Bus, reg *Registry) {
	event.Subscribe(bus, func(_ context.Context, ev PrincipalCreated) {
		p := ev.CreatedPrincipal()
		if p.IsGroup() || ev.CreatedInfo().Kind() == InfoKindGroup {
			return
		}
		if g, ok := reg.EveryoneGroup(); ok {
			p.Groups = append(p.Groups, g.ID)
		}
		if g, ok := reg.AuthenticatedGroup(); ok {
			p.Groups = append(p.Groups, g.ID)
		}
	})
}

// SubscribeMemberAwareGroups exposes the members of looked-up groups through
// the principal.
func SubscribeMemberAwareGroups(bus *event.Bus) {
	event.Subscribe(bus, func(_ context.Context, ev FoundPrincipalCreated) {
		if ev.Info.Group == nil {
			return
		}
		ev.Principal.MarkGroup()
		ev.Principal.SetMemberAccessor(ev.Info.Group)
	})
}
