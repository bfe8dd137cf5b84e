package groupfolder

import (
	"context"
	"slices"
	"sync"
)

// GroupInformation is a stored group: its title, description and the ids of
// its direct members.
type GroupInformation struct {
	Title       string
	Description string

	mu         sync.RWMutex
	principals []string
	folder     *GroupFolder
	name       string
}

// NewGroupInformation returns a detached group with the given members.
func NewGroupInformation(title, description string, principals ...string) *GroupInformation {
	return &GroupInformation{
		Title:       title,
		Description: description,
		principals:  slices.Clone(principals),
	}
}

// SetLocation is called by the folder's container when the group is stored.
func (g *GroupInformation) SetLocation(parent any, name string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.folder, _ = parent.(*GroupFolder)
	g.name = name
}

func (g *GroupInformation) detach() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.folder = nil
	g.name = ""
}

// Name is the key the group is stored under, or "" when detached.
func (g *GroupInformation) Name() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.name
}

// Folder returns the folder holding the group, or nil.
func (g *GroupInformation) Folder() *GroupFolder {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.folder
}

// Principals returns a copy of the member ids in stored order.
func (g *GroupInformation) Principals() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return slices.Clone(g.principals)
}

func (g *GroupInformation) setPrincipalList(ids []string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.principals = slices.Clone(ids)
}

// SetPrincipals replaces the member list. When the group is stored in a
// folder, the folder's inverse index is updated and the new membership is
// checked for cycles; on a cycle the previous list and index are restored
// and a *GroupCycleError is returned. Membership events are published only
// after a successful change.
func (g *GroupInformation) SetPrincipals(ctx context.Context, ids []string) error {
	f := g.Folder()
	if f == nil {
		g.setPrincipalList(ids)
		return nil
	}
	return f.setPrincipals(ctx, g, ids, true, nil)
}

// RestorePrincipals replaces the member list without the cycle check. It is
// meant for reverting a change that was already validated, such as one whose
// persistence failed.
func (g *GroupInformation) RestorePrincipals(ctx context.Context, ids []string) error {
	f := g.Folder()
	if f == nil {
		g.setPrincipalList(ids)
		return nil
	}
	return f.setPrincipals(ctx, g, ids, false, nil)
}

// UpdatePrincipals replaces the member list like SetPrincipals and then runs
// commit before any event is published. When commit fails the previous list
// and index are restored and the commit error is returned.
func (g *GroupInformation) UpdatePrincipals(ctx context.Context, ids []string, commit func(context.Context) error) error {
	f := g.Folder()
	if f == nil {
		if commit != nil {
			if err := commit(ctx); err != nil {
				return err
			}
		}
		g.setPrincipalList(ids)
		return nil
	}
	return f.setPrincipals(ctx, g, ids, true, commit)
}

// groupMembers exposes a group's members through authn.MemberAccessor.
type groupMembers struct {
	info *GroupInformation
}

func (m *groupMembers) Members() []string { return m.info.Principals() }

func (m *groupMembers) SetMembers(ctx context.Context, ids []string) error {
	return m.info.SetPrincipals(ctx, ids)
}
