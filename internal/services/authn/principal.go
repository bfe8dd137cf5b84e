package authn

import (
	"context"
	"fmt"
	"iter"
	"slices"
)

// PrincipalSource resolves fully qualified principal ids.
type PrincipalSource interface {
	GetPrincipal(ctx context.Context, id string) (*Principal, error)
}

// Principal is an authenticated or looked-up security principal.
//
// Groups holds the ids of the groups the principal is a direct member of and
// is filled in by event subscribers while the principal is being created.
type Principal struct {
	ID          string
	Title       string
	Description string
	Groups      []string

	group   bool
	members MemberAccessor
	source  PrincipalSource
}

// NewPrincipal returns a principal with no group memberships.
func NewPrincipal(id, title, description string) *Principal {
	return &Principal{
		ID:          id,
		Title:       title,
		Description: description,
		Groups:      []string{},
	}
}

func (p *Principal) String() string {
	return fmt.Sprintf("Principal(%q)", p.ID)
}

// IsGroup reports whether the principal represents a group.
func (p *Principal) IsGroup() bool { return p.group }

// MarkGroup flags the principal as a group.
func (p *Principal) MarkGroup() { p.group = true }

// IsMemberAware reports whether the group's members can be read and written
// through the principal.
func (p *Principal) IsMemberAware() bool { return p.members != nil }

// SetMemberAccessor makes a group principal member aware.
func (p *Principal) SetMemberAccessor(m MemberAccessor) { p.members = m }

// Members returns the direct members of a member-aware group.
func (p *Principal) Members() ([]string, error) {
	if p.members == nil {
		return nil, fmt.Errorf("%s: %w", p, ErrNotMemberAware)
	}
	return p.members.Members(), nil
}

// SetMembers replaces the direct members of a member-aware group.
func (p *Principal) SetMembers(ctx context.Context, ids []string) error {
	if p.members == nil {
		return fmt.Errorf("%s: %w", p, ErrNotMemberAware)
	}
	return p.members.SetMembers(ctx, ids)
}

// SetSource binds the lookup used to expand nested groups.
func (p *Principal) SetSource(src PrincipalSource) { p.source = src }

// Source returns the lookup bound to the principal, or nil.
func (p *Principal) Source() PrincipalSource { return p.source }

type groupCursor struct {
	ids []string
	pos int
}

// AllGroups yields the transitive closure of the principal's groups in
// depth-first pre-order. Every id is yielded once even when groups nest
// cyclically. The sequence can be ranged over again to restart the walk.
//
// A failed lookup is yielded as an error and ends the sequence.
func (p *Principal) AllGroups(ctx context.Context) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if len(p.Groups) == 0 {
			return
		}
		if p.source == nil {
			yield("", fmt.Errorf("%s: %w", p, ErrNoPrincipalSource))
			return
		}

		seen := make(map[string]struct{})
		stack := []*groupCursor{{ids: slices.Clone(p.Groups)}}
		for len(stack) > 0 {
			top := stack[len(stack)-1]
			if top.pos >= len(top.ids) {
				stack = stack[:len(stack)-1]
				continue
			}
			id := top.ids[top.pos]
			top.pos++
			if _, ok := seen[id]; ok {
				continue
			}
			if !yield(id, nil) {
				return
			}
			seen[id] = struct{}{}

			group, err := p.source.GetPrincipal(ctx, id)
			if err != nil {
				yield("", fmt.Errorf("expand group %q: %w", id, err))
				return
			}
			if len(group.Groups) > 0 {
				stack = append(stack, &groupCursor{ids: slices.Clone(group.Groups)})
			}
		}
	}
}

// CollectAllGroups drains AllGroups into a slice.
func (p *Principal) CollectAllGroups(ctx context.Context) ([]string, error) {
	var out []string
	for id, err := range p.AllGroups(ctx) {
		if err != nil {
			return out, err
		}
		out = append(out, id)
	}
	return out, nil
}
