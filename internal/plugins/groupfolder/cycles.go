package groupfolder

import (
	"context"
	"fmt"
	"slices"

	"github.com/terraconstructs/pluggableauth/internal/graph"
	"github.com/terraconstructs/pluggableauth/internal/services/authn"
)

type cycleFrame struct {
	ids []string
	pos int
}

// checkNoCycles walks the groups of every id depth first and fails as soon as
// an id reappears on the current descent path. Ids reachable along several
// paths are not cycles.
func checkNoCycles(ctx context.Context, ids []string, src authn.PrincipalSource) error {
	var path []string
	onPath := make(map[string]bool)
	stack := []*cycleFrame{{ids: ids}}

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		if top.pos >= len(top.ids) {
			stack = stack[:len(stack)-1]
			if len(path) > 0 && len(stack) > 0 {
				last := path[len(path)-1]
				path = path[:len(path)-1]
				delete(onPath, last)
			}
			continue
		}

		id := top.ids[top.pos]
		top.pos++
		if onPath[id] {
			return &GroupCycleError{ID: id, Path: append(slices.Clone(path), id)}
		}

		p, err := src.GetPrincipal(ctx, id)
		if err != nil {
			return fmt.Errorf("check group cycles at %q: %w", id, err)
		}
		path = append(path, id)
		onPath[id] = true
		stack = append(stack, &cycleFrame{ids: slices.Clone(p.Groups)})
	}
	return nil
}

// localSource resolves ids from a folder's own index. It is used for the
// cycle check when the folder is not inside an authentication scope.
type localSource struct {
	folder *GroupFolder
}

func (s localSource) GetPrincipal(_ context.Context, id string) (*authn.Principal, error) {
	p := authn.NewPrincipal(id, "", "")
	p.Groups = append(p.Groups, s.folder.GetGroupsForPrincipal(id)...)
	return p, nil
}

// Edges lists the folder's memberships as graph edges. Group ids carry the
// scope and folder prefixes, so they match member ids of nested groups.
func (f *GroupFolder) Edges() []graph.Edge {
	prefix := f.scopePrefix()
	var edges []graph.Edge
	for name, info := range f.groups.All() {
		for _, member := range info.Principals() {
			edges = append(edges, graph.Edge{Member: member, Group: prefix + f.prefix + name})
		}
	}
	return edges
}

// AuditCycles reports membership cycles across folders, such as ones loaded
// from storage without the SetPrincipals check.
func AuditCycles(folders ...*GroupFolder) ([][]string, error) {
	var edges []graph.Edge
	for _, f := range folders {
		edges = append(edges, f.Edges()...)
	}
	return graph.Cycles(edges)
}
