package graph

import (
	"errors"
	"fmt"
	"slices"

	"gonum.org/v1/gonum/graph/topo"
)

// Cycles returns every strongly connected set of ids that makes the
// membership graph unorderable, each sorted, plus ids that list themselves as
// a member. A nil result means the graph is acyclic.
func Cycles(edges []Edge) ([][]string, error) {
	var out [][]string
	for _, e := range edges {
		if e.Member == e.Group {
			out = append(out, []string{e.Member})
		}
	}

	m := Build(edges)
	if _, err := topo.Sort(m.g); err != nil {
		var unorderable topo.Unorderable
		if !errors.As(err, &unorderable) {
			return nil, fmt.Errorf("topological sort failed: %w", err)
		}
		for _, component := range unorderable {
			out = append(out, m.sortedNames(component))
		}
	}

	slices.SortFunc(out, func(a, b []string) int { return slices.Compare(a, b) })
	return slices.CompactFunc(out, slices.Equal[[]string]), nil
}

// Layer groups the ids reached at the same distance from the root.
type Layer struct {
	Level int      `json:"level"`
	IDs   []string `json:"ids"`
}

// Layers lists the groups reachable from root breadth first. Level 0 holds
// root itself. The graph must be acyclic.
func Layers(edges []Edge, root string) ([]Layer, error) {
	m := Build(edges)
	if _, err := topo.Sort(m.g); err != nil {
		return nil, fmt.Errorf("topological sort failed (cycle detected): %w", err)
	}

	rootID := m.node(root)
	visited := map[int64]bool{rootID: true}
	layers := []Layer{{Level: 0, IDs: []string{root}}}
	current := []int64{rootID}

	for level := 1; len(current) > 0; level++ {
		var next []int64
		for _, id := range current {
			successors := m.g.From(id)
			for successors.Next() {
				to := successors.Node().ID()
				if !visited[to] {
					visited[to] = true
					next = append(next, to)
				}
			}
		}
		if len(next) == 0 {
			break
		}
		names := make([]string, 0, len(next))
		for _, id := range next {
			names = append(names, m.names[id])
		}
		slices.Sort(names)
		layers = append(layers, Layer{Level: level, IDs: names})
		current = next
	}
	return layers, nil
}
