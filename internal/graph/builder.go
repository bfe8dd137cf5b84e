// Package graph builds gonum graphs from group membership edges for offline
// audits: cycle reports and layered closure listings.
package graph

import (
	"fmt"
	"slices"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
)

// Edge states that Member is a direct member of Group.
type Edge struct {
	Member string
	Group  string
}

// Membership is a directed graph with an edge from each member to each group
// it belongs to.
type Membership struct {
	g     *simple.DirectedGraph
	ids   map[string]int64
	names map[int64]string
}

// Build constructs the membership graph from edges.
func Build(edges []Edge) *Membership {
	m := &Membership{
		g:     simple.NewDirectedGraph(),
		ids:   make(map[string]int64),
		names: make(map[int64]string),
	}
	for _, e := range edges {
		from := m.node(e.Member)
		to := m.node(e.Group)
		if from == to {
			// simple graphs reject self loops; record them separately.
			continue
		}
		if !m.g.HasEdgeFromTo(from, to) {
			m.g.SetEdge(simple.Edge{F: simple.Node(from), T: simple.Node(to)})
		}
	}
	return m
}

func (m *Membership) node(name string) int64 {
	if id, ok := m.ids[name]; ok {
		return id
	}
	id := int64(len(m.ids))
	m.ids[name] = id
	m.names[id] = name
	m.g.AddNode(simple.Node(id))
	return id
}

// Name returns the principal id of a node.
func (m *Membership) Name(id int64) (string, error) {
	name, ok := m.names[id]
	if !ok {
		return "", fmt.Errorf("node ID %d not found in mapping", id)
	}
	return name, nil
}

// Graph exposes the underlying gonum graph.
func (m *Membership) Graph() graph.Directed { return m.g }

// Len returns the number of distinct ids in the graph.
func (m *Membership) Len() int { return len(m.ids) }

func (m *Membership) sortedNames(nodes []graph.Node) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, m.names[n.ID()])
	}
	slices.Sort(out)
	return out
}
