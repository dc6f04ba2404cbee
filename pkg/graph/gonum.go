package graph

import (
	gonumgraph "gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/iterator"
)

// simpleEdge adapts one of our multigraph Edges to gonum's single-edge
// view; topo.Sort only needs reachability, not per-edge shape/slot data,
// so collapsing parallel edges into one gonum edge per ordered pair is
// sufficient here. The full Edge/Source bookkeeping stays on Graph.
type simpleEdge struct{ from, to gonumgraph.Node }

func (e simpleEdge) From() gonumgraph.Node         { return e.from }
func (e simpleEdge) To() gonumgraph.Node           { return e.to }
func (e simpleEdge) ReversedEdge() gonumgraph.Edge { return simpleEdge{from: e.to, to: e.from} }

// Node implements gonum's graph.Graph.Node.
func (g *Graph) Node(id int64) gonumgraph.Node {
	if n, ok := g.nodes[id]; ok {
		return n
	}
	return nil
}

// Nodes implements gonum's graph.Graph.Nodes.
func (g *Graph) Nodes() gonumgraph.Nodes {
	ns := make([]gonumgraph.Node, 0, len(g.nodes))
	for _, id := range g.NodeIDs() {
		ns = append(ns, g.nodes[id])
	}
	return iterator.NewOrderedNodes(ns)
}

// From implements gonum's graph.Graph.From: all nodes reachable from id
// by a single edge (data or schedule), deduplicated.
func (g *Graph) From(id int64) gonumgraph.Nodes {
	seen := map[int64]bool{}
	var ns []gonumgraph.Node
	for _, e := range g.edges {
		if e.Src == id && !seen[e.Dst] {
			if n, ok := g.nodes[e.Dst]; ok {
				seen[e.Dst] = true
				ns = append(ns, n)
			}
		}
	}
	return iterator.NewOrderedNodes(ns)
}

// To implements gonum's graph.Directed.To: all nodes with an edge into id.
func (g *Graph) To(id int64) gonumgraph.Nodes {
	seen := map[int64]bool{}
	var ns []gonumgraph.Node
	for _, e := range g.edges {
		if e.Dst == id && !seen[e.Src] {
			if n, ok := g.nodes[e.Src]; ok {
				seen[e.Src] = true
				ns = append(ns, n)
			}
		}
	}
	return iterator.NewOrderedNodes(ns)
}

// HasEdgeBetween implements gonum's graph.Graph.HasEdgeBetween.
func (g *Graph) HasEdgeBetween(xid, yid int64) bool {
	return g.HasEdgeFromTo(xid, yid) || g.HasEdgeFromTo(yid, xid)
}

// HasEdgeFromTo implements gonum's graph.Directed.HasEdgeFromTo.
func (g *Graph) HasEdgeFromTo(uid, vid int64) bool {
	for _, e := range g.edges {
		if e.Src == uid && e.Dst == vid {
			return true
		}
	}
	return false
}

// Edge implements gonum's graph.Graph.Edge.
func (g *Graph) Edge(uid, vid int64) gonumgraph.Edge {
	if !g.HasEdgeFromTo(uid, vid) {
		return nil
	}
	return simpleEdge{from: g.nodes[uid], to: g.nodes[vid]}
}

var _ gonumgraph.Directed = (*Graph)(nil)
