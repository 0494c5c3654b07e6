// Package network holds the contact network a simulation runs on: an
// undirected graph of people keyed by NodeID, with a stable node order.
package network

import (
	"github.com/pkg/errors"
)

var (
	ErrUnknownNode = errors.New("unknown node")
	ErrBadEdgeList = errors.New("bad edge list")
)

// NodeID identifies a person in the network.
type NodeID int64

// Graph is an undirected adjacency graph. Nodes are enumerated in the order
// they were first added, so iteration is deterministic across runs.
type Graph struct {
	order []NodeID
	adj   map[NodeID][]NodeID
	edges int
}

func New() *Graph {
	return &Graph{adj: make(map[NodeID][]NodeID)}
}

// AddNode adds id if it is not already present.
func (g *Graph) AddNode(id NodeID) {
	if _, ok := g.adj[id]; ok {
		return
	}
	g.adj[id] = nil
	g.order = append(g.order, id)
}

// AddEdge connects a and b, adding either node as needed. Self loops and
// repeated edges are ignored.
func (g *Graph) AddEdge(a, b NodeID) {
	g.AddNode(a)
	g.AddNode(b)
	if a == b || g.HasEdge(a, b) {
		return
	}
	g.adj[a] = append(g.adj[a], b)
	g.adj[b] = append(g.adj[b], a)
	g.edges++
}

func (g *Graph) HasEdge(a, b NodeID) bool {
	for _, n := range g.adj[a] {
		if n == b {
			return true
		}
	}
	return false
}

func (g *Graph) Has(id NodeID) bool {
	_, ok := g.adj[id]
	return ok
}

// Nodes returns the node ids in insertion order. The slice is shared; callers
// must not modify it.
func (g *Graph) Nodes() []NodeID { return g.order }

// Neighbors returns the neighbors of id in the order their edges were added.
func (g *Graph) Neighbors(id NodeID) []NodeID { return g.adj[id] }

// Degree returns the number of neighbors of id, or an error if id is absent.
func (g *Graph) Degree(id NodeID) (int, error) {
	nbrs, ok := g.adj[id]
	if !ok {
		return 0, errors.Wrapf(ErrUnknownNode, "node %d", id)
	}
	return len(nbrs), nil
}

func (g *Graph) Len() int      { return len(g.order) }
func (g *Graph) NumEdges() int { return g.edges }

// MeanDegree is 2|E|/|V|, or 0 for an empty graph.
func (g *Graph) MeanDegree() float64 {
	if len(g.order) == 0 {
		return 0
	}
	return 2 * float64(g.edges) / float64(len(g.order))
}
