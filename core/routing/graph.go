package routing

import (
	"fmt"

	"github.com/kilianp07/factoryccu/core/model"
)

// Direction is the compass heading of a road segment.
type Direction string

const (
	North Direction = "NORTH"
	East  Direction = "EAST"
	South Direction = "SOUTH"
	West  Direction = "WEST"
)

// Opposite returns the heading of the reverse segment.
func (d Direction) Opposite() Direction {
	switch d {
	case North:
		return South
	case South:
		return North
	case East:
		return West
	case West:
		return East
	default:
		return d
	}
}

// Node is an intersection or the docking point of a module.
type Node struct {
	ID           string
	ModuleSerial string
	ModuleType   model.ModuleType
}

// IsModule reports whether the node is bound to a module.
func (n Node) IsModule() bool { return n.ModuleSerial != "" }

// Edge is a directed road segment.
type Edge struct {
	ID        string
	From      string
	To        string
	Length    float64
	Direction Direction
}

// Graph is the immutable factory topology. Replace it as a whole when the
// layout changes.
type Graph struct {
	nodes    []Node
	edges    []Edge
	index    map[string]int
	modules  map[string]int
	outgoing map[int][]int
}

// NewGraph validates nodes and edges and builds the lookup tables.
func NewGraph(nodes []Node, edges []Edge) (*Graph, error) {
	g := &Graph{
		nodes:    append([]Node(nil), nodes...),
		index:    make(map[string]int, len(nodes)),
		modules:  make(map[string]int),
		outgoing: make(map[int][]int),
	}
	for i, n := range g.nodes {
		if n.ID == "" {
			return nil, fmt.Errorf("node %d: empty id", i)
		}
		if _, dup := g.index[n.ID]; dup {
			return nil, fmt.Errorf("duplicate node %s", n.ID)
		}
		g.index[n.ID] = i
		if n.IsModule() {
			g.modules[n.ModuleSerial] = i
		}
	}
	for _, e := range edges {
		from, ok := g.index[e.From]
		if !ok {
			return nil, fmt.Errorf("edge %s -> %s: %w: %s", e.From, e.To, ErrUnknownNode, e.From)
		}
		if _, ok := g.index[e.To]; !ok {
			return nil, fmt.Errorf("edge %s -> %s: %w: %s", e.From, e.To, ErrUnknownNode, e.To)
		}
		if e.Length < 0 {
			return nil, fmt.Errorf("edge %s -> %s: negative length", e.From, e.To)
		}
		if e.ID == "" {
			e.ID = e.From + "-" + e.To
		}
		g.edges = append(g.edges, e)
		g.outgoing[from] = append(g.outgoing[from], len(g.edges)-1)
	}
	return g, nil
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.nodes) }

// Node returns the node at index i.
func (g *Graph) Node(i int) Node { return g.nodes[i] }

// Nodes returns a copy of all nodes.
func (g *Graph) Nodes() []Node { return append([]Node(nil), g.nodes...) }

// Edges returns a copy of all edges.
func (g *Graph) Edges() []Edge { return append([]Edge(nil), g.edges...) }

// Index returns the index of the node with the given id.
func (g *Graph) Index(id string) (int, bool) {
	i, ok := g.index[id]
	return i, ok
}

// ModuleNode returns the node bound to the module with the given serial.
func (g *Graph) ModuleNode(serial string) (Node, bool) {
	i, ok := g.modules[serial]
	if !ok {
		return Node{}, false
	}
	return g.nodes[i], true
}

// Edge returns the shortest edge leading from node index from to node index to.
func (g *Graph) Edge(from, to int) (Edge, bool) {
	var (
		best  Edge
		found bool
	)
	for _, ei := range g.outgoing[from] {
		e := g.edges[ei]
		if g.index[e.To] != to {
			continue
		}
		if !found || e.Length < best.Length {
			best, found = e, true
		}
	}
	return best, found
}
