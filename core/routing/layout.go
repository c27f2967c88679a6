package routing

import (
	"fmt"

	"github.com/kilianp07/factoryccu/core/model"
)

// Layout is the serialisable factory topology.
type Layout struct {
	Nodes []LayoutNode `json:"nodes" yaml:"nodes"`
	Roads []LayoutRoad `json:"roads" yaml:"roads"`
}

// LayoutNode is an intersection or a module docking point.
type LayoutNode struct {
	ID           string           `json:"id" yaml:"id"`
	ModuleSerial string           `json:"serialNumber,omitempty" yaml:"serialNumber,omitempty"`
	ModuleType   model.ModuleType `json:"type,omitempty" yaml:"type,omitempty"`
}

// LayoutRoad is a road segment. Bidirectional roads expand into two edges
// with opposite headings.
type LayoutRoad struct {
	From          string    `json:"from" yaml:"from"`
	To            string    `json:"to" yaml:"to"`
	Length        float64   `json:"length" yaml:"length"`
	Direction     Direction `json:"direction" yaml:"direction"`
	Bidirectional bool      `json:"bidirectional,omitempty" yaml:"bidirectional,omitempty"`
}

// Graph builds the routing graph for the layout.
func (l Layout) Graph() (*Graph, error) {
	nodes := make([]Node, len(l.Nodes))
	for i, n := range l.Nodes {
		if n.ModuleSerial != "" && n.ModuleType == "" {
			return nil, fmt.Errorf("node %s: module %s has no type", n.ID, n.ModuleSerial)
		}
		nodes[i] = Node{ID: n.ID, ModuleSerial: n.ModuleSerial, ModuleType: n.ModuleType}
	}
	edges := make([]Edge, 0, len(l.Roads)*2)
	for _, r := range l.Roads {
		switch r.Direction {
		case North, East, South, West:
		default:
			return nil, fmt.Errorf("road %s -> %s: unknown direction %q", r.From, r.To, r.Direction)
		}
		edges = append(edges, Edge{From: r.From, To: r.To, Length: r.Length, Direction: r.Direction})
		if r.Bidirectional {
			edges = append(edges, Edge{From: r.To, To: r.From, Length: r.Length, Direction: r.Direction.Opposite()})
		}
	}
	return NewGraph(nodes, edges)
}
