package routing

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/kilianp07/factoryccu/core/logger"
)

// Path is an ordered node-index sequence with its total length. A single
// node path with zero distance means the vehicle is already at the target.
type Path struct {
	Nodes    []int
	Distance float64
}

// AtTarget reports whether the path requires no movement.
func (p Path) AtTarget() bool { return len(p.Nodes) <= 1 }

// Planner computes shortest paths over the factory graph while honouring
// the nodes currently claimed by other vehicles.
//
// Planner is not safe for concurrent use; the dispatch loop owns it.
type Planner struct {
	graph            *Graph
	blocker          NodeBlocker
	blockingDisabled bool
	log              logger.Logger
}

// NewPlanner creates a planner. A nil blocker disables spatial exclusion.
func NewPlanner(g *Graph, blocker NodeBlocker, log logger.Logger) *Planner {
	return &Planner{graph: g, blocker: blocker, log: log}
}

// SetGraph replaces the topology used by subsequent computations.
func (p *Planner) SetGraph(g *Graph) { p.graph = g }

// Graph returns the current topology.
func (p *Planner) Graph() *Graph { return p.graph }

// Blocker returns the node-blocking ledger, which may be nil.
func (p *Planner) Blocker() NodeBlocker { return p.blocker }

// DisableBlocking turns spatial exclusion off. Vehicles may then be routed
// through each other.
func (p *Planner) DisableBlocking(disabled bool) { p.blockingDisabled = disabled }

func (p *Planner) excluded(vehicleID string) map[int]bool {
	out := make(map[int]bool)
	if p.blockingDisabled || p.blocker == nil {
		return out
	}
	for _, id := range p.blocker.BlockedNodeIDs(vehicleID) {
		if i, ok := p.graph.Index(id); ok {
			out[i] = true
		}
	}
	return out
}

// ShortestPath returns the shortest route from start to target for the
// given vehicle. Edges touching a node blocked for another vehicle are not
// considered, except for the start node the vehicle already occupies.
func (p *Planner) ShortestPath(startID, targetID, vehicleID string) (Path, error) {
	if p.graph == nil {
		return Path{}, fmt.Errorf("%w: no layout loaded", ErrNoPath)
	}
	start, ok := p.graph.Index(startID)
	if !ok {
		return Path{}, fmt.Errorf("%w: %s", ErrUnknownNode, startID)
	}
	target, ok := p.graph.Index(targetID)
	if !ok {
		return Path{}, fmt.Errorf("%w: %s", ErrUnknownNode, targetID)
	}
	if start == target {
		return Path{Nodes: []int{start}}, nil
	}

	excluded := p.excluded(vehicleID)
	delete(excluded, start)
	if excluded[target] {
		return Path{}, fmt.Errorf("%w: target %s is blocked", ErrNoPath, targetID)
	}

	adj := p.adjacency(excluded)
	n := p.graph.Len()
	inf := math.Inf(1)
	dist := make([]float64, n)
	prev := make([]int, n)
	visited := make([]bool, n)
	for i := range dist {
		dist[i] = inf
		prev[i] = -1
	}
	dist[start] = 0

	for {
		u := -1
		best := inf
		for i := 0; i < n; i++ {
			if !visited[i] && dist[i] < best {
				u, best = i, dist[i]
			}
		}
		if u == -1 {
			break
		}
		visited[u] = true
		if u == target {
			break
		}
		for v, w := range adj.RawRowView(u) {
			if visited[v] || math.IsInf(w, 1) {
				continue
			}
			if d := dist[u] + w; d < dist[v] {
				dist[v] = d
				prev[v] = u
			}
		}
	}

	if math.IsInf(dist[target], 1) {
		return Path{}, fmt.Errorf("%w: %s -> %s", ErrNoPath, startID, targetID)
	}
	var nodes []int
	for at := target; at != -1; at = prev[at] {
		nodes = append([]int{at}, nodes...)
	}
	p.log.Debugw("path computed", map[string]any{
		"vehicle":  vehicleID,
		"from":     startID,
		"to":       targetID,
		"distance": dist[target],
		"hops":     len(nodes) - 1,
	})
	return Path{Nodes: nodes, Distance: dist[target]}, nil
}

// adjacency builds the dense weight matrix over non-excluded edges. Missing
// connections are +Inf; parallel edges keep the shortest length.
func (p *Planner) adjacency(excluded map[int]bool) *mat.Dense {
	n := p.graph.Len()
	data := make([]float64, n*n)
	for i := range data {
		data[i] = math.Inf(1)
	}
	adj := mat.NewDense(n, n, data)
	for _, e := range p.graph.edges {
		from := p.graph.index[e.From]
		to := p.graph.index[e.To]
		if from == to || excluded[from] || excluded[to] {
			continue
		}
		if e.Length < adj.At(from, to) {
			adj.Set(from, to, e.Length)
		}
	}
	return adj
}

// NodeIDs converts a path into node ids.
func (p *Planner) NodeIDs(path Path) []string {
	ids := make([]string, len(path.Nodes))
	for i, idx := range path.Nodes {
		ids[i] = p.graph.Node(idx).ID
	}
	return ids
}
