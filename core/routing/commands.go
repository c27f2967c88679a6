package routing

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/factoryccu/core/model"
)

type headingPair struct {
	in  Direction
	out Direction
}

var turns = map[headingPair]model.TurnDirection{
	{North, East}: model.TurnRight,
	{North, West}: model.TurnLeft,
	{South, East}: model.TurnLeft,
	{South, West}: model.TurnRight,
	{East, North}: model.TurnLeft,
	{East, South}: model.TurnRight,
	{West, North}: model.TurnRight,
	{West, South}: model.TurnLeft,
}

// InferAction returns the action a vehicle performs at a node given the
// heading of the segment it arrives on and the one it leaves on.
func InferAction(in, out Direction) (model.VehicleAction, error) {
	if in == out {
		return model.VehicleAction{ID: uuid.NewString(), Type: model.ActionPass}, nil
	}
	dir, ok := turns[headingPair{in, out}]
	if !ok {
		return model.VehicleAction{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTurn, in, out)
	}
	return model.VehicleAction{
		ID:       uuid.NewString(),
		Type:     model.ActionTurn,
		Metadata: &model.VehicleActionMetadata{Direction: dir},
	}, nil
}

// BuildCommandSequence converts a path into a vehicle order. The first node
// carries no action, interior nodes get a PASS or TURN, and the first module
// node reached after the start gets a DOCK with finalActionID. Conversion
// stops at that module even if the path continues.
func (p *Planner) BuildCommandSequence(path Path, jobID, commandSequenceID, vehicleID, finalActionID string) (model.VehicleOrder, error) {
	g := p.graph
	if g == nil {
		return model.VehicleOrder{}, fmt.Errorf("%w: no layout loaded", ErrNoPath)
	}
	if len(path.Nodes) < 2 {
		return model.VehicleOrder{}, ErrPathTooShort
	}
	seen := make(map[int]bool, len(path.Nodes))
	segments := make([]Edge, len(path.Nodes)-1)
	for i, idx := range path.Nodes {
		if idx < 0 || idx >= g.Len() {
			return model.VehicleOrder{}, fmt.Errorf("%w: index %d", ErrUnknownNode, idx)
		}
		if seen[idx] {
			return model.VehicleOrder{}, fmt.Errorf("%w: %s", ErrCyclicPath, g.Node(idx).ID)
		}
		seen[idx] = true
		if i == 0 {
			continue
		}
		e, ok := g.Edge(path.Nodes[i-1], idx)
		if !ok {
			return model.VehicleOrder{}, fmt.Errorf("%w: %s -> %s", ErrMissingEdge, g.Node(path.Nodes[i-1]).ID, g.Node(idx).ID)
		}
		segments[i-1] = e
	}

	order := model.VehicleOrder{
		Timestamp:     time.Now(),
		SerialNumber:  vehicleID,
		OrderID:       jobID,
		OrderUpdateID: commandSequenceID,
	}
	last := len(path.Nodes) - 1
	for i, idx := range path.Nodes {
		node := g.Node(idx)
		on := model.OrderNode{ID: node.ID, LinkedEdges: []string{}}
		if i > 0 {
			in := segments[i-1]
			on.LinkedEdges = append(on.LinkedEdges, in.ID)
			order.Edges = append(order.Edges, model.OrderEdge{
				ID:          in.ID,
				Length:      in.Length,
				LinkedNodes: []string{in.From, in.To},
			})
		}
		if i == 0 {
			on.LinkedEdges = append(on.LinkedEdges, segments[0].ID)
			order.Nodes = append(order.Nodes, on)
			continue
		}
		if i < last {
			act, err := InferAction(segments[i-1].Direction, segments[i].Direction)
			if err != nil {
				return model.VehicleOrder{}, fmt.Errorf("node %s: %w", node.ID, err)
			}
			on.Actions = append(on.Actions, act)
		}
		if node.IsModule() {
			on.Actions = append(on.Actions, model.VehicleAction{ID: finalActionID, Type: model.ActionDock})
			order.Nodes = append(order.Nodes, on)
			break
		}
		if i < last {
			on.LinkedEdges = append(on.LinkedEdges, segments[i].ID)
		}
		order.Nodes = append(order.Nodes, on)
	}
	return order, nil
}
