package routing

import "errors"

var (
	// ErrUnknownNode is returned when a node id is not part of the graph.
	ErrUnknownNode = errors.New("unknown node")
	// ErrNoPath is returned when the target cannot be reached.
	ErrNoPath = errors.New("no path")
	// ErrPathTooShort is returned when a command sequence is requested for
	// fewer than two nodes.
	ErrPathTooShort = errors.New("path needs at least two nodes")
	// ErrCyclicPath is returned when a path visits a node twice.
	ErrCyclicPath = errors.New("path contains a repeated node")
	// ErrMissingEdge is returned when two consecutive path nodes are not
	// connected.
	ErrMissingEdge = errors.New("no edge between consecutive path nodes")
	// ErrInvalidTurn is returned for a heading pair without a defined turn.
	ErrInvalidTurn = errors.New("invalid turn")
)
