package model

import "time"

// VehicleActionType is the action a vehicle performs when it reaches a node.
type VehicleActionType string

const (
	ActionDock VehicleActionType = "DOCK"
	ActionTurn VehicleActionType = "TURN"
	ActionPass VehicleActionType = "PASS"
)

// TurnDirection is the side a vehicle turns to.
type TurnDirection string

const (
	TurnLeft  TurnDirection = "LEFT"
	TurnRight TurnDirection = "RIGHT"
)

// VehicleActionMetadata carries optional action parameters.
type VehicleActionMetadata struct {
	Direction TurnDirection `json:"direction,omitempty"`
}

// VehicleAction is attached to a node of a vehicle order.
type VehicleAction struct {
	ID       string                 `json:"id"`
	Type     VehicleActionType      `json:"type"`
	Metadata *VehicleActionMetadata `json:"metadata,omitempty"`
}

// OrderNode is one node of a vehicle order.
type OrderNode struct {
	ID          string          `json:"id"`
	LinkedEdges []string        `json:"linkedEdges"`
	Actions     []VehicleAction `json:"actions,omitempty"`
}

// OrderEdge is one road segment of a vehicle order.
type OrderEdge struct {
	ID          string   `json:"id"`
	Length      float64  `json:"length"`
	LinkedNodes []string `json:"linkedNodes"`
}

// VehicleOrder is the node/edge sequence sent to a vehicle.
type VehicleOrder struct {
	Timestamp     time.Time   `json:"timestamp"`
	SerialNumber  string      `json:"serialNumber"`
	OrderID       string      `json:"orderId"`
	OrderUpdateID string      `json:"orderUpdateId"`
	Nodes         []OrderNode `json:"nodes"`
	Edges         []OrderEdge `json:"edges"`
}

// NodeIDs returns the ids of the order's nodes in travel order.
func (o VehicleOrder) NodeIDs() []string {
	ids := make([]string, len(o.Nodes))
	for i, n := range o.Nodes {
		ids[i] = n.ID
	}
	return ids
}

// ModuleActionMetadata carries the production parameters for a command.
type ModuleActionMetadata struct {
	Priority    string        `json:"priority,omitempty"`
	Duration    int64         `json:"duration,omitempty"`
	Type        WorkpieceType `json:"type,omitempty"`
	WorkpieceID string        `json:"workpieceId,omitempty"`
}

// ModuleAction is the single command executed by a module.
type ModuleAction struct {
	ID       string                `json:"id"`
	Command  Command               `json:"command"`
	Metadata *ModuleActionMetadata `json:"metadata,omitempty"`
}

// ModuleCommand is the production command published to a module.
type ModuleCommand struct {
	Timestamp     time.Time    `json:"timestamp"`
	SerialNumber  string       `json:"serialNumber"`
	OrderID       string       `json:"orderId"`
	OrderUpdateID string       `json:"orderUpdateId"`
	Action        ModuleAction `json:"action"`
}

// InstantActionType enumerates actions executed outside of orders.
type InstantActionType string

const (
	InstantReset          InstantActionType = "reset"
	InstantClearLoad      InstantActionType = "clearLoadHandler"
	InstantAnnounceOutput InstantActionType = "announceOutput"
	InstantCancelStorage  InstantActionType = "cancelStorageOrder"
)

// InstantActionItem is one entry of an InstantAction message.
type InstantActionItem struct {
	ActionID   string            `json:"actionId"`
	ActionType InstantActionType `json:"actionType"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// InstantAction is published to a device's instant action topic.
type InstantAction struct {
	Timestamp    time.Time           `json:"timestamp"`
	SerialNumber string              `json:"serialNumber"`
	Actions      []InstantActionItem `json:"actions"`
}
