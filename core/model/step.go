package model

import "time"

// StepKind discriminates the payload carried by a Step.
type StepKind string

const (
	StepMove    StepKind = "NAVIGATION"
	StepProduce StepKind = "MANUFACTURE"
)

// MoveStep sends a vehicle from one module type to another. An empty Source
// means the vehicle is fetched from wherever it currently is.
type MoveStep struct {
	Source ModuleType `json:"source,omitempty"`
	Target ModuleType `json:"target"`
}

// ProduceStep runs a command on a stationary module.
type ProduceStep struct {
	Module   ModuleType    `json:"moduleType"`
	Command  Command       `json:"command"`
	Duration time.Duration `json:"duration,omitempty"`
}

// Step is a single move or produce action within a job. Exactly one of Move
// and Produce is set, matching Kind.
type Step struct {
	ID        string       `json:"id"`
	Kind      StepKind     `json:"type"`
	Status    Status       `json:"state"`
	DependsOn string       `json:"dependentActionId,omitempty"`
	Move      *MoveStep    `json:"navigation,omitempty"`
	Produce   *ProduceStep `json:"manufacture,omitempty"`
	StartedAt *time.Time   `json:"startedAt,omitempty"`
	StoppedAt *time.Time   `json:"stoppedAt,omitempty"`
	// Serial is the module chosen for the step once dispatched.
	Serial string `json:"serialNumber,omitempty"`
	// Vehicle is the vehicle driving a move step.
	Vehicle string `json:"vehicleSerialNumber,omitempty"`
	Result  string `json:"result,omitempty"`
}

// NewMoveStep builds an enqueued move step.
func NewMoveStep(id string, source, target ModuleType, dependsOn string) *Step {
	return &Step{
		ID:        id,
		Kind:      StepMove,
		Status:    StatusEnqueued,
		DependsOn: dependsOn,
		Move:      &MoveStep{Source: source, Target: target},
	}
}

// NewProduceStep builds an enqueued production step.
func NewProduceStep(id string, module ModuleType, cmd Command, dependsOn string) *Step {
	return &Step{
		ID:        id,
		Kind:      StepProduce,
		Status:    StatusEnqueued,
		DependsOn: dependsOn,
		Produce:   &ProduceStep{Module: module, Command: cmd},
	}
}

// ModuleType returns the module type the step acts on: the target of a move
// or the module of a production step.
func (s *Step) ModuleType() ModuleType {
	switch s.Kind {
	case StepMove:
		return s.Move.Target
	case StepProduce:
		return s.Produce.Module
	default:
		return ""
	}
}

func (s *Step) clone() Step {
	c := *s
	if s.Move != nil {
		m := *s.Move
		c.Move = &m
	}
	if s.Produce != nil {
		p := *s.Produce
		c.Produce = &p
	}
	if s.StartedAt != nil {
		t := *s.StartedAt
		c.StartedAt = &t
	}
	if s.StoppedAt != nil {
		t := *s.StoppedAt
		c.StoppedAt = &t
	}
	return c
}
