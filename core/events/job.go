package events

import (
	"time"

	"github.com/kilianp07/factoryccu/core/model"
)

// JobEvent is published on every job status change.
type JobEvent struct {
	JobID         string
	Type          model.JobType
	WorkpieceType model.WorkpieceType
	Status        model.Status
	// Reason explains rejections and aborts.
	Reason string
	Time   time.Time
}

// StepEvent is published when a step is dispatched or terminates.
type StepEvent struct {
	JobID    string
	StepID   string
	Kind     model.StepKind
	Module   model.ModuleType
	Command  model.Command
	Serial   string
	Vehicle  string
	Status   model.Status
	Duration time.Duration
	Time     time.Time
}
