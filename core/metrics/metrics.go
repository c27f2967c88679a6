package metrics

import (
	"time"

	"github.com/kilianp07/factoryccu/core/model"
)

// JobResult represents an archived job to be recorded.
type JobResult struct {
	JobID         string
	Type          model.JobType
	WorkpieceType model.WorkpieceType
	Status        model.Status
	Vehicle       string
	Steps         int
	// Duration runs from admission to the terminal transition.
	Duration   time.Duration
	FinishedAt time.Time
}

// MetricsSink records job results for observability purposes.
type MetricsSink interface {
	RecordJobResult(res JobResult) error
}

// StepRecord captures one dispatched or terminated step.
type StepRecord struct {
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

// StepRecorder records step transitions.
type StepRecorder interface {
	RecordStep(rec StepRecord) error
}

// RouteRecord captures the outcome of one routing attempt.
type RouteRecord struct {
	JobID    string
	Vehicle  string
	Nodes    int
	Distance float64
	Failed   bool
	Time     time.Time
}

// RouteRecorder records planned vehicle orders.
type RouteRecorder interface {
	RecordRoute(rec RouteRecord) error
}

// FleetSizeRecorder records the number of connected vehicles.
type FleetSizeRecorder interface {
	RecordFleetSize(size int) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordJobResult(JobResult) error { return nil }
func (NopSink) RecordStep(StepRecord) error     { return nil }
func (NopSink) RecordRoute(RouteRecord) error   { return nil }
func (NopSink) RecordFleetSize(int) error       { return nil }
