package model

import "time"

// Status is the lifecycle state shared by jobs and their steps.
type Status string

const (
	StatusEnqueued   Status = "ENQUEUED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusFinished   Status = "FINISHED"
	StatusError      Status = "ERROR"
	StatusCancelled  Status = "CANCELLED"
)

// Terminal reports whether no further transition is expected for s.
func (s Status) Terminal() bool {
	return s == StatusFinished || s == StatusError || s == StatusCancelled
}

// JobType distinguishes production runs from storage requests.
type JobType string

const (
	JobProduction JobType = "PRODUCTION"
	JobStorage    JobType = "STORAGE"
)

// Valid reports whether t is a known job type.
func (t JobType) Valid() bool { return t == JobProduction || t == JobStorage }

// WorkpieceType is the colour coded workpiece family.
type WorkpieceType string

const (
	WorkpieceBlue  WorkpieceType = "BLUE"
	WorkpieceRed   WorkpieceType = "RED"
	WorkpieceWhite WorkpieceType = "WHITE"
)

// Valid reports whether w is one of the known workpiece types.
func (w WorkpieceType) Valid() bool {
	switch w {
	case WorkpieceBlue, WorkpieceRed, WorkpieceWhite:
		return true
	default:
		return false
	}
}

// JobRequest is the inbound request to produce or store a workpiece.
type JobRequest struct {
	Type          JobType       `json:"type"`
	WorkpieceType WorkpieceType `json:"workpieceType"`
	WorkpieceID   string        `json:"workpieceId,omitempty"`
	Timestamp     time.Time     `json:"timestamp,omitempty"`
}

// Job is a production or storage request decomposed into steps.
type Job struct {
	ID            string        `json:"orderId"`
	Type          JobType       `json:"orderType"`
	WorkpieceType WorkpieceType `json:"type"`
	WorkpieceID   string        `json:"workpieceId,omitempty"`
	Steps         []*Step       `json:"productionSteps"`
	Status        Status        `json:"state"`
	CreatedAt     time.Time     `json:"receivedAt"`
	StartedAt     *time.Time    `json:"startedAt,omitempty"`
	StoppedAt     *time.Time    `json:"stoppedAt,omitempty"`
}

// Step returns the step with the given id.
func (j *Job) Step(id string) (*Step, bool) {
	for _, s := range j.Steps {
		if s.ID == id {
			return s, true
		}
	}
	return nil, false
}

// Dependents returns the steps whose dependency is the step with the given id.
func (j *Job) Dependents(id string) []*Step {
	var out []*Step
	for _, s := range j.Steps {
		if s.DependsOn == id {
			out = append(out, s)
		}
	}
	return out
}

// Done reports whether every step of the job has finished.
func (j *Job) Done() bool {
	for _, s := range j.Steps {
		if s.Status != StatusFinished {
			return false
		}
	}
	return true
}

// Clone returns a deep copy suitable for snapshots and archives.
func (j *Job) Clone() Job {
	c := *j
	c.Steps = make([]*Step, len(j.Steps))
	for i, s := range j.Steps {
		sc := s.clone()
		c.Steps[i] = &sc
	}
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.StoppedAt != nil {
		t := *j.StoppedAt
		c.StoppedAt = &t
	}
	return c
}
