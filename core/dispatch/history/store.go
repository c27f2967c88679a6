// Package history persists archived jobs once they reach a terminal state.
package history

import (
	"context"
	"time"

	"github.com/kilianp07/factoryccu/core/model"
)

// Record captures one archived job.
type Record struct {
	Timestamp     time.Time           `json:"timestamp"`
	JobID         string              `json:"order_id"`
	JobType       model.JobType       `json:"order_type"`
	WorkpieceType model.WorkpieceType `json:"workpiece_type"`
	Status        model.Status        `json:"status"`
	Vehicle       string              `json:"vehicle,omitempty"`
	Job           model.Job           `json:"order"`
}

// NewRecord builds the archive entry for a terminal job.
func NewRecord(j *model.Job, vehicle string, at time.Time) Record {
	return Record{
		Timestamp:     at,
		JobID:         j.ID,
		JobType:       j.Type,
		WorkpieceType: j.WorkpieceType,
		Status:        j.Status,
		Vehicle:       vehicle,
		Job:           j.Clone(),
	}
}

// Query defines filters for retrieving records. Zero fields match everything.
type Query struct {
	Start         time.Time
	End           time.Time
	JobID         string
	Status        model.Status
	WorkpieceType model.WorkpieceType
}

// Matches reports whether r passes every filter of q.
func (q Query) Matches(r Record) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.JobID != "" && r.JobID != q.JobID {
		return false
	}
	if q.Status != "" && r.Status != q.Status {
		return false
	}
	return q.WorkpieceType == "" || r.WorkpieceType == q.WorkpieceType
}

// Store persists Records and supports querying.
type Store interface {
	Append(ctx context.Context, rec Record) error
	Query(ctx context.Context, q Query) ([]Record, error)
	Close() error
}

// NopStore discards every record.
type NopStore struct{}

func (NopStore) Append(context.Context, Record) error         { return nil }
func (NopStore) Query(context.Context, Query) ([]Record, error) { return nil, nil }
func (NopStore) Close() error                                  { return nil }
