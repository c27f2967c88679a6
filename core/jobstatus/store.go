// Package jobstatus keeps a concurrency-safe read model of the jobs known to
// the dispatch engine, refreshed from engine snapshots.
package jobstatus

import (
	"sort"
	"sync"
	"time"

	"github.com/kilianp07/factoryccu/core/model"
)

// Status summarises one job.
type Status struct {
	JobID         string              `json:"order_id"`
	Type          model.JobType       `json:"order_type"`
	WorkpieceType model.WorkpieceType `json:"workpiece_type"`
	Status        model.Status        `json:"status"`
	// CurrentStep is the id of the step in progress, if any.
	CurrentStep   string     `json:"current_step,omitempty"`
	StepsTotal    int        `json:"steps_total"`
	StepsFinished int        `json:"steps_finished"`
	Vehicle       string     `json:"vehicle,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	StoppedAt     *time.Time `json:"stopped_at,omitempty"`
}

// FromJob summarises j.
func FromJob(j model.Job) Status {
	st := Status{
		JobID:         j.ID,
		Type:          j.Type,
		WorkpieceType: j.WorkpieceType,
		Status:        j.Status,
		StepsTotal:    len(j.Steps),
		CreatedAt:     j.CreatedAt,
		StartedAt:     j.StartedAt,
		StoppedAt:     j.StoppedAt,
	}
	for _, s := range j.Steps {
		switch s.Status {
		case model.StatusFinished:
			st.StepsFinished++
		case model.StatusInProgress:
			st.CurrentStep = s.ID
		}
		if s.Vehicle != "" {
			st.Vehicle = s.Vehicle
		}
	}
	return st
}

type Filter struct {
	Status        model.Status
	WorkpieceType model.WorkpieceType
	Type          model.JobType
}

type Store interface {
	Set(Status)
	Sync(jobs []model.Job)
	List(Filter) []Status
}

type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]Status
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: map[string]Status{}}
}

func (s *MemoryStore) Set(st Status) {
	s.mu.Lock()
	s.data[st.JobID] = st
	s.mu.Unlock()
}

// Sync upserts every job of a snapshot. Jobs missing from the snapshot are
// kept so archived jobs stay visible.
func (s *MemoryStore) Sync(jobs []model.Job) {
	s.mu.Lock()
	for _, j := range jobs {
		s.data[j.ID] = FromJob(j)
	}
	s.mu.Unlock()
}

func (s *MemoryStore) List(f Filter) []Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]Status, 0, len(s.data))
	for _, st := range s.data {
		if f.Status != "" && st.Status != f.Status {
			continue
		}
		if f.WorkpieceType != "" && st.WorkpieceType != f.WorkpieceType {
			continue
		}
		if f.Type != "" && st.Type != f.Type {
			continue
		}
		res = append(res, st)
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].CreatedAt.Equal(res[j].CreatedAt) {
			return res[i].JobID < res[j].JobID
		}
		return res[i].CreatedAt.Before(res[j].CreatedAt)
	})
	return res
}
