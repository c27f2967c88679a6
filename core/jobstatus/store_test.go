package jobstatus

import (
	"testing"
	"time"

	"github.com/kilianp07/factoryccu/core/model"
)

func TestMemoryStore_Filter(t *testing.T) {
	s := NewMemoryStore()
	s.Set(Status{JobID: "j1", Status: model.StatusFinished, WorkpieceType: model.WorkpieceRed})
	s.Set(Status{JobID: "j2", Status: model.StatusInProgress, WorkpieceType: model.WorkpieceRed})
	out := s.List(Filter{Status: model.StatusFinished})
	if len(out) != 1 || out[0].JobID != "j1" {
		t.Fatalf("filter failed: %#v", out)
	}
	out = s.List(Filter{WorkpieceType: model.WorkpieceRed})
	if len(out) != 2 {
		t.Fatalf("workpiece filter failed: %#v", out)
	}
}

func TestMemoryStore_SyncKeepsArchived(t *testing.T) {
	s := NewMemoryStore()
	s.Set(Status{JobID: "old", Status: model.StatusFinished})
	now := time.Now()
	job := model.Job{
		ID:        "j1",
		Type:      model.JobStorage,
		Status:    model.StatusInProgress,
		CreatedAt: now,
		Steps: []*model.Step{
			{ID: "a", Status: model.StatusFinished},
			{ID: "b", Status: model.StatusInProgress, Vehicle: "fts-1"},
			{ID: "c", Status: model.StatusEnqueued},
		},
	}
	s.Sync([]model.Job{job})
	out := s.List(Filter{})
	if len(out) != 2 {
		t.Fatalf("expected 2 entries, got %#v", out)
	}
	got := s.List(Filter{Type: model.JobStorage})
	if len(got) != 1 {
		t.Fatalf("type filter failed: %#v", got)
	}
	st := got[0]
	if st.CurrentStep != "b" || st.StepsFinished != 1 || st.StepsTotal != 3 || st.Vehicle != "fts-1" {
		t.Fatalf("unexpected summary %#v", st)
	}
}
