package history

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/kilianp07/factoryccu/core/model"
)

func sampleJob(id string, status model.Status, wp model.WorkpieceType) *model.Job {
	return &model.Job{
		ID:            id,
		Type:          model.JobProduction,
		WorkpieceType: wp,
		Status:        status,
		Steps:         []*model.Step{model.NewMoveStep("s1", "", model.ModuleHBW, "")},
	}
}

func TestRecord_JSON(t *testing.T) {
	rec := NewRecord(sampleJob("j1", model.StatusFinished, model.WorkpieceBlue), "fts-1", time.Unix(0, 0))
	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, k := range []string{"timestamp", "order_id", "order_type", "workpiece_type", "status", "vehicle", "order"} {
		if _, ok := m[k]; !ok {
			t.Errorf("missing key %s", k)
		}
	}
}

func TestRecord_IsDetachedFromJob(t *testing.T) {
	j := sampleJob("j1", model.StatusFinished, model.WorkpieceRed)
	rec := NewRecord(j, "", time.Now())
	j.Steps[0].Status = model.StatusError
	if rec.Job.Steps[0].Status != model.StatusEnqueued {
		t.Fatalf("archived step mutated: %s", rec.Job.Steps[0].Status)
	}
}

func TestQueryMatches(t *testing.T) {
	now := time.Now()
	rec := NewRecord(sampleJob("j1", model.StatusError, model.WorkpieceWhite), "", now)
	cases := []struct {
		name string
		q    Query
		want bool
	}{
		{"empty", Query{}, true},
		{"status", Query{Status: model.StatusError}, true},
		{"other status", Query{Status: model.StatusFinished}, false},
		{"workpiece", Query{WorkpieceType: model.WorkpieceRed}, false},
		{"job", Query{JobID: "j1"}, true},
		{"before window", Query{Start: now.Add(time.Minute)}, false},
		{"after window", Query{End: now.Add(-time.Minute)}, false},
	}
	for _, c := range cases {
		if got := c.q.Matches(rec); got != c.want {
			t.Errorf("%s: got %v want %v", c.name, got, c.want)
		}
	}
}

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	base := time.Now()
	recs := []Record{
		NewRecord(sampleJob("j1", model.StatusFinished, model.WorkpieceBlue), "fts-1", base),
		NewRecord(sampleJob("j2", model.StatusError, model.WorkpieceRed), "fts-2", base.Add(time.Second)),
		NewRecord(sampleJob("j3", model.StatusFinished, model.WorkpieceRed), "fts-1", base.Add(2*time.Second)),
	}
	for _, r := range recs {
		if err := s.Append(ctx, r); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	out, err := s.Query(ctx, Query{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("expected 3 records, got %d", len(out))
	}
	out, err = s.Query(ctx, Query{Status: model.StatusFinished, WorkpieceType: model.WorkpieceRed})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(out) != 1 || out[0].JobID != "j3" {
		t.Fatalf("unexpected filter result: %#v", out)
	}
}

func TestJSONLStore(t *testing.T) {
	s, err := NewJSONLStore(filepath.Join(t.TempDir(), "history.jsonl"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer func() { _ = s.Close() }()
	exerciseStore(t, s)
}

func TestRotatingJSONLStore(t *testing.T) {
	s, err := NewRotatingJSONLStore(filepath.Join(t.TempDir(), "archive", "history.jsonl"), 1, 2, 1)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer func() { _ = s.Close() }()
	exerciseStore(t, s)
}

func TestSQLiteStore(t *testing.T) {
	s, err := NewSQLiteStore("file:history_test.db?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = s.Close() }()
	exerciseStore(t, s)
}

func TestNopStore(t *testing.T) {
	var s Store = NopStore{}
	if err := s.Append(context.Background(), Record{}); err != nil {
		t.Fatalf("append: %v", err)
	}
	out, _ := s.Query(context.Background(), Query{})
	if len(out) != 0 {
		t.Fatalf("expected nothing")
	}
}
