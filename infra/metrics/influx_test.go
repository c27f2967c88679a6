package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/factoryccu/core/metrics"
	"github.com/kilianp07/factoryccu/core/model"
)

func TestInfluxSink_RecordJobResult(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		body = string(data)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sink := NewInfluxSink(srv.URL, "token", "org", "bucket")
	now := time.Now()
	rec := coremetrics.JobResult{
		JobID:         "job-1",
		Type:          model.JobProduction,
		WorkpieceType: model.WorkpieceBlue,
		Status:        model.StatusFinished,
		Vehicle:       "fts-1",
		Steps:         9,
		Duration:      90 * time.Second,
		FinishedAt:    now,
	}
	if err := sink.RecordJobResult(rec); err != nil {
		t.Fatalf("record error: %v", err)
	}
	p := write.NewPointWithMeasurement("job_archived").
		AddTag("order_id", "job-1").
		AddTag("order_type", "PRODUCTION").
		AddTag("workpiece_type", "BLUE").
		AddTag("status", "FINISHED").
		AddTag("component", "dispatch_engine").
		AddField("steps", 9).
		AddField("duration_s", 90.0).
		SetTime(now).
		AddTag("vehicle_id", "fts-1")
	expected := strings.TrimSpace(write.PointToLineProtocol(p, time.Nanosecond))
	if strings.TrimSpace(body) != expected {
		t.Errorf("unexpected body: %s\nwant: %s", body, expected)
	}
}

func TestInfluxSink_RecordStepAndRoute(t *testing.T) {
	var bodies []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		bodies = append(bodies, strings.TrimSpace(string(b)))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sink := NewInfluxSink(srv.URL, "token", "org", "bucket")
	now := time.Now()
	if err := sink.RecordStep(coremetrics.StepRecord{
		JobID: "job-1", StepID: "s1", Kind: model.StepProduce, Module: model.ModuleMill,
		Command: model.CommandMill, Serial: "MILL-1", Status: model.StatusFinished, Duration: 2 * time.Second, Time: now,
	}); err != nil {
		t.Fatalf("record step: %v", err)
	}
	if err := sink.RecordRoute(coremetrics.RouteRecord{JobID: "job-1", Vehicle: "fts-1", Nodes: 4, Distance: 300, Time: now}); err != nil {
		t.Fatalf("record route: %v", err)
	}
	if len(bodies) != 2 {
		t.Fatalf("expected 2 writes, got %d", len(bodies))
	}
	if !strings.HasPrefix(bodies[0], "step_transition,") || !strings.Contains(bodies[0], "serial_number=MILL-1") {
		t.Errorf("unexpected step body: %s", bodies[0])
	}
	if !strings.HasPrefix(bodies[1], "route_planned,") || !strings.Contains(bodies[1], "distance=300") {
		t.Errorf("unexpected route body: %s", bodies[1])
	}
}

func TestNewInfluxSinkWithFallback(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			called = true
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	}))
	defer srv.Close()

	sink := NewInfluxSinkWithFallback(srv.URL+"/api/v2/write", "tok", "org", "bucket")
	if _, ok := sink.(*InfluxSink); ok {
		t.Fatalf("expected NopSink on failing health check")
	}
	if !called {
		t.Fatalf("health endpoint not called")
	}
}
