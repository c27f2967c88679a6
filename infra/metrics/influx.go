package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	corelog "github.com/kilianp07/factoryccu/core/logger"
	coremetrics "github.com/kilianp07/factoryccu/core/metrics"
	"github.com/kilianp07/factoryccu/infra/logger"
)

// InfluxSink writes job, step and route points to an InfluxDB instance using
// the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      corelog.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordJobResult writes one job_archived point.
func (s *InfluxSink) RecordJobResult(r coremetrics.JobResult) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("job_archived").
		AddTag("order_id", r.JobID).
		AddTag("order_type", string(r.Type)).
		AddTag("workpiece_type", string(r.WorkpieceType)).
		AddTag("status", string(r.Status)).
		AddTag("component", "dispatch_engine").
		AddField("steps", r.Steps).
		AddField("duration_s", round3(r.Duration.Seconds())).
		SetTime(r.FinishedAt)
	if r.Vehicle != "" {
		p = p.AddTag("vehicle_id", r.Vehicle)
	}
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordStep writes one step_transition point.
func (s *InfluxSink) RecordStep(r coremetrics.StepRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("step_transition").
		AddTag("order_id", r.JobID).
		AddTag("kind", string(r.Kind)).
		AddTag("module_type", string(r.Module)).
		AddTag("status", string(r.Status))
	if r.Serial != "" {
		p = p.AddTag("serial_number", r.Serial)
	}
	if r.Vehicle != "" {
		p = p.AddTag("vehicle_id", r.Vehicle)
	}
	p = p.AddField("step_id", r.StepID).
		AddField("command", string(r.Command)).
		AddField("duration_s", round3(r.Duration.Seconds())).
		SetTime(r.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordRoute writes one route_planned point.
func (s *InfluxSink) RecordRoute(r coremetrics.RouteRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("route_planned").
		AddTag("vehicle_id", r.Vehicle).
		AddTag("failed", strconv.FormatBool(r.Failed)).
		AddField("order_id", r.JobID).
		AddField("nodes", r.Nodes).
		AddField("distance", round3(r.Distance)).
		SetTime(r.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
