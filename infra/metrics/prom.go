package metrics

import (
	coremetrics "github.com/kilianp07/factoryccu/core/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// PromSink records archived jobs, steps and routes in Prometheus metrics.
type PromSink struct {
	jobs        *prometheus.CounterVec
	jobDuration *prometheus.HistogramVec
	steps       *prometheus.CounterVec
	stepTime    *prometheus.HistogramVec
	routes      *prometheus.CounterVec
	distance    prometheus.Histogram
	fleet       prometheus.Gauge
}

// NewPromSink registers the metrics on the default Prometheus registerer.
// The HTTP endpoint is started separately with StartServer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobs_archived_total",
			Help: "Jobs archived by terminal status",
		}, []string{"order_type", "workpiece_type", "status"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "job_duration_seconds",
			Help:    "Time from admission to terminal status",
			Buckets: prometheus.ExponentialBuckets(10, 2, 8),
		}, []string{"order_type", "status"}),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "steps_total",
			Help: "Step transitions by kind, module type and status",
		}, []string{"kind", "module_type", "status"}),
		stepTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "step_duration_seconds",
			Help:    "Time a step spent in progress",
			Buckets: prometheus.ExponentialBuckets(1, 2, 8),
		}, []string{"kind", "module_type"}),
		routes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "routes_planned_total",
			Help: "Routing attempts by outcome",
		}, []string{"outcome"}),
		distance: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "route_distance",
			Help:    "Length of planned vehicle routes",
			Buckets: prometheus.LinearBuckets(0, 200, 10),
		}),
		fleet: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vehicles_connected",
			Help: "Number of connected vehicles",
		}),
	}
	var err error
	if s.jobs, err = register(reg, s.jobs); err != nil {
		return nil, err
	}
	if s.jobDuration, err = register(reg, s.jobDuration); err != nil {
		return nil, err
	}
	if s.steps, err = register(reg, s.steps); err != nil {
		return nil, err
	}
	if s.stepTime, err = register(reg, s.stepTime); err != nil {
		return nil, err
	}
	if s.routes, err = register(reg, s.routes); err != nil {
		return nil, err
	}
	if s.distance, err = register(reg, s.distance); err != nil {
		return nil, err
	}
	if s.fleet, err = register(reg, s.fleet); err != nil {
		return nil, err
	}
	return s, nil
}

// register reuses an already registered collector of the same name.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordJobResult counts the archived job and observes its duration.
func (s *PromSink) RecordJobResult(r coremetrics.JobResult) error {
	s.jobs.WithLabelValues(string(r.Type), string(r.WorkpieceType), string(r.Status)).Inc()
	if r.Duration > 0 {
		s.jobDuration.WithLabelValues(string(r.Type), string(r.Status)).Observe(r.Duration.Seconds())
	}
	return nil
}

// RecordStep counts the step transition.
func (s *PromSink) RecordStep(r coremetrics.StepRecord) error {
	s.steps.WithLabelValues(string(r.Kind), string(r.Module), string(r.Status)).Inc()
	if r.Duration > 0 {
		s.stepTime.WithLabelValues(string(r.Kind), string(r.Module)).Observe(r.Duration.Seconds())
	}
	return nil
}

// RecordRoute counts the routing attempt.
func (s *PromSink) RecordRoute(r coremetrics.RouteRecord) error {
	if r.Failed {
		s.routes.WithLabelValues("failed").Inc()
		return nil
	}
	s.routes.WithLabelValues("planned").Inc()
	s.distance.Observe(r.Distance)
	return nil
}

// RecordFleetSize sets the gauge to the number of connected vehicles.
func (s *PromSink) RecordFleetSize(size int) error {
	s.fleet.Set(float64(size))
	return nil
}
