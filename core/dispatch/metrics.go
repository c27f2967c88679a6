package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	jobsSubmitted   *prometheus.CounterVec
	jobsRejected    *prometheus.CounterVec
	stepsDispatched *prometheus.CounterVec
	jobsActive      prometheus.Gauge
	jobsQueued      prometheus.Gauge
	publishFailures *prometheus.CounterVec
	sweepDuration   prometheus.Histogram
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.CounterVec, *prometheus.CounterVec, *prometheus.CounterVec, prometheus.Gauge, prometheus.Gauge, *prometheus.CounterVec, prometheus.Histogram) {
	sub := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_jobs_submitted_total",
			Help: "Number of admitted job requests",
		},
		[]string{"order_type"},
	)
	rej := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_jobs_rejected_total",
			Help: "Number of rejected job requests",
		},
		[]string{"reason"},
	)
	steps := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_steps_dispatched_total",
			Help: "Number of steps moved to IN_PROGRESS",
		},
		[]string{"kind"},
	)
	active := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dispatch_jobs_active",
			Help: "Jobs currently in the active set",
		},
	)
	queued := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dispatch_jobs_queued",
			Help: "Admitted jobs waiting for a parallel slot",
		},
	)
	fail := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_publish_failure_total",
			Help: "Number of failed command publish operations",
		},
		[]string{"target"},
	)
	sweep := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dispatch_sweep_duration_seconds",
			Help:    "Duration of one pending-step sweep",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		},
	)
	return sub, rej, steps, active, queued, fail, sweep
}

func init() {
	jobsSubmitted, jobsRejected, stepsDispatched, jobsActive, jobsQueued, publishFailures, sweepDuration = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers dispatch metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(jobsSubmitted, jobsRejected, stepsDispatched, jobsActive, jobsQueued, publishFailures, sweepDuration)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	jobsSubmitted, jobsRejected, stepsDispatched, jobsActive, jobsQueued, publishFailures, sweepDuration = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
