// Package metrics defines interfaces for collecting dispatch metrics. Sinks
// like PromSink and InfluxSink record archived jobs, step transitions and
// planned routes and can be combined with NewMultiSink. The factory helpers
// return a MultiSink automatically when multiple sinks are configured.
package metrics
