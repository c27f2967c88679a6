package metrics

import (
	"context"

	"github.com/kilianp07/factoryccu/core/events"
	coremetrics "github.com/kilianp07/factoryccu/core/metrics"
	coremon "github.com/kilianp07/factoryccu/core/monitoring"
	"github.com/kilianp07/factoryccu/internal/eventbus"
)

// StartEventCollector subscribes to the event bus and records step and route
// events on sinks supporting them. It stops when the context is canceled.
func StartEventCollector(ctx context.Context, bus eventbus.EventBus, sink coremetrics.MetricsSink) {
	if bus == nil || sink == nil {
		return
	}
	sub := bus.Subscribe()
	coremon.Go(func() {
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				record(sink, ev)
			}
		}
	})
}

func record(sink coremetrics.MetricsSink, ev eventbus.Event) {
	switch e := ev.(type) {
	case events.StepEvent:
		if r, ok := sink.(coremetrics.StepRecorder); ok {
			_ = r.RecordStep(coremetrics.StepRecord{
				JobID:    e.JobID,
				StepID:   e.StepID,
				Kind:     e.Kind,
				Module:   e.Module,
				Command:  e.Command,
				Serial:   e.Serial,
				Vehicle:  e.Vehicle,
				Status:   e.Status,
				Duration: e.Duration,
				Time:     e.Time,
			})
		}
	case events.RouteEvent:
		if r, ok := sink.(coremetrics.RouteRecorder); ok {
			_ = r.RecordRoute(coremetrics.RouteRecord{
				JobID:    e.JobID,
				Vehicle:  e.Vehicle,
				Nodes:    e.Nodes,
				Distance: e.Distance,
				Failed:   e.Err != nil,
				Time:     e.Time,
			})
		}
	}
}
