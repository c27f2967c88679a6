// Package events defines the dispatch related events emitted on the event bus.
//
// Available event types:
//   - JobEvent: a job changed lifecycle status
//   - StepEvent: a step was dispatched or reached a terminal state
//   - RouteEvent: a vehicle order was planned or a move could not be routed
package events
