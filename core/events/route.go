package events

import "time"

// RouteEvent is emitted for each routing attempt. Err is set when no order
// could be built.
type RouteEvent struct {
	JobID    string
	Vehicle  string
	From     string
	To       string
	Nodes    int
	Distance float64
	Err      error
	Time     time.Time
}
