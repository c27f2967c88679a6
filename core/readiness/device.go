package readiness

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/looplab/fsm"

	"github.com/kilianp07/factoryccu/core/model"
)

const (
	eventBlock = "block"
	eventReady = "ready"
	eventBusy  = "busy"
)

var (
	stateBlocked = string(model.AvailabilityBlocked)
	stateReady   = string(model.AvailabilityReady)
	stateBusy    = string(model.AvailabilityBusy)
	allStates    = []string{stateBlocked, stateReady, stateBusy}
)

// ErrUnknownDevice is returned when no record exists for a serial number.
var ErrUnknownDevice = errors.New("unknown device")

// device is the availability state machine shared by modules and vehicles.
// A disconnected device can never enter READY.
type device struct {
	serial    string
	connected bool
	jobID     string
	pairedAt  time.Time
	lastSeen  time.Time
	changedAt time.Time
	machine   *fsm.FSM
}

func newDevice(serial string, now time.Time) *device {
	d := &device{serial: serial, pairedAt: now, lastSeen: now, changedAt: now}
	d.machine = fsm.NewFSM(
		stateBlocked,
		fsm.Events{
			{Name: eventBlock, Src: allStates, Dst: stateBlocked},
			{Name: eventReady, Src: allStates, Dst: stateReady},
			{Name: eventBusy, Src: allStates, Dst: stateBusy},
		},
		fsm.Callbacks{
			"before_" + eventReady: func(_ context.Context, e *fsm.Event) {
				if !d.connected {
					e.Cancel(fmt.Errorf("%s is not connected", d.serial))
				}
			},
			"enter_state": func(_ context.Context, _ *fsm.Event) {
				d.changedAt = time.Now()
			},
		},
	)
	return d
}

func eventFor(a model.Availability) (string, error) {
	switch a {
	case model.AvailabilityBlocked:
		return eventBlock, nil
	case model.AvailabilityReady:
		return eventReady, nil
	case model.AvailabilityBusy:
		return eventBusy, nil
	default:
		return "", fmt.Errorf("unknown availability %q", a)
	}
}

// transition moves the machine to a. Staying in the same state and guarded
// transitions are not errors.
func (d *device) transition(a model.Availability) error {
	ev, err := eventFor(a)
	if err != nil {
		return err
	}
	err = d.machine.Event(context.Background(), ev)
	var noTransition fsm.NoTransitionError
	var canceled fsm.CanceledError
	if err == nil || errors.As(err, &noTransition) || errors.As(err, &canceled) {
		return nil
	}
	return err
}

func (d *device) availability() model.Availability {
	return model.Availability(d.machine.Current())
}

func (d *device) setConnected(connected bool, at time.Time) {
	d.connected = connected
	d.lastSeen = at
	if !connected {
		_ = d.transition(model.AvailabilityBlocked)
	}
}

// readyFor is the gating predicate for every dispatch decision.
func (d *device) readyFor(jobID string) bool {
	return d.connected && d.availability() == model.AvailabilityReady && (d.jobID == "" || d.jobID == jobID)
}

func (d *device) release(jobID string) bool {
	if d.jobID == "" || (jobID != "" && d.jobID != jobID) {
		return false
	}
	d.jobID = ""
	return true
}

func (d *device) info() model.DeviceInfo {
	return model.DeviceInfo{
		Serial:       d.serial,
		Connected:    d.connected,
		Availability: d.availability(),
		JobID:        d.jobID,
		PairedAt:     d.pairedAt,
		LastSeen:     d.lastSeen,
	}
}
