package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/kilianp07/factoryccu/core/dispatch"
	"github.com/kilianp07/factoryccu/core/flows"
	coremetrics "github.com/kilianp07/factoryccu/core/metrics"
	"github.com/kilianp07/factoryccu/core/model"
	coremon "github.com/kilianp07/factoryccu/core/monitoring"
	"github.com/kilianp07/factoryccu/core/readiness"
	"github.com/kilianp07/factoryccu/core/reservation"
	"github.com/kilianp07/factoryccu/core/routing"
	"github.com/kilianp07/factoryccu/infra/layoutfile"
	"github.com/kilianp07/factoryccu/infra/mqtt"
)

// CancelRequest is the payload of the order cancel topic.
type CancelRequest struct {
	OrderID string `json:"orderId"`
}

// ResetRequest is the payload of the reset topic. An empty serial number
// resets the whole factory.
type ResetRequest struct {
	SerialNumber string `json:"serialNumber"`
}

// ConfigUpdate is the payload of the config topic. Nil fields are left
// unchanged.
type ConfigUpdate struct {
	MaxParallelJobs *int `json:"maxParallelJobs,omitempty"`
	// ProductionDurations maps module serial numbers to seconds.
	ProductionDurations map[string]int `json:"productionDurations,omitempty"`
	Calibrating         map[string]bool `json:"calibrating,omitempty"`
}

// handle processes one inbound message. It must only be called from the
// event loop.
func (s *Service) handle(ctx context.Context, topic string, payload []byte) {
	if len(bytes.TrimSpace(payload)) == 0 {
		return
	}
	switch topic {
	case s.topics.OrderRequest():
		s.handleJobRequest(ctx, payload)
	case s.topics.OrderCancel():
		s.handleCancel(ctx, payload)
	case s.topics.SetReset():
		s.handleReset(ctx, payload)
	case s.topics.SetLayout():
		s.handleLayout(ctx, payload)
	case s.topics.SetFlows():
		s.handleFlows(payload)
	case s.topics.SetConfig():
		s.handleConfig(ctx, payload)
	default:
		family, serial, leaf, ok := s.topics.ParseDevice(topic)
		if !ok {
			s.log.Debugw("ignoring message", map[string]any{"topic": topic})
			return
		}
		s.handleDevice(ctx, family, serial, leaf, payload)
	}
	s.syncStatus()
}

func (s *Service) handleDevice(ctx context.Context, family, serial, leaf string, payload []byte) {
	var err error
	switch {
	case leaf == "connection":
		var rep model.ConnectionReport
		if err = json.Unmarshal(payload, &rep); err == nil {
			s.handleConnection(family, serial, rep)
		}
	case leaf == "state" && family == mqtt.FamilyModule:
		var rep model.ModuleStateReport
		if err = json.Unmarshal(payload, &rep); err == nil {
			err = s.handleModuleState(ctx, serial, rep)
		}
	case leaf == "state" && family == mqtt.FamilyVehicle:
		var rep model.VehicleStateReport
		if err = json.Unmarshal(payload, &rep); err == nil {
			err = s.handleVehicleState(ctx, serial, rep)
		}
	default:
		return
	}
	if err != nil {
		log := s.log.With(map[string]any{"serial": serial, "family": family})
		if errors.Is(err, readiness.ErrUnknownDevice) {
			log.Debugw("state of unpaired device", nil)
		} else {
			log.Warnf("%s report rejected: %v", leaf, err)
		}
		return
	}
	s.Engine.TriggerPending(ctx)
	s.publishPairing(ctx)
}

func (s *Service) handleConnection(family, serial string, rep model.ConnectionReport) {
	connected := rep.ConnectionState.Connected()
	if family == mqtt.FamilyVehicle {
		s.vehicles.UpdateConnection(serial, connected)
		if !connected {
			s.ledger.ReleaseAll(serial)
		}
		if r, ok := s.sink.(coremetrics.FleetSizeRecorder); ok {
			if err := r.RecordFleetSize(s.vehicles.Count()); err != nil {
				s.log.Warnf("record fleet size: %v", err)
			}
		}
		return
	}
	var typ model.ModuleType
	if n, ok := s.planner.Graph().ModuleNode(serial); ok {
		typ = n.ModuleType
	}
	s.modules.UpdateConnection(serial, typ, connected)
}

// moduleAvailability maps a module report to its dispatch availability.
func moduleAvailability(rep model.ModuleStateReport) model.Availability {
	if rep.Paused || fatal(rep.Errors) {
		return model.AvailabilityBlocked
	}
	if a := rep.ActionState; a != nil && !a.State.Terminal() {
		return model.AvailabilityBusy
	}
	return model.AvailabilityReady
}

// vehicleAvailability maps a vehicle report to its dispatch availability.
// The battery threshold is applied by the tracker.
func vehicleAvailability(rep model.VehicleStateReport) model.Availability {
	if rep.Paused || fatal(rep.Errors) {
		return model.AvailabilityBlocked
	}
	if rep.Driving {
		return model.AvailabilityBusy
	}
	if a := rep.ActionState; a != nil && !a.State.Terminal() {
		return model.AvailabilityBusy
	}
	return model.AvailabilityReady
}

func fatal(errs []model.DeviceError) bool {
	for _, e := range errs {
		if e.Fatal() {
			return true
		}
	}
	return false
}

func (s *Service) handleModuleState(ctx context.Context, serial string, rep model.ModuleStateReport) error {
	if err := s.modules.UpdateAvailability(serial, moduleAvailability(rep)); err != nil {
		return err
	}
	if m, ok := s.modules.Module(serial); ok && m.Type == model.ModuleHBW {
		s.arbiter.UpdateInventory(serial, rep.Loads)
	}
	a := rep.ActionState
	if a == nil || !a.State.Terminal() || rep.OrderID == "" {
		return nil
	}
	s.complete(ctx, rep.OrderID, a.ID, a.State, a.Result)
	return nil
}

func (s *Service) handleVehicleState(ctx context.Context, serial string, rep model.VehicleStateReport) error {
	if _, ok := s.vehicles.Vehicle(serial); !ok {
		return readiness.ErrUnknownDevice
	}
	if rep.BatteryState != nil {
		s.vehicles.UpdateBattery(serial, *rep.BatteryState)
	}
	if rep.LastNodeID != "" {
		s.vehicles.UpdatePosition(serial, rep.LastNodeID, rep.LastModuleSerialNumber)
		s.ledger.ReleaseNodesBefore(serial, rep.LastNodeID)
	}
	loads := make(map[string]string, len(rep.Load))
	for _, l := range rep.Load {
		owner := l.LoadID
		if owner == "" {
			owner = rep.OrderID
		}
		loads[l.LoadPosition] = owner
	}
	s.vehicles.SetLoads(serial, loads)
	if err := s.vehicles.UpdateAvailability(serial, vehicleAvailability(rep)); err != nil {
		return err
	}

	a := rep.ActionState
	if a == nil || !a.State.Terminal() || rep.OrderID == "" {
		return nil
	}
	if a.State == model.ActionFinished && a.Type != model.ActionDock {
		return nil
	}
	if !s.vehicles.MarkActionHandled(serial, a.ID) {
		return nil
	}
	if rep.LastNodeID != "" {
		s.ledger.ReleaseAllExcept(serial, rep.LastNodeID)
	}
	if a.State == model.ActionFailed {
		s.failVehicle(ctx, rep.OrderID, serial, a)
		return nil
	}
	s.complete(ctx, rep.OrderID, a.ID, a.State, a.Result)
	return nil
}

// failVehicle halts the step the vehicle drives for jobID whichever of its
// order actions failed.
func (s *Service) failVehicle(ctx context.Context, jobID, serial string, a *model.VehicleActionState) {
	result := a.Result
	if result == "" {
		result = string(a.Type) + " failed"
	}
	err := s.Engine.FailVehicleStep(ctx, jobID, serial, result)
	switch {
	case err == nil:
	case errors.Is(err, dispatch.ErrUnknownJob):
		s.log.Debugw("failure for unknown job", map[string]any{"job": jobID, "vehicle": serial, "action": a.ID})
	default:
		s.log.Errorf("fail step of job %s on %s: %v", jobID, serial, err)
	}
}

func (s *Service) complete(ctx context.Context, jobID, stepID string, state model.ActionState, result string) {
	err := s.Engine.HandleStepCompletion(ctx, jobID, stepID, state, result)
	switch {
	case err == nil:
	case errors.Is(err, dispatch.ErrUnknownJob):
		s.log.Debugw("completion for unknown job", map[string]any{"job": jobID, "step": stepID})
	default:
		s.log.Errorf("complete step %s of job %s: %v", stepID, jobID, err)
	}
}

func (s *Service) handleJobRequest(ctx context.Context, payload []byte) {
	var req model.JobRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.log.Warnf("decode job request: %v", err)
		return
	}
	if req.Timestamp.IsZero() {
		req.Timestamp = s.now()
	}
	job, err := s.Engine.SubmitJob(ctx, req)
	switch {
	case err == nil:
		s.log.Infow("job accepted", map[string]any{"job": job.ID, "type": job.Type, "workpiece": job.WorkpieceType, "steps": len(job.Steps)})
	case errors.Is(err, reservation.ErrReservationConflict):
		s.log.Errorf("job request %s %s: %v", req.Type, req.WorkpieceType, err)
	default:
		s.log.Warnf("job request %s %s rejected: %v", req.Type, req.WorkpieceType, err)
	}
}

func (s *Service) handleCancel(ctx context.Context, payload []byte) {
	var req CancelRequest
	if err := json.Unmarshal(payload, &req); err != nil || req.OrderID == "" {
		s.log.Warnf("invalid cancel request")
		return
	}
	if err := s.Engine.ResetJob(ctx, req.OrderID); err != nil {
		s.log.Warnf("cancel job %s: %v", req.OrderID, err)
	}
}

func (s *Service) handleReset(ctx context.Context, payload []byte) {
	var req ResetRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.log.Warnf("decode reset request: %v", err)
		return
	}
	if req.SerialNumber != "" {
		if err := s.Engine.ResetDevice(ctx, req.SerialNumber); err != nil {
			s.log.Warnf("reset %s: %v", req.SerialNumber, err)
		}
		s.publishPairing(ctx)
		return
	}
	s.log.Infof("factory reset")
	s.Engine.Reset(ctx)
	for _, v := range s.vehicles.All() {
		s.ledger.ReleaseAll(v.Serial)
	}
	s.modules.Reset()
	s.vehicles.Reset()
	s.publishPairing(ctx)
}

func (s *Service) handleLayout(ctx context.Context, payload []byte) {
	g, err := decodeGraph(payload)
	if err != nil {
		s.log.Warnf("layout update rejected: %v", err)
		coremon.CaptureException(err, map[string]string{"module": "layout"})
		return
	}
	s.planner.SetGraph(g)
	s.registerModules(g)
	s.log.Infof("layout replaced: %d nodes", g.Len())
	s.Engine.TriggerPending(ctx)
}

func decodeGraph(payload []byte) (*routing.Graph, error) {
	layout, err := layoutfile.DecodePayload[routing.Layout](payload)
	if err != nil {
		return nil, err
	}
	return layout.Graph()
}

func (s *Service) handleFlows(payload []byte) {
	set, err := layoutfile.DecodePayload[flows.Set](payload)
	if err == nil {
		err = s.flows.Replace(set)
	}
	if err != nil {
		s.log.Warnf("flow update rejected: %v", err)
		return
	}
	s.log.Infof("flows replaced for %d workpiece types", len(set))
}

func (s *Service) handleConfig(ctx context.Context, payload []byte) {
	var upd ConfigUpdate
	if err := json.Unmarshal(payload, &upd); err != nil {
		s.log.Warnf("decode config update: %v", err)
		return
	}
	for serial, secs := range upd.ProductionDurations {
		s.modules.SetProductionDuration(serial, time.Duration(secs)*time.Second)
	}
	for serial, on := range upd.Calibrating {
		s.modules.SetCalibrating(serial, on)
	}
	if upd.MaxParallelJobs != nil {
		s.log.Infof("parallel job ceiling set to %d", *upd.MaxParallelJobs)
		s.Engine.SetMaxParallelJobs(ctx, *upd.MaxParallelJobs)
		return
	}
	s.Engine.TriggerPending(ctx)
}
