package dispatch

import (
	"context"
	"fmt"

	"github.com/kilianp07/factoryccu/core/model"
	coremon "github.com/kilianp07/factoryccu/core/monitoring"
)

// HandleStepCompletion applies a terminal device outcome to a step. Reports
// for unknown steps, steps that are not running or non-terminal states are
// ignored, so duplicate and late reports are harmless.
func (e *Engine) HandleStepCompletion(ctx context.Context, jobID, stepID string, state model.ActionState, result string) error {
	j, queued := e.find(jobID)
	if j == nil || queued {
		return fmt.Errorf("%w: %s", ErrUnknownJob, jobID)
	}
	s, ok := j.Step(stepID)
	if !ok || s.Status != model.StatusInProgress || !state.Terminal() {
		return nil
	}
	if state == model.ActionFailed {
		e.failStep(j, s, result)
		e.publishSnapshots(ctx)
		return nil
	}
	e.finishStep(ctx, j, s, result)
	e.TriggerPending(ctx)
	e.publishSnapshots(ctx)
	return nil
}

// FailVehicleStep halts the move step a vehicle is driving for jobID. A
// vehicle reports failures on the action it was executing, which is often a
// turn or pass on the way and not the docking action that carries the step
// id, so the step is found by vehicle.
func (e *Engine) FailVehicleStep(ctx context.Context, jobID, vehicle, result string) error {
	j, queued := e.find(jobID)
	if j == nil || queued {
		return fmt.Errorf("%w: %s", ErrUnknownJob, jobID)
	}
	for _, s := range j.Steps {
		if s.Kind == model.StepMove && s.Status == model.StatusInProgress && s.Vehicle == vehicle {
			e.failStep(j, s, result)
			e.publishSnapshots(ctx)
			return nil
		}
	}
	return nil
}

// failStep halts the job. Nothing is retried; the job stays active in ERROR
// until an operator resets it.
func (e *Engine) failStep(j *model.Job, s *model.Step, result string) {
	now := e.now()
	s.Status = model.StatusError
	s.StoppedAt = &now
	s.Result = result
	j.Status = model.StatusError
	err := fmt.Errorf("step %s (%s %s) failed on %s", s.ID, s.Kind, s.ModuleType(), s.Serial)
	coremon.CaptureException(err, map[string]string{"module": "dispatch_engine", "order_id": j.ID, "serial": s.Serial})
	e.log.Errorf("job %s halted: %v", j.ID, err)
	e.emitStep(j, s)
	e.emitJob(j, err.Error())
}

func (e *Engine) startStep(j *model.Job, s *model.Step, serial, vehicle string) {
	now := e.now()
	s.Status = model.StatusInProgress
	s.StartedAt = &now
	s.Serial = serial
	s.Vehicle = vehicle
	stepsDispatched.WithLabelValues(string(s.Kind)).Inc()
	e.log.Debugw("step dispatched", map[string]any{"job": j.ID, "step": s.ID, "kind": string(s.Kind), "serial": serial, "vehicle": vehicle})
	e.emitStep(j, s)
}

// finishStep marks s FINISHED, applies the side effects of its kind and
// archives the job after its last step. It does not sweep.
func (e *Engine) finishStep(ctx context.Context, j *model.Job, s *model.Step, result string) {
	now := e.now()
	s.Status = model.StatusFinished
	s.StoppedAt = &now
	s.Result = result
	e.emitStep(j, s)
	for _, next := range j.Dependents(s.ID) {
		e.log.Debugw("step unblocked", map[string]any{"job": j.ID, "step": next.ID, "after": s.ID})
	}

	switch s.Kind {
	case model.StepMove:
		if b := e.planner.Blocker(); b != nil && s.Vehicle != "" {
			if node, ok := e.moduleNode(s.Serial); ok {
				b.ReleaseAllExcept(s.Vehicle, node)
			}
		}
	case model.StepProduce:
		if s.Produce.Command == model.CommandCheckQuality && result == model.QualityFailed {
			e.replace(ctx, j)
			return
		}
		e.releaseAfter(j, s)
	}

	if j.Done() {
		e.active = removeJob(e.active, j.ID)
		e.terminate(j, model.StatusFinished, "")
		e.startQueued(ctx)
	}
}

// releaseAfter frees what a finished production step no longer needs. The
// warehouse reservation ends once the workpiece left (production) or
// entered (storage) the warehouse; a module is free again after handing the
// workpiece back to the vehicle.
func (e *Engine) releaseAfter(j *model.Job, s *model.Step) {
	cmd := s.Produce.Command
	switch {
	case s.Produce.Module == model.ModuleHBW && (cmd == model.CommandDrop && j.Type == model.JobProduction ||
		cmd == model.CommandPick && j.Type == model.JobStorage):
		if e.arbiter.Release(j.ID) {
			e.log.Debugw("reservation released", map[string]any{"job": j.ID, "warehouse": s.Serial})
		}
		e.modules.Release(s.Serial, j.ID)
	case cmd == model.CommandDrop:
		e.modules.Release(s.Serial, j.ID)
	}
}

// replace aborts a job whose workpiece failed the quality check and submits
// a fresh job for the same workpiece type.
func (e *Engine) replace(ctx context.Context, j *model.Job) {
	for _, s := range j.Steps {
		if !s.Status.Terminal() {
			s.Status = model.StatusCancelled
		}
	}
	e.active = removeJob(e.active, j.ID)
	e.terminate(j, model.StatusCancelled, "quality check failed")
	next, err := e.admit(model.JobRequest{Type: j.Type, WorkpieceType: j.WorkpieceType, Timestamp: e.now()})
	if err != nil {
		e.log.Warnf("no replacement for job %s: %v", j.ID, err)
		e.startQueued(ctx)
		return
	}
	e.log.Infof("job %s replaced by %s after failed quality check", j.ID, next.ID)
	e.startQueued(ctx)
}
