package dispatch

import (
	"context"
	"time"

	"github.com/kilianp07/factoryccu/core/model"
	coremon "github.com/kilianp07/factoryccu/core/monitoring"
)

// triggerPendingProductionSteps publishes a command for every runnable
// production step whose module is ready for the job.
func (e *Engine) triggerPendingProductionSteps(ctx context.Context) bool {
	progress := false
	busy := make(map[string]bool)
	for _, rs := range e.runnable(model.StepProduce) {
		if rs.job.Status != model.StatusInProgress {
			continue
		}
		serial := e.productionModule(rs.job, rs.step)
		if serial == "" || busy[serial] {
			continue
		}
		if e.triggerProduce(ctx, rs.job, rs.step, serial) {
			busy[serial] = true
			progress = true
		}
	}
	return progress
}

// productionModule returns the module a production step runs on: the module
// its dependency docked at or ran on, otherwise the first ready module of
// the type.
func (e *Engine) productionModule(j *model.Job, s *model.Step) string {
	if dep, ok := j.Step(s.DependsOn); ok && dep.Serial != "" {
		if m, ok := e.modules.Module(dep.Serial); ok && m.Type == s.Produce.Module {
			return dep.Serial
		}
	}
	if ready := e.modules.ReadyOfType(s.Produce.Module, j.ID); len(ready) > 0 {
		return ready[0]
	}
	return ""
}

func (e *Engine) triggerProduce(ctx context.Context, j *model.Job, s *model.Step, serial string) bool {
	if !e.modules.IsReadyForJob(serial, j.ID) {
		return false
	}
	meta := &model.ModuleActionMetadata{
		Priority:    "NORMAL",
		Type:        j.WorkpieceType,
		WorkpieceID: j.WorkpieceID,
	}
	var duration time.Duration
	if m, ok := e.modules.Module(serial); ok && m.ProductionDuration > 0 {
		duration = m.ProductionDuration
		meta.Duration = int64(duration.Seconds())
	}
	cmd := model.ModuleCommand{
		Timestamp:     e.now(),
		SerialNumber:  serial,
		OrderID:       j.ID,
		OrderUpdateID: e.newID(),
		Action: model.ModuleAction{
			ID:       s.ID,
			Command:  s.Produce.Command,
			Metadata: meta,
		},
	}
	if err := e.pub.PublishModuleCommand(ctx, cmd); err != nil {
		publishFailures.WithLabelValues("module").Inc()
		e.log.Errorf("publish %s to %s: %v", s.Produce.Command, serial, err)
		coremon.CaptureException(err, map[string]string{"module": "dispatch_engine", "order_id": j.ID, "serial": serial})
		return false
	}
	e.modules.Claim(serial, j.ID)
	s.Produce.Duration = duration
	e.startStep(j, s, serial, "")
	return true
}
