package dispatch

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/kilianp07/factoryccu/core/events"
	"github.com/kilianp07/factoryccu/core/model"
	coremon "github.com/kilianp07/factoryccu/core/monitoring"
	"github.com/kilianp07/factoryccu/core/reservation"
	"github.com/kilianp07/factoryccu/core/routing"
)

var errNotReady = errors.New("not ready")

// route is a planned vehicle move toward a module node.
type route struct {
	vehicle string
	from    string
	to      string
	path    routing.Path
}

// triggerPendingMoveSteps dispatches every runnable move step it can. The
// set of idle vehicles is consumed as vehicles are claimed so one sweep
// never hands a vehicle to two steps.
func (e *Engine) triggerPendingMoveSteps(ctx context.Context) bool {
	idle := e.vehicles.ReadyVehicles()
	progress := false
	for _, rs := range e.runnable(model.StepMove) {
		if rs.job.Status != model.StatusInProgress {
			continue
		}
		used, ok := e.triggerMove(ctx, rs.job, rs.step, idle)
		if !ok {
			continue
		}
		progress = true
		idle = without(idle, used)
	}
	return progress
}

// triggerMove attempts to dispatch one move step and returns the vehicle it
// used.
func (e *Engine) triggerMove(ctx context.Context, j *model.Job, s *model.Step, idle []string) (string, bool) {
	target, err := e.moveTarget(j, s)
	if err != nil {
		e.log.Debugw("move step waiting", map[string]any{"job": j.ID, "step": s.ID, "reason": err.Error()})
		return "", false
	}
	node, ok := e.moduleNode(target)
	if !ok {
		e.log.Warnf("module %s is not part of the layout", target)
		return "", false
	}

	candidates := idle
	if v, ok := e.vehicles.AssignedTo(j.ID); ok {
		candidates = []string{v}
	}
	r, err := e.nearestVehicle(j.ID, node, candidates)
	if err != nil {
		e.log.Debugw("no vehicle for move step", map[string]any{"job": j.ID, "step": s.ID, "reason": err.Error()})
		return "", false
	}

	if parked, ok := e.vehicles.ParkedAt(target); ok && parked != r.vehicle {
		if _, seen := e.blocked[target]; !seen {
			e.log.Infof("module %s blocked by parked vehicle %s, job %s waits", target, parked, j.ID)
		}
		e.blocked[target] = j.ID
		return "", false
	}

	path, err := e.planner.ShortestPath(r.from, r.to, r.vehicle)
	if err != nil {
		e.emitRoute(j.ID, r, routing.Path{}, err)
		e.log.Debugw("route unavailable", map[string]any{"job": j.ID, "vehicle": r.vehicle, "error": err.Error()})
		return "", false
	}
	r.path = path

	if path.AtTarget() {
		e.vehicles.Assign(r.vehicle, j.ID)
		e.modules.Assign(target, j.ID)
		e.startStep(j, s, target, r.vehicle)
		e.finishStep(ctx, j, s, "")
		return r.vehicle, true
	}

	order, err := e.planner.BuildCommandSequence(path, j.ID, e.newID(), r.vehicle, s.ID)
	if err == nil && order.Nodes[len(order.Nodes)-1].ID != node {
		err = fmt.Errorf("%w: path to %s passes module %s", routing.ErrNoPath, node, order.Nodes[len(order.Nodes)-1].ID)
	}
	if err != nil {
		e.emitRoute(j.ID, r, path, err)
		e.log.Warnf("job %s step %s: %v", j.ID, s.ID, err)
		return "", false
	}
	if err := e.pub.PublishVehicleOrder(ctx, order); err != nil {
		publishFailures.WithLabelValues("vehicle").Inc()
		e.log.Errorf("publish order to %s: %v", r.vehicle, err)
		coremon.CaptureException(err, map[string]string{"module": "dispatch_engine", "order_id": j.ID, "vehicle": r.vehicle})
		return "", false
	}
	if b := e.planner.Blocker(); b != nil {
		b.ClaimNodeSequence(r.vehicle, order.NodeIDs())
	}
	e.vehicles.Claim(r.vehicle, j.ID)
	e.modules.Assign(target, j.ID)
	e.startStep(j, s, target, r.vehicle)
	e.emitRoute(j.ID, r, path, nil)
	if j.Type == model.JobProduction && s.Move.Target == model.ModuleDPS {
		e.announceOutput(ctx, j, target)
	}
	return r.vehicle, true
}

// moveTarget picks the module a move step docks at. Warehouse moves go to
// the warehouse holding the job's reservation; other moves take the first
// module of the type that is ready for the job.
func (e *Engine) moveTarget(j *model.Job, s *model.Step) (string, error) {
	typ := s.Move.Target
	if typ == model.ModuleHBW {
		kind := reservation.KindStock
		if j.Type == model.JobStorage {
			kind = reservation.KindBay
		}
		r, ok := e.arbiter.Reservation(kind, j.ID)
		if !ok {
			return "", fmt.Errorf("no %s reservation", kind)
		}
		if !e.modules.IsReadyForJob(r.Warehouse, j.ID) {
			return "", fmt.Errorf("%w: warehouse %s", errNotReady, r.Warehouse)
		}
		return r.Warehouse, nil
	}
	ready := e.modules.ReadyOfType(typ, j.ID)
	if len(ready) == 0 {
		return "", fmt.Errorf("%w: no %s module", errNotReady, typ)
	}
	return ready[0], nil
}

func (e *Engine) moduleNode(serial string) (string, bool) {
	g := e.planner.Graph()
	if g == nil {
		return "", false
	}
	n, ok := g.ModuleNode(serial)
	return n.ID, ok
}

// nearestVehicle returns the candidate ready for jobID with the shortest
// route to node. Ties keep the lower serial number.
func (e *Engine) nearestVehicle(jobID, node string, candidates []string) (route, error) {
	best := route{}
	bestDist := math.Inf(1)
	var lastErr error = errNotReady
	for _, v := range candidates {
		if !e.vehicles.IsReadyForJob(v, jobID) {
			continue
		}
		info, ok := e.vehicles.Vehicle(v)
		if !ok || info.LastNodeID == "" {
			lastErr = fmt.Errorf("vehicle %s position unknown", v)
			continue
		}
		p, err := e.planner.ShortestPath(info.LastNodeID, node, v)
		if err != nil {
			lastErr = err
			continue
		}
		if p.Distance < bestDist {
			bestDist = p.Distance
			best = route{vehicle: v, from: info.LastNodeID, to: node}
		}
	}
	if best.vehicle == "" {
		return route{}, lastErr
	}
	return best, nil
}

func (e *Engine) announceOutput(ctx context.Context, j *model.Job, dps string) {
	_ = e.instantAction(ctx, dps, model.InstantAnnounceOutput, map[string]string{
		"orderId":     j.ID,
		"type":        string(j.WorkpieceType),
		"workpieceId": j.WorkpieceID,
	})
}

func (e *Engine) emitRoute(jobID string, r route, p routing.Path, err error) {
	e.emit(events.RouteEvent{
		JobID:    jobID,
		Vehicle:  r.vehicle,
		From:     r.from,
		To:       r.to,
		Nodes:    len(p.Nodes),
		Distance: p.Distance,
		Err:      err,
		Time:     e.now(),
	})
}

func without(list []string, s string) []string {
	out := list[:0:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}
