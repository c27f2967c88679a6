package dispatch

import (
	"context"
	"math"
	"sort"

	"github.com/kilianp07/factoryccu/core/model"
	"github.com/kilianp07/factoryccu/core/routing"
)

// relocateBlockingVehicles sends idle vehicles parked on a module another
// job needs to the nearest free charger. Blocks without a free charger stay
// recorded for the next sweep.
func (e *Engine) relocateBlockingVehicles(ctx context.Context) {
	if len(e.blocked) == 0 {
		return
	}
	serials := make([]string, 0, len(e.blocked))
	for s := range e.blocked {
		serials = append(serials, s)
	}
	sort.Strings(serials)

	taken := e.occupiedChargers()
	for _, module := range serials {
		v, ok := e.vehicles.ParkedAt(module)
		if !ok {
			delete(e.blocked, module)
			continue
		}
		if !e.vehicles.IsReadyForJob(v, "") {
			continue
		}
		charger, ok := e.relocate(ctx, v, taken)
		if !ok {
			continue
		}
		taken[charger] = true
		delete(e.blocked, module)
	}
}

// occupiedChargers lists chargers a vehicle stands on.
func (e *Engine) occupiedChargers() map[string]bool {
	out := make(map[string]bool)
	for _, v := range e.vehicles.All() {
		if v.LastModuleSerial != "" {
			out[v.LastModuleSerial] = true
		}
	}
	return out
}

func (e *Engine) relocate(ctx context.Context, vehicle string, taken map[string]bool) (string, bool) {
	info, ok := e.vehicles.Vehicle(vehicle)
	if !ok || info.LastNodeID == "" {
		return "", false
	}
	var (
		best     string
		bestPath routing.Path
		bestNode string
	)
	dist := math.Inf(1)
	for _, c := range e.modules.ConnectedOfType(model.ModuleCHRG) {
		if taken[c] {
			continue
		}
		node, ok := e.moduleNode(c)
		if !ok {
			continue
		}
		p, err := e.planner.ShortestPath(info.LastNodeID, node, vehicle)
		if err != nil || p.AtTarget() {
			continue
		}
		if p.Distance < dist {
			best, bestPath, bestNode, dist = c, p, node, p.Distance
		}
	}
	if best == "" {
		e.log.Debugw("no free charger for relocation", map[string]any{"vehicle": vehicle})
		return "", false
	}

	orderID := e.newID()
	order, err := e.planner.BuildCommandSequence(bestPath, orderID, e.newID(), vehicle, e.newID())
	r := route{vehicle: vehicle, from: info.LastNodeID, to: bestNode}
	if err == nil && order.Nodes[len(order.Nodes)-1].ID != bestNode {
		err = routing.ErrNoPath
	}
	if err != nil {
		e.emitRoute(orderID, r, bestPath, err)
		return "", false
	}
	if err := e.pub.PublishVehicleOrder(ctx, order); err != nil {
		publishFailures.WithLabelValues("vehicle").Inc()
		e.log.Errorf("publish relocation order to %s: %v", vehicle, err)
		return "", false
	}
	if b := e.planner.Blocker(); b != nil {
		b.ClaimNodeSequence(vehicle, order.NodeIDs())
	}
	e.vehicles.Claim(vehicle, "")
	e.emitRoute(orderID, r, bestPath, nil)
	e.log.Infof("vehicle %s relocated from %s to charger %s", vehicle, info.LastModuleSerial, best)
	return best, true
}
