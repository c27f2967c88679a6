package dispatch

import (
	"context"

	"github.com/kilianp07/factoryccu/core/model"
)

// Publisher delivers commands and snapshots to the device bus. Publishing is
// fire-and-forget: outcomes arrive later through device state reports.
type Publisher interface {
	PublishVehicleOrder(ctx context.Context, order model.VehicleOrder) error
	PublishModuleCommand(ctx context.Context, cmd model.ModuleCommand) error
	PublishInstantAction(ctx context.Context, act model.InstantAction) error
	PublishJobSnapshots(ctx context.Context, active, completed model.JobSnapshot) error
}
