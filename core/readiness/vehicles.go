package readiness

import (
	"fmt"
	"sort"
	"time"

	"github.com/kilianp07/factoryccu/core/logger"
	"github.com/kilianp07/factoryccu/core/model"
)

type vehicle struct {
	*device
	lastNodeID       string
	lastModuleSerial string
	loads            map[string]string
	charging         bool
	voltage          float64
	percent          float64
	handledActionID  string
}

// VehicleTracker keeps one readiness record per vehicle.
//
// VehicleTracker is not safe for concurrent use; callers serialise access.
type VehicleTracker struct {
	vehicles   map[string]*vehicle
	minBattery float64
	log        logger.Logger
	now        func() time.Time
}

// NewVehicleTracker returns an empty tracker. Vehicles below minBattery
// percent are reported BLOCKED while idle; zero disables the check.
func NewVehicleTracker(minBattery float64, log logger.Logger) *VehicleTracker {
	return &VehicleTracker{
		vehicles:   make(map[string]*vehicle),
		minBattery: minBattery,
		log:        log,
		now:        time.Now,
	}
}

// UpdateConnection records a connection report.
func (t *VehicleTracker) UpdateConnection(serial string, connected bool) {
	v, ok := t.vehicles[serial]
	if !ok {
		v = &vehicle{device: newDevice(serial, t.now()), loads: map[string]string{}}
		t.vehicles[serial] = v
		t.log.Infof("vehicle %s paired", serial)
	}
	v.setConnected(connected, t.now())
}

// UpdateAvailability applies an availability pushed by a state report. An
// idle vehicle below the battery threshold is held BLOCKED.
func (t *VehicleTracker) UpdateAvailability(serial string, a model.Availability) error {
	v, ok := t.vehicles[serial]
	if !ok {
		return fmt.Errorf("%w: vehicle %s", ErrUnknownDevice, serial)
	}
	v.lastSeen = t.now()
	if a == model.AvailabilityReady && t.lowBattery(v) {
		t.log.Debugw("vehicle held blocked", map[string]any{"serial": serial, "battery": v.percent})
		a = model.AvailabilityBlocked
	}
	return v.transition(a)
}

func (t *VehicleTracker) lowBattery(v *vehicle) bool {
	return t.minBattery > 0 && v.percent > 0 && v.percent < t.minBattery && !v.charging
}

// UpdatePosition records the last traversed node and module.
func (t *VehicleTracker) UpdatePosition(serial, nodeID, moduleSerial string) {
	if v, ok := t.vehicles[serial]; ok {
		v.lastNodeID = nodeID
		v.lastModuleSerial = moduleSerial
	}
}

// UpdateBattery records the battery report.
func (t *VehicleTracker) UpdateBattery(serial string, b model.BatteryState) {
	if v, ok := t.vehicles[serial]; ok {
		v.percent = b.Percentage
		v.voltage = b.CurrentVoltage
		v.charging = b.Charging
	}
}

// SetLoads replaces the load map (position to owning job).
func (t *VehicleTracker) SetLoads(serial string, loads map[string]string) {
	if v, ok := t.vehicles[serial]; ok {
		v.loads = make(map[string]string, len(loads))
		for k, id := range loads {
			v.loads[k] = id
		}
	}
}

// MarkActionHandled returns false when actionID was already handled for this
// vehicle, so repeated reports of one finished action are processed once.
func (t *VehicleTracker) MarkActionHandled(serial, actionID string) bool {
	v, ok := t.vehicles[serial]
	if !ok || actionID == "" || v.handledActionID == actionID {
		return false
	}
	v.handledActionID = actionID
	return true
}

// IsReadyForJob reports whether serial is connected, READY and either
// unassigned or already assigned to jobID.
func (t *VehicleTracker) IsReadyForJob(serial, jobID string) bool {
	v, ok := t.vehicles[serial]
	return ok && v.readyFor(jobID)
}

// Assign binds a vehicle to a job.
func (t *VehicleTracker) Assign(serial, jobID string) {
	if v, ok := t.vehicles[serial]; ok {
		v.jobID = jobID
	}
}

// Claim marks a vehicle BUSY for jobID after an order was published.
func (t *VehicleTracker) Claim(serial, jobID string) {
	v, ok := t.vehicles[serial]
	if !ok {
		return
	}
	v.jobID = jobID
	if err := v.transition(model.AvailabilityBusy); err != nil {
		t.log.Warnf("claim vehicle %s: %v", serial, err)
	}
}

// Release clears the assignment when it belongs to jobID. An empty jobID
// releases unconditionally.
func (t *VehicleTracker) Release(serial, jobID string) bool {
	v, ok := t.vehicles[serial]
	return ok && v.release(jobID)
}

// AssignedTo returns the vehicle bound to jobID.
func (t *VehicleTracker) AssignedTo(jobID string) (string, bool) {
	for _, serial := range t.serials() {
		if t.vehicles[serial].jobID == jobID {
			return serial, true
		}
	}
	return "", false
}

// ReadyVehicles lists vehicles that are ready and not bound to any job.
func (t *VehicleTracker) ReadyVehicles() []string {
	var out []string
	for _, serial := range t.serials() {
		v := t.vehicles[serial]
		if v.jobID == "" && v.readyFor("") {
			out = append(out, serial)
		}
	}
	return out
}

// ParkedAt returns an unassigned vehicle whose last known position is the
// given module.
func (t *VehicleTracker) ParkedAt(moduleSerial string) (string, bool) {
	for _, serial := range t.serials() {
		v := t.vehicles[serial]
		if v.lastModuleSerial == moduleSerial && v.jobID == "" && v.connected {
			return serial, true
		}
	}
	return "", false
}

// Vehicle returns a snapshot of one vehicle.
func (t *VehicleTracker) Vehicle(serial string) (model.VehicleInfo, bool) {
	v, ok := t.vehicles[serial]
	if !ok {
		return model.VehicleInfo{}, false
	}
	return v.snapshot(), true
}

// All returns snapshots of every known vehicle ordered by serial number.
func (t *VehicleTracker) All() []model.VehicleInfo {
	out := make([]model.VehicleInfo, 0, len(t.vehicles))
	for _, serial := range t.serials() {
		out = append(out, t.vehicles[serial].snapshot())
	}
	return out
}

// Count returns the number of connected vehicles.
func (t *VehicleTracker) Count() int {
	n := 0
	for _, v := range t.vehicles {
		if v.connected {
			n++
		}
	}
	return n
}

// Reset clears assignments and handled actions and blocks every vehicle
// until it reports again.
func (t *VehicleTracker) Reset() {
	for _, v := range t.vehicles {
		v.jobID = ""
		v.handledActionID = ""
		_ = v.transition(model.AvailabilityBlocked)
	}
}

func (t *VehicleTracker) serials() []string {
	out := make([]string, 0, len(t.vehicles))
	for s := range t.vehicles {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func (v *vehicle) snapshot() model.VehicleInfo {
	var loads map[string]string
	if len(v.loads) > 0 {
		loads = make(map[string]string, len(v.loads))
		for k, id := range v.loads {
			loads[k] = id
		}
	}
	return model.VehicleInfo{
		DeviceInfo:       v.info(),
		LastNodeID:       v.lastNodeID,
		LastModuleSerial: v.lastModuleSerial,
		Loads:            loads,
		Charging:         v.charging,
		BatteryVoltage:   v.voltage,
		BatteryPercent:   v.percent,
	}
}
