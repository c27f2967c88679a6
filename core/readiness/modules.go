package readiness

import (
	"fmt"
	"sort"
	"time"

	"github.com/kilianp07/factoryccu/core/logger"
	"github.com/kilianp07/factoryccu/core/model"
)

type module struct {
	*device
	typ                model.ModuleType
	productionDuration time.Duration
	calibrating        bool
}

// ModuleTracker keeps one readiness record per stationary module. Records are
// created on the first observed connection message and never removed.
//
// ModuleTracker is not safe for concurrent use; callers serialise access.
type ModuleTracker struct {
	modules map[string]*module
	log     logger.Logger
	now     func() time.Time
}

// NewModuleTracker returns an empty tracker.
func NewModuleTracker(log logger.Logger) *ModuleTracker {
	return &ModuleTracker{modules: make(map[string]*module), log: log, now: time.Now}
}

// UpdateConnection records a connection report. A disconnected module is
// BLOCKED until it reports READY again.
func (t *ModuleTracker) UpdateConnection(serial string, typ model.ModuleType, connected bool) {
	m, ok := t.modules[serial]
	if !ok {
		m = &module{device: newDevice(serial, t.now()), typ: typ}
		t.modules[serial] = m
		t.log.Infof("module %s (%s) paired", serial, typ)
	}
	if typ != "" {
		m.typ = typ
	}
	m.setConnected(connected, t.now())
}

// UpdateAvailability applies an availability pushed by a state report.
func (t *ModuleTracker) UpdateAvailability(serial string, a model.Availability) error {
	m, ok := t.modules[serial]
	if !ok {
		return fmt.Errorf("%w: module %s", ErrUnknownDevice, serial)
	}
	m.lastSeen = t.now()
	return m.transition(a)
}

// SetCalibrating marks a module as calibrating. Calibrating modules are never
// ready for a job.
func (t *ModuleTracker) SetCalibrating(serial string, on bool) {
	if m, ok := t.modules[serial]; ok {
		m.calibrating = on
	}
}

// SetProductionDuration records the configured processing time of a module.
func (t *ModuleTracker) SetProductionDuration(serial string, d time.Duration) {
	if m, ok := t.modules[serial]; ok {
		m.productionDuration = d
	}
}

// IsReadyForJob reports whether serial is connected, READY, not calibrating
// and either unassigned or already assigned to jobID.
func (t *ModuleTracker) IsReadyForJob(serial, jobID string) bool {
	m, ok := t.modules[serial]
	return ok && !m.calibrating && m.readyFor(jobID)
}

// Assign binds serial to jobID without changing its availability.
func (t *ModuleTracker) Assign(serial, jobID string) {
	if m, ok := t.modules[serial]; ok {
		m.jobID = jobID
	}
}

// Claim marks serial BUSY for jobID after a command was published.
func (t *ModuleTracker) Claim(serial, jobID string) {
	m, ok := t.modules[serial]
	if !ok {
		return
	}
	m.jobID = jobID
	if err := m.transition(model.AvailabilityBusy); err != nil {
		t.log.Warnf("claim module %s: %v", serial, err)
	}
}

// Release clears the assignment when it belongs to jobID. An empty jobID
// releases unconditionally.
func (t *ModuleTracker) Release(serial, jobID string) bool {
	m, ok := t.modules[serial]
	return ok && m.release(jobID)
}

// ReleaseJob clears every assignment held by jobID and returns the affected
// serials.
func (t *ModuleTracker) ReleaseJob(jobID string) []string {
	var out []string
	for _, serial := range t.serials() {
		if t.modules[serial].release(jobID) {
			out = append(out, serial)
		}
	}
	return out
}

// ReadyOfType lists the modules of typ that are ready for jobID, ordered by
// serial number.
func (t *ModuleTracker) ReadyOfType(typ model.ModuleType, jobID string) []string {
	var out []string
	for _, serial := range t.serials() {
		if t.modules[serial].typ == typ && t.IsReadyForJob(serial, jobID) {
			out = append(out, serial)
		}
	}
	return out
}

// ConnectedOfType lists connected modules of typ regardless of availability.
func (t *ModuleTracker) ConnectedOfType(typ model.ModuleType) []string {
	var out []string
	for _, serial := range t.serials() {
		m := t.modules[serial]
		if m.typ == typ && m.connected {
			out = append(out, serial)
		}
	}
	return out
}

// Connected reports whether serial is currently connected.
func (t *ModuleTracker) Connected(serial string) bool {
	m, ok := t.modules[serial]
	return ok && m.connected
}

// Module returns a snapshot of one module.
func (t *ModuleTracker) Module(serial string) (model.ModuleInfo, bool) {
	m, ok := t.modules[serial]
	if !ok {
		return model.ModuleInfo{}, false
	}
	return m.snapshot(), true
}

// All returns snapshots of every known module ordered by serial number.
func (t *ModuleTracker) All() []model.ModuleInfo {
	out := make([]model.ModuleInfo, 0, len(t.modules))
	for _, serial := range t.serials() {
		out = append(out, t.modules[serial].snapshot())
	}
	return out
}

// Reset clears all job assignments and blocks every module until it reports
// again.
func (t *ModuleTracker) Reset() {
	for _, m := range t.modules {
		m.jobID = ""
		m.calibrating = false
		_ = m.transition(model.AvailabilityBlocked)
	}
}

func (t *ModuleTracker) serials() []string {
	out := make([]string, 0, len(t.modules))
	for s := range t.modules {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func (m *module) snapshot() model.ModuleInfo {
	return model.ModuleInfo{
		DeviceInfo:         m.info(),
		Type:               m.typ,
		ProductionDuration: m.productionDuration,
		Calibrating:        m.calibrating,
	}
}
