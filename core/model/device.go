package model

import "time"

// ModuleType identifies the kind of stationary workstation.
type ModuleType string

const (
	ModuleHBW   ModuleType = "HBW"   // high-bay warehouse
	ModuleDPS   ModuleType = "DPS"   // delivery and pickup station
	ModuleMill  ModuleType = "MILL"  // milling station
	ModuleDrill ModuleType = "DRILL" // drilling station
	ModuleOven  ModuleType = "OVEN"
	ModuleAIQS  ModuleType = "AIQS" // quality inspection
	ModuleCHRG  ModuleType = "CHRG" // vehicle charger
)

// Command is an instruction executed by a module.
type Command string

const (
	CommandPick         Command = "PICK"
	CommandDrop         Command = "DROP"
	CommandMill         Command = "MILL"
	CommandDrill        Command = "DRILL"
	CommandFire         Command = "FIRE"
	CommandCheckQuality Command = "CHECK_QUALITY"
)

// Availability is the dispatch-facing state of a device.
type Availability string

const (
	AvailabilityBlocked Availability = "BLOCKED"
	AvailabilityBusy    Availability = "BUSY"
	AvailabilityReady   Availability = "READY"
)

// ConnectionState is reported by devices on their connection topic.
type ConnectionState string

const (
	ConnectionOnline  ConnectionState = "ONLINE"
	ConnectionOffline ConnectionState = "OFFLINE"
	ConnectionBroken  ConnectionState = "CONNECTIONBROKEN"
)

// Connected reports whether the state denotes a live device.
func (c ConnectionState) Connected() bool { return c == ConnectionOnline }

// DeviceInfo is the readiness data shared by modules and vehicles.
type DeviceInfo struct {
	Serial       string       `json:"serialNumber"`
	Connected    bool         `json:"connected"`
	Availability Availability `json:"available"`
	JobID        string       `json:"orderId,omitempty"`
	PairedAt     time.Time    `json:"pairedAt"`
	LastSeen     time.Time    `json:"lastSeen"`
}

// ModuleInfo is a read-only snapshot of a stationary module.
type ModuleInfo struct {
	DeviceInfo
	Type               ModuleType    `json:"type"`
	ProductionDuration time.Duration `json:"productionDuration,omitempty"`
	Calibrating        bool          `json:"calibrating"`
}

// PairingSnapshot is the retained view of all paired devices.
type PairingSnapshot struct {
	Modules   []ModuleInfo  `json:"modules"`
	Vehicles  []VehicleInfo `json:"transports"`
	Timestamp time.Time     `json:"timestamp"`
}
