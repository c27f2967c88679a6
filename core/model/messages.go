package model

import "time"

// ActionState is the execution state reported for a device action.
type ActionState string

const (
	ActionWaiting  ActionState = "WAITING"
	ActionRunning  ActionState = "RUNNING"
	ActionFinished ActionState = "FINISHED"
	ActionFailed   ActionState = "FAILED"
)

// Terminal reports whether the action has reached a final state.
func (a ActionState) Terminal() bool { return a == ActionFinished || a == ActionFailed }

// Quality check results reported by the inspection module.
const (
	QualityPassed = "PASSED"
	QualityFailed = "FAILED"
)

// ConnectionReport is published by every device on connect and disconnect.
type ConnectionReport struct {
	SerialNumber    string          `json:"serialNumber"`
	ConnectionState ConnectionState `json:"connectionState"`
	Version         string          `json:"version,omitempty"`
	Timestamp       time.Time       `json:"timestamp"`
}

// DeviceError is a fault reported by a device.
type DeviceError struct {
	ErrorType  string `json:"errorType"`
	ErrorLevel string `json:"errorLevel"`
}

// Fatal reports whether the error blocks the device.
func (e DeviceError) Fatal() bool { return e.ErrorLevel == "FATAL" }

// ModuleActionState is the action status part of a module report.
type ModuleActionState struct {
	ID      string      `json:"id"`
	Command Command     `json:"command"`
	State   ActionState `json:"state"`
	Result  string      `json:"result,omitempty"`
}

// ModuleLoad describes a workpiece held by a module, e.g. a warehouse bay.
type ModuleLoad struct {
	Type     WorkpieceType `json:"type"`
	Position string        `json:"position"`
}

// ModuleStateReport is the periodic state message of a module.
type ModuleStateReport struct {
	SerialNumber string             `json:"serialNumber"`
	OrderID      string             `json:"orderId,omitempty"`
	Paused       bool               `json:"paused"`
	ActionState  *ModuleActionState `json:"actionState,omitempty"`
	Loads        []ModuleLoad       `json:"loads,omitempty"`
	Errors       []DeviceError      `json:"errors,omitempty"`
	Timestamp    time.Time          `json:"timestamp"`
}

// VehicleActionState is the action status part of a vehicle report.
type VehicleActionState struct {
	ID     string            `json:"id"`
	Type   VehicleActionType `json:"type"`
	State  ActionState       `json:"state"`
	Result string            `json:"result,omitempty"`
}

// VehicleLoad is a workpiece on a vehicle loading position.
type VehicleLoad struct {
	LoadID       string        `json:"loadId,omitempty"`
	LoadType     WorkpieceType `json:"loadType,omitempty"`
	LoadPosition string        `json:"loadPosition"`
}

// BatteryState is the charge information reported by a vehicle.
type BatteryState struct {
	Percentage     float64 `json:"percentage"`
	CurrentVoltage float64 `json:"currentVoltage"`
	Charging       bool    `json:"charging"`
}

// VehicleStateReport is the periodic state message of a vehicle.
type VehicleStateReport struct {
	SerialNumber           string              `json:"serialNumber"`
	OrderID                string              `json:"orderId,omitempty"`
	LastNodeID             string              `json:"lastNodeId,omitempty"`
	LastModuleSerialNumber string              `json:"lastModuleSerialNumber,omitempty"`
	Driving                bool                `json:"driving"`
	Paused                 bool                `json:"paused"`
	ActionState            *VehicleActionState `json:"actionState,omitempty"`
	Load                   []VehicleLoad       `json:"load,omitempty"`
	BatteryState           *BatteryState       `json:"batteryState,omitempty"`
	Errors                 []DeviceError       `json:"errors,omitempty"`
	Timestamp              time.Time           `json:"timestamp"`
}

// JobSnapshot is the retained list of jobs published after every change.
type JobSnapshot struct {
	Jobs      []Job     `json:"orders"`
	Timestamp time.Time `json:"timestamp"`
}
