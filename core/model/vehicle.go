package model

// VehicleInfo is a read-only snapshot of an automated guided vehicle.
type VehicleInfo struct {
	DeviceInfo
	LastNodeID       string `json:"lastNodeId,omitempty"`
	LastModuleSerial string `json:"lastModuleSerialNumber,omitempty"`
	// Loads maps a physical loading position to the job owning the
	// workpiece placed there.
	Loads          map[string]string `json:"loads,omitempty"`
	Charging       bool              `json:"charging"`
	BatteryVoltage float64           `json:"batteryVoltage,omitempty"`
	BatteryPercent float64           `json:"batteryPercentage,omitempty"`
}

// HasFreeBay reports whether at least one loading position is empty given
// the vehicle's capacity.
func (v VehicleInfo) HasFreeBay(capacity int) bool {
	return len(v.Loads) < capacity
}

// Carries reports whether the vehicle holds a workpiece of the given job.
func (v VehicleInfo) Carries(jobID string) bool {
	for _, id := range v.Loads {
		if id == jobID {
			return true
		}
	}
	return false
}
