package dispatch

import "fmt"

// Config defines dispatch-related settings.
type Config struct {
	// MaxParallelJobs caps concurrently running production jobs. Zero means
	// unlimited; storage jobs never count.
	MaxParallelJobs int `json:"max_parallel_jobs"`
	// DisableNodeBlocking routes vehicles without honouring node claims of
	// other vehicles.
	DisableNodeBlocking bool `json:"disable_node_blocking"`
	// MinBatteryPercent keeps idle vehicles below this charge BLOCKED.
	MinBatteryPercent float64 `json:"min_battery_percent"`
	// CompletedLimit bounds the completed-jobs snapshot.
	CompletedLimit int `json:"completed_limit"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.CompletedLimit == 0 {
		c.CompletedLimit = 50
	}
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if c.MaxParallelJobs < 0 {
		return fmt.Errorf("max_parallel_jobs must be >= 0")
	}
	if c.MinBatteryPercent < 0 || c.MinBatteryPercent > 100 {
		return fmt.Errorf("min_battery_percent must be within 0..100")
	}
	if c.CompletedLimit < 0 {
		return fmt.Errorf("completed_limit must be >= 0")
	}
	return nil
}
