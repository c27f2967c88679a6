package reservation

import (
	"fmt"

	"github.com/kilianp07/factoryccu/core/model"
)

// Capacity is a bay-set: the maximum number of workpieces of each type a
// warehouse stores.
type Capacity map[model.WorkpieceType]int

// Config describes the storage capacity of the known warehouses.
type Config struct {
	// DefaultBaysPerType applies to warehouses without an explicit entry.
	DefaultBaysPerType int                 `json:"default_bays_per_type"`
	Warehouses         map[string]Capacity `json:"warehouses"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.DefaultBaysPerType == 0 {
		c.DefaultBaysPerType = 3
	}
}

// Validate checks capacities are not negative.
func (c Config) Validate() error {
	if c.DefaultBaysPerType < 0 {
		return fmt.Errorf("default_bays_per_type must be >= 0")
	}
	for serial, capacity := range c.Warehouses {
		for typ, n := range capacity {
			if !typ.Valid() {
				return fmt.Errorf("warehouse %s: unknown workpiece type %q", serial, typ)
			}
			if n < 0 {
				return fmt.Errorf("warehouse %s: negative capacity for %s", serial, typ)
			}
		}
	}
	return nil
}

func (c Config) capacityFor(serial string) Capacity {
	if capacity, ok := c.Warehouses[serial]; ok {
		return capacity
	}
	capacity := Capacity{}
	for _, t := range []model.WorkpieceType{model.WorkpieceBlue, model.WorkpieceRed, model.WorkpieceWhite} {
		capacity[t] = c.DefaultBaysPerType
	}
	return capacity
}
