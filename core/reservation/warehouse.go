package reservation

import "github.com/kilianp07/factoryccu/core/model"

type warehouse struct {
	serial   string
	capacity Capacity
	// occupancy counts the workpieces physically stored per type.
	occupancy map[model.WorkpieceType]int
}

func newWarehouse(serial string, capacity Capacity) *warehouse {
	return &warehouse{serial: serial, capacity: capacity, occupancy: map[model.WorkpieceType]int{}}
}

func (w *warehouse) setLoads(loads []model.ModuleLoad) {
	w.occupancy = make(map[model.WorkpieceType]int, len(loads))
	for _, l := range loads {
		if l.Type.Valid() {
			w.occupancy[l.Type]++
		}
	}
}

func (w *warehouse) units(t model.WorkpieceType) int { return w.occupancy[t] }

func (w *warehouse) bays(t model.WorkpieceType) int {
	free := w.capacity[t] - w.occupancy[t]
	if free < 0 {
		return 0
	}
	return free
}
