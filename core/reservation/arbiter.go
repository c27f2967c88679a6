// Package reservation grants exclusive claims on warehouse stock units and
// empty storage bays. Each job holds at most one reservation per kind.
package reservation

import (
	"errors"
	"fmt"
	"sort"

	"github.com/kilianp07/factoryccu/core/logger"
	"github.com/kilianp07/factoryccu/core/model"
)

var (
	// ErrNoStock means no eligible warehouse holds an unreserved unit.
	ErrNoStock = errors.New("no stock available")
	// ErrNoFreeBay means no eligible warehouse has an unreserved empty bay.
	ErrNoFreeBay = errors.New("no free bay available")
	// ErrReservationConflict is raised when a job asks for a second,
	// different resource of the same kind.
	ErrReservationConflict = errors.New("conflicting reservation")
)

// Kind distinguishes stock reservations from bay reservations.
type Kind string

const (
	KindStock Kind = "STOCK"
	KindBay   Kind = "BAY"
)

// Reservation is a single-owner claim keyed by job id.
type Reservation struct {
	JobID     string              `json:"orderId"`
	Kind      Kind                `json:"kind"`
	Warehouse string              `json:"warehouse"`
	Type      model.WorkpieceType `json:"type"`
}

// Warehouses reports whether a warehouse may currently serve reservations.
type Warehouses interface {
	Connected(serial string) bool
}

// Fleet reports the number of usable vehicles.
type Fleet interface {
	Count() int
}

// Arbiter tracks inventory per warehouse and hands out reservations.
// It is not safe for concurrent use.
type Arbiter struct {
	cfg        Config
	warehouses map[string]*warehouse
	held       map[Kind]map[string]Reservation
	last       string
	eligible   Warehouses
	fleet      Fleet
	log        logger.Logger
}

// NewArbiter builds an arbiter. eligible and fleet may be nil, in which case
// every warehouse is eligible and the fleet is treated as larger than one.
func NewArbiter(cfg Config, eligible Warehouses, fleet Fleet, log logger.Logger) *Arbiter {
	cfg.SetDefaults()
	a := &Arbiter{
		cfg:        cfg,
		warehouses: make(map[string]*warehouse),
		held: map[Kind]map[string]Reservation{
			KindStock: {},
			KindBay:   {},
		},
		eligible: eligible,
		fleet:    fleet,
		log:      log,
	}
	for serial := range cfg.Warehouses {
		a.warehouses[serial] = newWarehouse(serial, cfg.capacityFor(serial))
	}
	return a
}

// UpdateInventory replaces the stored workpieces of a warehouse.
func (a *Arbiter) UpdateInventory(serial string, loads []model.ModuleLoad) {
	w, ok := a.warehouses[serial]
	if !ok {
		w = newWarehouse(serial, a.cfg.capacityFor(serial))
		a.warehouses[serial] = w
	}
	w.setLoads(loads)
}

// ReserveWorkpiece claims a stock unit of t for jobID and returns the
// warehouse holding it.
func (a *Arbiter) ReserveWorkpiece(jobID string, t model.WorkpieceType) (string, error) {
	return a.reserve(KindStock, jobID, t)
}

// ReserveEmptyBay claims a free bay for a workpiece of t.
func (a *Arbiter) ReserveEmptyBay(jobID string, t model.WorkpieceType) (string, error) {
	return a.reserve(KindBay, jobID, t)
}

func (a *Arbiter) reserve(kind Kind, jobID string, t model.WorkpieceType) (string, error) {
	if r, ok := a.held[kind][jobID]; ok {
		if r.Type == t {
			return r.Warehouse, nil
		}
		return "", fmt.Errorf("%w: job %s already holds %s %s in %s, asked for %s",
			ErrReservationConflict, jobID, kind, r.Type, r.Warehouse, t)
	}
	candidates := a.candidates(kind, t)
	if len(candidates) == 0 {
		if kind == KindStock {
			return "", fmt.Errorf("%w: %s", ErrNoStock, t)
		}
		return "", fmt.Errorf("%w: %s", ErrNoFreeBay, t)
	}
	serial := a.choose(kind, t, candidates)
	a.held[kind][jobID] = Reservation{JobID: jobID, Kind: kind, Warehouse: serial, Type: t}
	a.last = serial
	a.log.Debugw("reservation granted", map[string]any{
		"job": jobID, "kind": string(kind), "warehouse": serial, "type": string(t),
	})
	return serial, nil
}

// candidates lists eligible warehouses with at least one free unit, ordered
// by serial number.
func (a *Arbiter) candidates(kind Kind, t model.WorkpieceType) []string {
	var out []string
	for serial := range a.warehouses {
		if a.eligible != nil && !a.eligible.Connected(serial) {
			continue
		}
		if a.free(kind, serial, t) > 0 {
			out = append(out, serial)
		}
	}
	sort.Strings(out)
	return out
}

// choose sticks to the last used warehouse when only one vehicle serves the
// factory and otherwise balances toward the warehouse with most free units,
// rotating away from the last one on ties.
func (a *Arbiter) choose(kind Kind, t model.WorkpieceType, candidates []string) string {
	if a.fleet != nil && a.fleet.Count() == 1 {
		for _, c := range candidates {
			if c == a.last {
				return c
			}
		}
		return candidates[0]
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		fc, fb := a.free(kind, c, t), a.free(kind, best, t)
		if fc > fb || (fc == fb && best == a.last) {
			best = c
		}
	}
	return best
}

// free returns physical units (or empty bays) minus outstanding reservations.
func (a *Arbiter) free(kind Kind, serial string, t model.WorkpieceType) int {
	w := a.warehouses[serial]
	n := w.units(t)
	if kind == KindBay {
		n = w.bays(t)
	}
	for _, r := range a.held[kind] {
		if r.Warehouse == serial && r.Type == t {
			n--
		}
	}
	return n
}

// Release frees both reservation kinds held by jobID. It reports whether
// anything was released.
func (a *Arbiter) Release(jobID string) bool {
	released := false
	for _, kind := range []Kind{KindStock, KindBay} {
		if _, ok := a.held[kind][jobID]; ok {
			delete(a.held[kind], jobID)
			released = true
		}
	}
	return released
}

// Reservation returns the reservation of the given kind held by jobID.
func (a *Arbiter) Reservation(kind Kind, jobID string) (Reservation, bool) {
	r, ok := a.held[kind][jobID]
	return r, ok
}

// Available sums the unreserved stock units of t across eligible warehouses.
func (a *Arbiter) Available(t model.WorkpieceType) int {
	n := 0
	for _, serial := range a.candidates(KindStock, t) {
		n += a.free(KindStock, serial, t)
	}
	return n
}

// Reservations lists all outstanding reservations ordered by job id.
func (a *Arbiter) Reservations() []Reservation {
	var out []Reservation
	for _, kind := range []Kind{KindStock, KindBay} {
		for _, r := range a.held[kind] {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].JobID == out[j].JobID {
			return out[i].Kind < out[j].Kind
		}
		return out[i].JobID < out[j].JobID
	})
	return out
}

// Reset drops every reservation. Inventory is kept.
func (a *Arbiter) Reset() {
	a.held[KindStock] = map[string]Reservation{}
	a.held[KindBay] = map[string]Reservation{}
	a.last = ""
}
