package routing

import "sort"

// NodeBlocker grants and releases exclusive claims on graph nodes so two
// vehicles are never routed through the same node at the same time.
type NodeBlocker interface {
	// BlockedNodeIDs returns the nodes claimed by vehicles other than vehicleID.
	BlockedNodeIDs(vehicleID string) []string
	// ClaimNodeSequence appends the nodes to the vehicle's ordered claims.
	ClaimNodeSequence(vehicleID string, nodeIDs []string)
	// ReleaseNodesBefore drops the claims preceding nodeID.
	ReleaseNodesBefore(vehicleID, nodeID string)
	// ReleaseAllExcept keeps only the claim on nodeID.
	ReleaseAllExcept(vehicleID, nodeID string)
	// ReleaseAll drops every claim of the vehicle.
	ReleaseAll(vehicleID string)
}

// MemoryLedger is an in-memory NodeBlocker. Claims are soft locks: there is
// no timeout, a vehicle that never reaches a node keeps it until released.
type MemoryLedger struct {
	claims map[string][]string
}

// NewMemoryLedger returns an empty ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{claims: make(map[string][]string)}
}

func (l *MemoryLedger) BlockedNodeIDs(vehicleID string) []string {
	set := make(map[string]struct{})
	for v, nodes := range l.claims {
		if v == vehicleID {
			continue
		}
		for _, n := range nodes {
			set[n] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for n := range set {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func (l *MemoryLedger) ClaimNodeSequence(vehicleID string, nodeIDs []string) {
	existing := l.claims[vehicleID]
	held := make(map[string]bool, len(existing))
	for _, n := range existing {
		held[n] = true
	}
	for _, n := range nodeIDs {
		if held[n] {
			continue
		}
		held[n] = true
		existing = append(existing, n)
	}
	l.claims[vehicleID] = existing
}

func (l *MemoryLedger) ReleaseNodesBefore(vehicleID, nodeID string) {
	nodes := l.claims[vehicleID]
	for i, n := range nodes {
		if n == nodeID {
			l.claims[vehicleID] = append([]string(nil), nodes[i:]...)
			return
		}
	}
}

func (l *MemoryLedger) ReleaseAllExcept(vehicleID, nodeID string) {
	if nodeID == "" {
		delete(l.claims, vehicleID)
		return
	}
	l.claims[vehicleID] = []string{nodeID}
}

func (l *MemoryLedger) ReleaseAll(vehicleID string) { delete(l.claims, vehicleID) }

// Claims returns the ordered claims of a vehicle.
func (l *MemoryLedger) Claims(vehicleID string) []string {
	return append([]string(nil), l.claims[vehicleID]...)
}
