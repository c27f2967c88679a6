package mqtt

import (
	"strings"
)

// Device families as they appear in topic paths.
const (
	FamilyModule  = "module"
	FamilyVehicle = "fts"
)

// Topics builds topic names below an optional prefix.
type Topics struct {
	Prefix string
}

func (t Topics) join(parts ...string) string {
	topic := strings.Join(parts, "/")
	if t.Prefix == "" {
		return topic
	}
	return strings.TrimSuffix(t.Prefix, "/") + "/" + topic
}

func (t Topics) device(family, serial, leaf string) string {
	return t.join(family, "v1", "ff", serial, leaf)
}

// Connection is the connection topic of a device.
func (t Topics) Connection(family, serial string) string {
	return t.device(family, serial, "connection")
}

// State is the state topic of a device.
func (t Topics) State(family, serial string) string { return t.device(family, serial, "state") }

// Order is the command topic of a device.
func (t Topics) Order(family, serial string) string { return t.device(family, serial, "order") }

// InstantAction is the instant action topic of a device.
func (t Topics) InstantAction(family, serial string) string {
	return t.device(family, serial, "instantAction")
}

// AllConnections and AllStates subscribe to every device of a family.
func (t Topics) AllConnections(family string) string { return t.device(family, "+", "connection") }
func (t Topics) AllStates(family string) string      { return t.device(family, "+", "state") }

func (t Topics) OrderRequest() string   { return t.join("ccu", "order", "request") }
func (t Topics) OrderActive() string    { return t.join("ccu", "order", "active") }
func (t Topics) OrderCompleted() string { return t.join("ccu", "order", "completed") }
func (t Topics) OrderCancel() string    { return t.join("ccu", "order", "cancel") }
func (t Topics) PairingState() string   { return t.join("ccu", "pairing", "state") }
func (t Topics) SetLayout() string      { return t.join("ccu", "set", "layout") }
func (t Topics) SetFlows() string       { return t.join("ccu", "set", "flows") }
func (t Topics) SetConfig() string      { return t.join("ccu", "set", "config") }
func (t Topics) SetReset() string       { return t.join("ccu", "set", "reset") }

// ParseDevice extracts the family, serial number and leaf of a device topic.
func (t Topics) ParseDevice(topic string) (family, serial, leaf string, ok bool) {
	if t.Prefix != "" {
		p := strings.TrimSuffix(t.Prefix, "/") + "/"
		if !strings.HasPrefix(topic, p) {
			return "", "", "", false
		}
		topic = strings.TrimPrefix(topic, p)
	}
	parts := strings.Split(topic, "/")
	if len(parts) != 5 || parts[1] != "v1" || parts[2] != "ff" || parts[3] == "" {
		return "", "", "", false
	}
	if parts[0] != FamilyModule && parts[0] != FamilyVehicle {
		return "", "", "", false
	}
	return parts[0], parts[3], parts[4], true
}
