package models

import "time"

// Operating mode, selected per room on the gateway (0=heating, 1=cooling) and
// copied onto every device in that room. The vendor has no per-device mode.
const (
	ModeHeat = "HEAT"
	ModeCool = "COOL"
)

// Connection status of a device as reported by the gateway.
const (
	ConnOK      = "OK"
	ConnError   = "ERROR"
	ConnUnknown = "UNKNOWN"
)

// Fields a pending override can target.
const (
	FieldTargetTemperature = "target_temperature"
	FieldPowerState        = "power_state"
)

// Override is an optimistic value applied after a successful command until the
// gateway confirms it or the settle window lapses.
type Override struct {
	Field     string    `json:"field"`
	Value     any       `json:"value"` // float64 for temperature, bool for power
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the override's settle window has lapsed at now.
func (o Override) Expired(now time.Time) bool {
	return !now.Before(o.ExpiresAt)
}

// DeviceState is the canonical per-device snapshot record. ID is the vendor
// device uid; UniqueID is the vendor's uniqueId, stable across re-pairing.
type DeviceState struct {
	ID       string `json:"id"`
	UniqueID string `json:"unique_id"`
	Name     string `json:"name"`
	Type     string `json:"type,omitempty"`
	Room     string `json:"room"`
	Home     string `json:"home,omitempty"`

	// Target is the clamped tempSet; Current is tempRoom.
	CurrentTemperature float64 `json:"current_temperature"`
	TargetTemperature  float64 `json:"target_temperature"`
	MinTemperature     float64 `json:"min_temperature"`
	MaxTemperature     float64 `json:"max_temperature"`

	// PowerState true means running (gateway standBy inverted). Mode is
	// HEAT or COOL, denormalized from the room. Function is the read-only
	// cooling preset slot.
	PowerState bool   `json:"power_state"`
	Mode       string `json:"mode"`
	Function   int    `json:"function,omitempty"`

	// ConnectionStatus is OK, ERROR or UNKNOWN.
	ConnectionStatus string    `json:"connection_status"`
	LastUpdated      time.Time `json:"last_updated"`

	// Overrides in flight for this device, merged into the raw-derived fields
	// at read time. Empty once the gateway has caught up.
	PendingOverrides []Override `json:"pending_overrides,omitempty"`
}
