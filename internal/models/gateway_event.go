package models

import "time"

// Event types recorded in the gateway event log.
const (
	EventPollFailed    = "POLL_FAILED"
	EventDegraded      = "DEGRADED"
	EventDeviceAdded   = "DEVICE_ADDED"
	EventDeviceRemoved = "DEVICE_REMOVED"
	EventDefect        = "DEFECT"
	EventCommand       = "COMMAND"
)

// GatewayEvent is a single log entry.
type GatewayEvent struct {
	EventID     string    `json:"event_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Type        string    `json:"type"`
	DeviceID    string    `json:"device_id,omitempty"` // empty for gateway-level events
	Description string    `json:"description"`
	Metadata    any       `json:"metadata,omitempty"`
}
