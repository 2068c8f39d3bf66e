package domain

import "time"

// EventType classifies a device lifecycle transition.
type EventType string

const (
	EventConnected    EventType = "connected"
	EventDisconnected EventType = "disconnected"
	EventIPChanged    EventType = "ip_changed"
)

// ScanEvent records one lifecycle transition for a device. Events are
// append-only and immutable once created. For a given device, events
// are strictly ordered by timestamp and causally consistent with the
// device's IsOnline transitions: a connected event is never followed by
// another connected without an intervening disconnected.
type ScanEvent struct {
	ID       int64     `json:"id"`
	DeviceID int64     `json:"device_id"`
	MAC      string    `json:"mac_address"`
	Type     EventType `json:"event_type"`
	IP       string    `json:"ip_address,omitempty"`
	// OldIP is set only for ip_changed events.
	OldIP          string     `json:"old_ip_address,omitempty"`
	Timestamp      time.Time  `json:"timestamp"`
	ResponseTimeMs *float64   `json:"response_time_ms,omitempty"`
	ScanMethod     string     `json:"scan_method,omitempty"`
}
