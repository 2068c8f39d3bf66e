package domain

import (
	"encoding/json"
	"time"
)

// Device is the durable record of a network endpoint, keyed by its MAC
// address. The reconciler owns IsOnline, FirstSeen and LastSeen; the
// API layer owns CustomName, Notes, IsFavorite and IsKnown; everything
// else is populated opportunistically from observations and never
// overwritten with an empty value.
type Device struct {
	ID  int64  `json:"id"`
	MAC string `json:"mac_address"`
	IP  string `json:"ip_address,omitempty"`

	Hostname     string `json:"hostname,omitempty"`
	Vendor       string `json:"vendor,omitempty"`
	Manufacturer string `json:"manufacturer,omitempty"`
	Model        string `json:"model,omitempty"`
	DeviceType   string `json:"device_type,omitempty"`
	FriendlyName string `json:"friendly_name,omitempty"`

	// User-editable fields. Read-only to the reconciler.
	CustomName string `json:"custom_name,omitempty"`
	Notes      string `json:"notes,omitempty"`
	IsFavorite bool   `json:"is_favorite"`
	IsKnown    bool   `json:"is_known"`

	IsOnline bool `json:"is_online"`

	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// OpenPorts and Services are JSON-serialized lists, opportunistic.
	OpenPorts string `json:"open_ports,omitempty"`
	Services  string `json:"services,omitempty"`
}

// DisplayName returns the best human-readable name for the device:
// custom name, then friendly name, then hostname, then the MAC itself.
func (d *Device) DisplayName() string {
	switch {
	case d.CustomName != "":
		return d.CustomName
	case d.FriendlyName != "":
		return d.FriendlyName
	case d.Hostname != "":
		return d.Hostname
	default:
		return d.MAC
	}
}

// ApplyObservation copies opportunistic attributes from an observation
// onto the device. Last non-null wins: a known value is never cleared
// by an observation that lacks it.
func (d *Device) ApplyObservation(obs Observation) {
	if obs.Hostname != "" {
		d.Hostname = obs.Hostname
	}
	if obs.Vendor != "" {
		d.Vendor = obs.Vendor
	}
	if obs.Manufacturer != "" {
		d.Manufacturer = obs.Manufacturer
	}
	if obs.Model != "" {
		d.Model = obs.Model
	}
	if obs.FriendlyName != "" {
		d.FriendlyName = obs.FriendlyName
	}
	if obs.DeviceType != "" {
		d.DeviceType = obs.DeviceType
	}
	if len(obs.OpenPorts) > 0 {
		if data, err := json.Marshal(obs.OpenPorts); err == nil {
			d.OpenPorts = string(data)
		}
	}
	if len(obs.Services) > 0 {
		if data, err := json.Marshal(obs.Services); err == nil {
			d.Services = string(data)
		}
	}
}

// DeviceUpdate carries the user-editable fields the API layer may
// change. Nil pointers mean "leave unchanged".
type DeviceUpdate struct {
	CustomName *string `json:"custom_name,omitempty"`
	Notes      *string `json:"notes,omitempty"`
	IsFavorite *bool   `json:"is_favorite,omitempty"`
	IsKnown    *bool   `json:"is_known,omitempty"`
}

// Apply copies the set fields of the update onto the device.
func (u DeviceUpdate) Apply(d *Device) {
	if u.CustomName != nil {
		d.CustomName = *u.CustomName
	}
	if u.Notes != nil {
		d.Notes = *u.Notes
	}
	if u.IsFavorite != nil {
		d.IsFavorite = *u.IsFavorite
	}
	if u.IsKnown != nil {
		d.IsKnown = *u.IsKnown
	}
}
