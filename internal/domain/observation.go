package domain

// Observation is a single discovery result for one endpoint from one
// probe strategy in one scan session. Observations carry no identity
// beyond the MAC address and are never persisted directly.
type Observation struct {
	// MAC is the link-layer address in canonical form (see CanonicalMAC).
	MAC string `json:"mac"`
	// IP is the observed network-layer address, if any.
	IP string `json:"ip,omitempty"`
	// Hostname, Vendor and friends are opportunistic: strategies and
	// enrichers fill them in when they happen to know them.
	Hostname     string `json:"hostname,omitempty"`
	Vendor       string `json:"vendor,omitempty"`
	Manufacturer string `json:"manufacturer,omitempty"`
	Model        string `json:"model,omitempty"`
	FriendlyName string `json:"friendly_name,omitempty"`
	DeviceType   string `json:"device_type,omitempty"`
	OpenPorts    []int  `json:"open_ports,omitempty"`
	Services     []string `json:"services,omitempty"`
	// ResponseTimeMs is the probe round-trip in milliseconds, when the
	// strategy measured one.
	ResponseTimeMs *float64 `json:"response_time_ms,omitempty"`
	// Strategy identifies the probe strategy that produced this
	// observation; recorded as scan_method provenance on events.
	Strategy string `json:"strategy"`
}

