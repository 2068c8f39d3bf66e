package config

import (
	"fmt"
	"net"
)

// FallbackSubnet is used when no usable interface can be found.
const FallbackSubnet = "192.168.1.0/24"

// EffectiveSubnet returns the subnet to scan: the configured value when
// set, otherwise the auto-detected local segment, otherwise a common
// home-network fallback.
func (c *Config) EffectiveSubnet() string {
	if c.Scan.Subnet != "" {
		return c.Scan.Subnet
	}
	if detected, err := DetectLocalSubnet(); err == nil {
		return detected
	}
	return FallbackSubnet
}

// DetectLocalSubnet derives the CIDR of the first usable non-loopback
// IPv4 interface on this host.
func DetectLocalSubnet() (string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return "", fmt.Errorf("list interfaces: %w", err)
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok || ipNet.IP.To4() == nil {
				continue
			}
			network := ipNet.IP.Mask(ipNet.Mask)
			ones, _ := ipNet.Mask.Size()
			return fmt.Sprintf("%s/%d", network, ones), nil
		}
	}

	return "", fmt.Errorf("no usable IPv4 interface found")
}
