package probe

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"

	nmap "github.com/Ullaakut/nmap/v3"

	"github.com/FlorentB974/lanmon/internal/domain"
)

// NmapStrategy discovers hosts with an nmap ping scan (-sn). When the
// process has raw socket privileges this performs ARP discovery on the
// local segment, which also yields MAC addresses and vendor strings.
type NmapStrategy struct{}

// NewNmapStrategy creates the nmap-backed strategy.
func NewNmapStrategy() *NmapStrategy {
	return &NmapStrategy{}
}

// Name returns the strategy identifier.
func (s *NmapStrategy) Name() string {
	return "nmap"
}

// Probe runs a host discovery scan against the subnet.
func (s *NmapStrategy) Probe(ctx context.Context, subnet string) ([]domain.Observation, error) {
	if _, err := exec.LookPath("nmap"); err != nil {
		return nil, fmt.Errorf("nmap binary not found in PATH: %w", ErrUnavailable)
	}

	scanner, err := nmap.NewScanner(
		ctx,
		nmap.WithTargets(subnet),
		nmap.WithPingScan(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create scanner: %w", err)
	}

	result, _, err := scanner.Run()
	if err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}
	if result == nil {
		return nil, fmt.Errorf("nil scan result")
	}

	var observations []domain.Observation
	for _, host := range result.Hosts {
		if host.Status.State != "up" || len(host.Addresses) == 0 {
			continue
		}

		obs := domain.Observation{Strategy: s.Name()}
		for _, addr := range host.Addresses {
			switch addr.AddrType {
			case "ipv4":
				obs.IP = addr.Addr
			case "mac":
				obs.MAC = addr.Addr
				obs.Vendor = addr.Vendor
			}
		}
		if len(host.Hostnames) > 0 {
			obs.Hostname = host.Hostnames[0].Name
		}
		obs.ResponseTimeMs = parseSRTT(host.Times.SRTT)

		observations = append(observations, obs)
	}
	return observations, nil
}

// parseSRTT converts nmap's smoothed RTT, reported in microseconds,
// to milliseconds.
func parseSRTT(srtt string) *float64 {
	if srtt == "" {
		return nil
	}
	us, err := strconv.ParseFloat(srtt, 64)
	if err != nil || us <= 0 {
		return nil
	}
	ms := us / 1000
	return &ms
}
