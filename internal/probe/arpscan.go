package probe

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"

	"github.com/FlorentB974/lanmon/internal/domain"
)

// ArpScanStrategy shells out to the arp-scan tool, which sends ARP
// requests to every address in the subnet. Requires the binary to be
// installed and usually raw socket privileges.
type ArpScanStrategy struct{}

// NewArpScanStrategy creates the arp-scan backed strategy.
func NewArpScanStrategy() *ArpScanStrategy {
	return &ArpScanStrategy{}
}

// Name returns the strategy identifier.
func (s *ArpScanStrategy) Name() string {
	return "arpscan"
}

// Probe runs arp-scan against the subnet and parses its output.
func (s *ArpScanStrategy) Probe(ctx context.Context, subnet string) ([]domain.Observation, error) {
	if _, err := exec.LookPath("arp-scan"); err != nil {
		return nil, fmt.Errorf("arp-scan binary not found in PATH: %w", ErrUnavailable)
	}

	cmd := exec.CommandContext(ctx, "arp-scan", subnet)
	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("arp-scan failed: %w", err)
	}

	return parseArpScanOutput(string(out), s.Name()), nil
}

// Result lines are IP, MAC and an optional vendor string separated by
// whitespace. Header and summary lines do not match.
var arpScanLine = regexp.MustCompile(`^(\d+\.\d+\.\d+\.\d+)\s+([0-9a-fA-F:]{17})\s*(.*)$`)

func parseArpScanOutput(output, strategy string) []domain.Observation {
	var observations []domain.Observation
	for _, line := range strings.Split(output, "\n") {
		m := arpScanLine.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		observations = append(observations, domain.Observation{
			MAC:      m[2],
			IP:       m[1],
			Vendor:   strings.TrimSpace(m[3]),
			Strategy: strategy,
		})
	}
	return observations
}
