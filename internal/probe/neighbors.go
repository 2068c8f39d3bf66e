package probe

import (
	"context"
	"net"
	"os"
	"os/exec"
	"regexp"
	"strings"

	"github.com/FlorentB974/lanmon/internal/domain"
)

// NeighborStrategy reads the operating system's neighbor cache. It is
// the terminal fallback: it needs no extra tools or privileges and
// returns whatever the kernel already knows, which may be empty or
// stale. It never reports ErrUnavailable.
type NeighborStrategy struct{}

// NewNeighborStrategy creates the neighbor cache strategy.
func NewNeighborStrategy() *NeighborStrategy {
	return &NeighborStrategy{}
}

// Name returns the strategy identifier.
func (s *NeighborStrategy) Name() string {
	return "neighbors"
}

// Probe returns cached neighbor entries inside the subnet.
func (s *NeighborStrategy) Probe(ctx context.Context, subnet string) ([]domain.Observation, error) {
	observations := readNeighborTable(ctx, s.Name())
	return filterSubnet(observations, subnet), nil
}

// readNeighborTable collects neighbor cache entries, preferring the
// proc interface and shelling out only where it is absent (non-Linux).
func readNeighborTable(ctx context.Context, strategy string) []domain.Observation {
	if data, err := os.ReadFile("/proc/net/arp"); err == nil {
		return parseProcNetARP(string(data), strategy)
	}
	if out, err := exec.CommandContext(ctx, "ip", "neigh").Output(); err == nil {
		return parseIPNeigh(string(out), strategy)
	}
	if out, err := exec.CommandContext(ctx, "arp", "-a").Output(); err == nil {
		return parseARPTable(string(out), strategy)
	}
	return nil
}

// parseProcNetARP parses /proc/net/arp. The first line is a header;
// entries with flags 0x0 are incomplete and carry a zero hardware
// address.
func parseProcNetARP(content, strategy string) []domain.Observation {
	var observations []domain.Observation
	for i, line := range strings.Split(content, "\n") {
		if i == 0 {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 6 {
			continue
		}
		ip, flags, mac := fields[0], fields[2], fields[3]
		if flags == "0x0" || mac == "00:00:00:00:00:00" {
			continue
		}
		observations = append(observations, domain.Observation{
			MAC:      mac,
			IP:       ip,
			Strategy: strategy,
		})
	}
	return observations
}

// parseIPNeigh parses `ip neigh` output, for example:
//
//	192.168.1.1 dev eth0 lladdr aa:bb:cc:dd:ee:ff REACHABLE
//
// Entries without an lladdr token (FAILED, INCOMPLETE) are skipped.
func parseIPNeigh(output, strategy string) []domain.Observation {
	var observations []domain.Observation
	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		var mac string
		for i := 0; i < len(fields)-1; i++ {
			if fields[i] == "lladdr" {
				mac = fields[i+1]
				break
			}
		}
		if mac == "" {
			continue
		}
		observations = append(observations, domain.Observation{
			MAC:      mac,
			IP:       fields[0],
			Strategy: strategy,
		})
	}
	return observations
}

// arpTableLine matches BSD-style `arp -a` output: hostname (IP) at MAC.
var arpTableLine = regexp.MustCompile(`\((\d+\.\d+\.\d+\.\d+)\)\s+at\s+([0-9a-fA-F:]{17})`)

func parseARPTable(output, strategy string) []domain.Observation {
	var observations []domain.Observation
	for _, line := range strings.Split(output, "\n") {
		m := arpTableLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if strings.EqualFold(m[2], "ff:ff:ff:ff:ff:ff") {
			continue
		}
		observations = append(observations, domain.Observation{
			MAC:      m[2],
			IP:       m[1],
			Strategy: strategy,
		})
	}
	return observations
}

// filterSubnet keeps observations whose address falls inside the
// subnet. The neighbor cache spans every attached segment, so entries
// from other networks would otherwise leak into the session. An
// unparseable subnet disables the filter.
func filterSubnet(observations []domain.Observation, subnet string) []domain.Observation {
	_, network, err := net.ParseCIDR(subnet)
	if err != nil {
		return observations
	}
	out := make([]domain.Observation, 0, len(observations))
	for _, obs := range observations {
		ip := net.ParseIP(obs.IP)
		if ip == nil || !network.Contains(ip) {
			continue
		}
		out = append(out, obs)
	}
	return out
}
