package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/exec"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/FlorentB974/lanmon/internal/domain"
)

// maxSweepHosts caps subnet expansion so a mistakenly wide CIDR does
// not turn the sweep into a flood.
const maxSweepHosts = 1024

// PingSweepStrategy pings every host in the subnet with bounded
// parallelism to refresh the kernel's neighbor cache, then reads the
// cache back to pair network addresses with link addresses.
type PingSweepStrategy struct {
	parallelism int64
}

// NewPingSweepStrategy creates the ping sweep strategy.
func NewPingSweepStrategy() *PingSweepStrategy {
	return &PingSweepStrategy{parallelism: 64}
}

// Name returns the strategy identifier.
func (s *PingSweepStrategy) Name() string {
	return "pingsweep"
}

// Probe sweeps the subnet and returns neighbor cache entries inside it.
func (s *PingSweepStrategy) Probe(ctx context.Context, subnet string) ([]domain.Observation, error) {
	if _, err := exec.LookPath("ping"); err != nil {
		return nil, fmt.Errorf("ping binary not found in PATH: %w", ErrUnavailable)
	}

	hosts, err := hostsInSubnet(subnet, maxSweepHosts)
	if err != nil {
		return nil, fmt.Errorf("failed to expand subnet %q: %w", subnet, err)
	}

	latencies := s.sweep(ctx, hosts)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	observations := filterSubnet(readNeighborTable(ctx, s.Name()), subnet)
	for i := range observations {
		if ms, ok := latencies[observations[i].IP]; ok {
			v := ms
			observations[i].ResponseTimeMs = &v
		}
	}
	return observations, nil
}

// sweep pings hosts concurrently, bounded by the semaphore, and
// records round trip times for the ones that answered.
func (s *PingSweepStrategy) sweep(ctx context.Context, hosts []string) map[string]float64 {
	var (
		sem       = semaphore.NewWeighted(s.parallelism)
		mu        sync.Mutex
		wg        sync.WaitGroup
		latencies = make(map[string]float64)
	)

	for _, host := range hosts {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(ip string) {
			defer wg.Done()
			defer sem.Release(1)

			started := time.Now()
			if pingHost(ctx, ip) {
				elapsed := float64(time.Since(started).Microseconds()) / 1000
				mu.Lock()
				latencies[ip] = elapsed
				mu.Unlock()
			}
		}(host)
	}
	wg.Wait()
	return latencies
}

func pingHost(ctx context.Context, ip string) bool {
	cmd := exec.CommandContext(ctx, "ping", "-c", "1", "-W", "1", ip)
	return cmd.Run() == nil
}

// hostsInSubnet expands an IPv4 CIDR into its usable host addresses,
// excluding the network and broadcast addresses, capped at limit.
func hostsInSubnet(subnet string, limit int) ([]string, error) {
	_, network, err := net.ParseCIDR(subnet)
	if err != nil {
		return nil, err
	}
	base := network.IP.To4()
	if base == nil {
		return nil, errors.New("only IPv4 subnets are supported")
	}
	mask := net.IP(network.Mask).To4()

	broadcast := make(net.IP, len(base))
	for i := range broadcast {
		broadcast[i] = base[i] | ^mask[i]
	}

	var hosts []string
	for cur := append(net.IP(nil), base...); network.Contains(cur) && len(hosts) < limit; incIP(cur) {
		if cur.Equal(base) || cur.Equal(broadcast) {
			continue
		}
		hosts = append(hosts, cur.String())
	}
	return hosts, nil
}

func incIP(ip net.IP) {
	for i := len(ip) - 1; i >= 0; i-- {
		ip[i]++
		if ip[i] != 0 {
			return
		}
	}
}
