// Package enrich adds descriptive attributes to discovery observations
// after the probe pass: vendor from the embedded OUI database, hostname
// from reverse DNS, friendly name and model from mDNS, and open ports
// from a TCP probe. Every lookup is opportunistic; a failure leaves the
// field empty and never fails the session.
package enrich

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/FlorentB974/lanmon/internal/domain"
	"github.com/FlorentB974/lanmon/internal/logger"
)

// enrichParallelism bounds per-device lookups so a large segment does
// not exhaust sockets.
const enrichParallelism = 4

// Options selects which enrichment sources run.
type Options struct {
	MDNS    bool
	RDNS    bool
	Ports   bool
	Timeout time.Duration
}

// Enricher runs the enrichment pass over a session's observations.
type Enricher struct {
	opts Options
	oui  *OUIDB
	log  logger.Logger
}

// New builds an Enricher. A nil OUI database disables vendor lookup.
func New(log logger.Logger, oui *OUIDB, opts Options) *Enricher {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	return &Enricher{
		opts: opts,
		oui:  oui,
		log:  log.Named("enrich"),
	}
}

// Apply enriches the observations in place and returns the slice. The
// whole pass is bounded by the configured timeout.
func (e *Enricher) Apply(ctx context.Context, observations []domain.Observation) []domain.Observation {
	if len(observations) == 0 {
		return observations
	}

	ctx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	defer cancel()

	started := time.Now()

	var mdnsByIP map[string]mdnsInfo
	if e.opts.MDNS {
		mdnsByIP = browseMDNS(ctx, targetIPs(observations), e.log)
	}

	sem := semaphore.NewWeighted(enrichParallelism)
	var wg sync.WaitGroup
	for i := range observations {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(obs *domain.Observation) {
			defer wg.Done()
			defer sem.Release(1)
			e.enrichOne(ctx, obs, mdnsByIP[obs.IP])
		}(&observations[i])
	}
	wg.Wait()

	e.log.Debug("enrichment pass completed",
		logger.Int("devices", len(observations)),
		logger.Duration("elapsed", time.Since(started)))
	return observations
}

func (e *Enricher) enrichOne(ctx context.Context, obs *domain.Observation, m mdnsInfo) {
	if obs.Vendor == "" && e.oui != nil {
		obs.Vendor = e.oui.Lookup(obs.MAC)
	}

	if obs.FriendlyName == "" {
		obs.FriendlyName = m.FriendlyName
	}
	if obs.Hostname == "" {
		obs.Hostname = m.Hostname
	}
	if obs.Model == "" {
		obs.Model = m.Model
	}
	if obs.Manufacturer == "" {
		obs.Manufacturer = m.Manufacturer
	}
	obs.Services = appendUnique(obs.Services, m.Services...)

	if e.opts.RDNS && obs.Hostname == "" {
		obs.Hostname = reverseLookup(ctx, obs.IP)
	}

	if e.opts.Ports && obs.IP != "" {
		ports, services := scanPorts(ctx, obs.IP)
		obs.OpenPorts = append(obs.OpenPorts, ports...)
		obs.Services = appendUnique(obs.Services, services...)
	}

	if obs.DeviceType == "" {
		obs.DeviceType = InferDeviceType(obs.Services, obs.OpenPorts, obs.Vendor)
	}
}

func targetIPs(observations []domain.Observation) map[string]struct{} {
	ips := make(map[string]struct{}, len(observations))
	for _, obs := range observations {
		if obs.IP != "" {
			ips[obs.IP] = struct{}{}
		}
	}
	return ips
}

func appendUnique(dst []string, values ...string) []string {
	for _, v := range values {
		if v == "" {
			continue
		}
		found := false
		for _, existing := range dst {
			if existing == v {
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, v)
		}
	}
	return dst
}
