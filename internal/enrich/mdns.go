package enrich

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"

	"github.com/FlorentB974/lanmon/internal/logger"
)

// mdnsBrowseWindow is how long a browse collects announcements before
// the per-device enrichment starts.
const mdnsBrowseWindow = 3 * time.Second

// mdnsServiceTypes are the DNS-SD types worth browsing on a home or
// office segment. Each one hints at what kind of device answered.
var mdnsServiceTypes = []string{
	"_http._tcp",
	"_airplay._tcp",
	"_raop._tcp",
	"_googlecast._tcp",
	"_spotify-connect._tcp",
	"_homekit._tcp",
	"_hap._tcp",
	"_printer._tcp",
	"_ipp._tcp",
	"_pdl-datastream._tcp",
	"_scanner._tcp",
	"_smb._tcp",
	"_afpovertcp._tcp",
	"_ssh._tcp",
	"_device-info._tcp",
	"_sonos._tcp",
}

// mdnsInfo aggregates everything learned about one address during the
// browse window.
type mdnsInfo struct {
	FriendlyName string
	Hostname     string
	Model        string
	Manufacturer string
	Services     []string
}

// browseMDNS runs a single bulk browse over all service types and
// returns per-address results for the requested targets. One shared
// browse avoids opening a resolver per device, which exhausts sockets
// on large segments.
func browseMDNS(ctx context.Context, targets map[string]struct{}, log logger.Logger) map[string]mdnsInfo {
	if len(targets) == 0 {
		return nil
	}

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		log.Debug("mdns resolver unavailable", logger.Error(err))
		return nil
	}

	browseCtx, cancel := context.WithTimeout(ctx, mdnsBrowseWindow)
	defer cancel()

	var (
		mu   sync.Mutex
		info = make(map[string]mdnsInfo)
		wg   sync.WaitGroup
	)

	for _, serviceType := range mdnsServiceTypes {
		entries := make(chan *zeroconf.ServiceEntry)

		wg.Add(1)
		go func(st string, entries <-chan *zeroconf.ServiceEntry) {
			defer wg.Done()
			for entry := range entries {
				ip := entryIPv4(entry)
				if ip == "" {
					continue
				}
				if _, want := targets[ip]; !want {
					continue
				}
				mu.Lock()
				cur := info[ip]
				applyServiceEntry(&cur, st, entry)
				info[ip] = cur
				mu.Unlock()
			}
		}(serviceType, entries)

		if err := resolver.Browse(browseCtx, serviceType, "local.", entries); err != nil {
			log.Debug("mdns browse failed",
				logger.String("service", serviceType),
				logger.Error(err))
		}
	}

	wg.Wait()
	return info
}

func entryIPv4(entry *zeroconf.ServiceEntry) string {
	if len(entry.AddrIPv4) == 0 {
		return ""
	}
	return entry.AddrIPv4[0].String()
}

// applyServiceEntry folds a service announcement into the accumulated
// info. The service instance name is usually the device's advertised
// friendly name; TXT records carry model and manufacturer, with md/am
// being the Apple spellings.
func applyServiceEntry(cur *mdnsInfo, serviceType string, entry *zeroconf.ServiceEntry) {
	if cur.FriendlyName == "" && entry.Instance != "" {
		cur.FriendlyName = entry.Instance
	}
	if cur.Hostname == "" && entry.HostName != "" {
		cur.Hostname = strings.TrimSuffix(entry.HostName, ".")
	}

	txt := parseTXT(entry.Text)
	if cur.Model == "" {
		for _, key := range []string{"model", "md", "am"} {
			if v := txt[key]; v != "" {
				cur.Model = v
				break
			}
		}
	}
	if cur.Manufacturer == "" {
		for _, key := range []string{"manufacturer", "usb_MFG", "ty"} {
			if v := txt[key]; v != "" {
				cur.Manufacturer = v
				break
			}
		}
	}

	service := fmt.Sprintf("%s (%s)", entry.Instance, serviceType)
	for _, existing := range cur.Services {
		if existing == service {
			return
		}
	}
	cur.Services = append(cur.Services, service)
}

func parseTXT(records []string) map[string]string {
	txt := make(map[string]string, len(records))
	for _, record := range records {
		parts := strings.SplitN(record, "=", 2)
		if len(parts) == 2 {
			txt[parts[0]] = parts[1]
		} else {
			txt[parts[0]] = ""
		}
	}
	return txt
}
